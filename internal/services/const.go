package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	CONFIG_SERVER_MODE               = "SERVER_MODE"
	CONFIG_LEADERBOARD_LIMIT         = "LEADERBOARD_LIMIT"
	CONFIG_DAILY_CHECK_IN_POINTS     = "DAILY_CHECK_IN_POINTS"
	CONFIG_STREAK_BONUS_PERCENT      = "STREAK_BONUS_PERCENT"
	CONFIG_MAX_CONSECUTIVE_DAYS      = "MAX_CONSECUTIVE_DAYS"
	CONFIG_HOLDINGS_API_BASE_URL     = "HOLDINGS_API_BASE_URL"
	CONFIG_COLLABORATOR_API_BASE_URL = "COLLABORATOR_API_BASE_URL"

	SERVER_MODE_DEVELOPMENT = "development"
	SERVER_MODE_STAGING     = "staging"
	SERVER_MODE_PRODUCTION  = "production"

	DAILY_CHECK_IN_POINTS_DEFAULT = 10
	STREAK_BONUS_PERCENT_DEFAULT  = 10
	MAX_CONSECUTIVE_DAYS_DEFAULT  = 7
	LEADERBOARD_DEFAULT_LIMIT     = 20
	LEADERBOARD_MAX_LIMIT         = 100

	POINTS_PER_LEVEL = 100

	CHECK_IN_CADENCE = 24 * time.Hour

	CACHE_TTL_5_SECONDS  = 5 * time.Second
	CACHE_TTL_15_SECONDS = 15 * time.Second
	CACHE_TTL_1_MIN      = 1 * time.Minute
	CACHE_TTL_5_MINS     = 5 * time.Minute
	CACHE_TTL_15_MINS    = 15 * time.Minute
	CACHE_TTL_1_HOUR     = 1 * time.Hour
	CACHE_TTL_1_DAY      = 24 * time.Hour

	VERIFY_RATE_LIMIT_PER_MINUTE = 10

	REASON_TASK_COMPLETION = "task_completion"
	REASON_DAILY_CHECK_IN  = "daily_check_in"
	REASON_ADMIN_AWARD     = "admin_award"
)

func LockKeyUserPoints(userID int64) string {
	return fmt.Sprintf("lock:user-points:%d", userID)
}

func LockKeyUserCheckIn(userID int64) string {
	return fmt.Sprintf("lock:user-check-in:%d", userID)
}

func LockKeyUserTask(userID int64, taskID string) string {
	return fmt.Sprintf("lock:user-task:%d:%s", userID, taskID)
}

// db
func DBKeyUser(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func DBKeyConfig(key string) string {
	return fmt.Sprintf("config:%s", strings.ToLower(key))
}

func DBKeyTask(taskID string) string {
	return fmt.Sprintf("task:%s", taskID)
}

func DBKeyEnabledTasks() string {
	return "task:enabled"
}

func DBKeyUserAvailableTasks(userID int64) string {
	return fmt.Sprintf("task:available:%d", userID)
}

func DBKeyUserRewards(userID int64) string {
	return fmt.Sprintf("user_rewards:%d", userID)
}

func DBKeyLeaderboardPage(offset, limit int) string {
	return fmt.Sprintf("leaderboard:page:%d:%d", offset, limit)
}

func DBKeyIsAdmin(userID int64) string {
	return fmt.Sprintf("admin:%d", userID)
}

func LimitKeyUserVerify(userID int64) string {
	return fmt.Sprintf("limit:user-verify:%d", userID)
}
