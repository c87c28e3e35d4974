package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/uptrace/bun"

	"square/internal/datastore"
	"square/internal/models"
	"square/internal/pkg/caching"
)

type ServiceCheckIn struct {
	container          *do.Injector
	rs                 *redsync.Redsync
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache

	serviceConfig *ServiceConfig
	servicePoints *ServicePoints
}

func NewServiceCheckIn(container *do.Injector) (*ServiceCheckIn, error) {
	rs, err := do.Invoke[*redsync.Redsync](container)
	if err != nil {
		return nil, err
	}

	postgresDB, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return nil, err
	}

	readonlyPostgresDB, err := do.InvokeNamed[*bun.DB](container, "db-readonly")
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	servicePoints, err := do.Invoke[*ServicePoints](container)
	if err != nil {
		return nil, err
	}

	return &ServiceCheckIn{container, rs, postgresDB, readonlyPostgresDB, cache, serviceConfig, servicePoints}, nil
}

// EvaluateCheckIn decides the streak outcome of a claim at `now` given the
// previous claim. Claiming again inside one cadence is rejected; a gap of at
// least one cadence but less than two continues the streak; from exactly two
// cadences on the streak restarts at 1.
func EvaluateCheckIn(lastClaimAt *time.Time, consecutiveDays int64, now time.Time, cadence time.Duration) (newConsecutive int64, err error) {
	if lastClaimAt == nil {
		return 1, nil
	}

	elapsed := now.Sub(*lastClaimAt)
	if elapsed < cadence {
		return consecutiveDays, ErrAlreadyClaimed
	}
	if elapsed < 2*cadence {
		return consecutiveDays + 1, nil
	}

	return 1, nil
}

// StreakBonus computes the extra points for a streak: basePoints scaled by
// bonusPercent for each consecutive day, capped at maxBonusDays, rounded down.
func StreakBonus(basePoints, consecutiveDays, maxBonusDays, bonusPercent int64) int64 {
	if consecutiveDays <= 0 || bonusPercent <= 0 || basePoints <= 0 {
		return 0
	}

	days := consecutiveDays
	if maxBonusDays > 0 && days > maxBonusDays {
		days = maxBonusDays
	}

	return basePoints * days * bonusPercent / 100
}

// Claim performs the daily check-in. The per-user mutex serializes claims so
// a double tap cannot double the streak or the award.
func (service *ServiceCheckIn) Claim(ctx context.Context, user *models.User) (*models.CheckInResponse, error) {
	mutex := service.rs.NewMutex(LockKeyUserCheckIn(user.ID))
	if err := mutex.TryLock(); err != nil {
		return nil, errorx.Wrap(ErrUserLock, errorx.Invalid)
	}
	// nolint:errcheck
	defer mutex.Unlock()

	err := datastore.EnsureUserReward(ctx, service.postgresDB, user.ID)
	if err != nil {
		return nil, err
	}

	// EnsureUserReward just guaranteed the row exists
	reward, err := datastore.GetUserReward(ctx, service.postgresDB, user.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	consecutive, err := EvaluateCheckIn(reward.LastClaimAt, reward.ConsecutiveDays, now, CHECK_IN_CADENCE)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Invalid)
	}

	basePoints, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_DAILY_CHECK_IN_POINTS, DAILY_CHECK_IN_POINTS_DEFAULT)
	bonusPercent, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_STREAK_BONUS_PERCENT, STREAK_BONUS_PERCENT_DEFAULT)
	maxDays, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_MAX_CONSECUTIVE_DAYS, MAX_CONSECUTIVE_DAYS_DEFAULT)

	bonus := StreakBonus(int64(basePoints), consecutive, int64(maxDays), int64(bonusPercent))
	total := int64(basePoints) + bonus

	// the streak update rides in the same database transaction as the award
	reference := fmt.Sprintf("check_in:user:%d:%s", user.ID, now.UTC().Format("2006-01-02"))
	result, err := service.servicePoints.AwardWith(ctx, user.ID, total, REASON_DAILY_CHECK_IN, &reference, func(ctx context.Context, tx bun.Tx) error {
		return datastore.UpdateStreak(ctx, tx, user.ID, consecutive, &now)
	})
	if err != nil {
		return nil, err
	}
	if !result.Inserted {
		return nil, errorx.Wrap(ErrAlreadyClaimed, errorx.Invalid)
	}

	if err := service.cache.Delete(ctx, DBKeyUserRewards(user.ID)); err != nil {
		log.Println(err)
	}

	return &models.CheckInResponse{
		Success:              true,
		PointsEarned:         total,
		BonusPoints:          bonus,
		TotalPoints:          result.Balance,
		ConsecutiveDays:      consecutive,
		NextClaimAvailableAt: now.Add(CHECK_IN_CADENCE),
	}, nil
}

// CanCheckIn reports whether a claim right now would succeed, without
// claiming.
func (service *ServiceCheckIn) CanCheckIn(ctx context.Context, userID int64, now time.Time) (bool, error) {
	reward, err := datastore.GetUserReward(ctx, service.readonlyPostgresDB, userID)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	_, err = EvaluateCheckIn(reward.LastClaimAt, reward.ConsecutiveDays, now, CHECK_IN_CADENCE)
	return err == nil, nil
}
