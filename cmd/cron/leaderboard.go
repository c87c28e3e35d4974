package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"square/internal/datastore"
	"square/internal/models"
	"square/internal/pkg/caching"
	"square/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
)

const WARM_PAGE_COUNT = 5

type LeaderboardJob struct {
	Redis redis.UniversalClient
	Db    *bun.DB
	Cache caching.Cache
}

func NewLeaderboardJob(redisClient redis.UniversalClient, db *bun.DB) *LeaderboardJob {
	cash, err := caching.NewCacheRedis(redisClient, false)
	if err != nil {
		log.Fatal(err)
	}

	return &LeaderboardJob{
		Redis: redisClient,
		Db:    db,
		Cache: cash,
	}
}

func (j *LeaderboardJob) Start(cronRunner *cron.Cron) {
	timeline, err := datastore.GetConfigByKey(context.Background(), j.Db, "CRONJOB_TIME_LEADERBOARD")
	if err != nil {
		fmt.Println(err)
		return
	}

	if timeline == nil || timeline.Value == "" {
		fmt.Println("No timeline found")
		return
	}

	_, err = cronRunner.AddFunc(timeline.Value, j.runScheduledTask)
	log.Println("Leaderboard Cronjob start at:", time.Now().Format("2006-01-02 15:04:05"), "cron:", timeline.Value, err)
	j.runScheduledTask()
}

// runScheduledTask drops every cached page and warms the first ones so peak
// traffic keeps hitting the cache.
func (j *LeaderboardJob) runScheduledTask() {
	ctx := context.Background()
	log.Println("Start refreshing leaderboard pages ...")

	err := caching.DeleteKeys(ctx, j.Redis, "leaderboard:page:*")
	if err != nil {
		fmt.Println(err)
		return
	}

	limit := j.pageLimit(ctx)

	for page := 0; page < WARM_PAGE_COUNT; page++ {
		offset := page * limit

		// one probe row beyond the page tells whether another page exists
		items, err := datastore.GetLeaderboardPage(ctx, j.Db, limit+1, offset)
		if err != nil {
			log.Println(err)
			return
		}

		hasMore := len(items) > limit
		if hasMore {
			items = items[:limit]
		}
		for i, item := range items {
			item.Rank = offset + i + 1
		}
		if items == nil {
			items = []*models.LeaderboardItem{}
		}

		err = j.Cache.Set(ctx, services.DBKeyLeaderboardPage(offset, limit), &models.LeaderboardPage{
			Items:      items,
			NextOffset: offset + len(items),
			HasMore:    hasMore,
		}, services.CACHE_TTL_1_MIN)
		if err != nil {
			log.Println(err)
		}

		if !hasMore {
			break
		}
	}

	log.Println("Leaderboard pages refreshed")
}

func (j *LeaderboardJob) pageLimit(ctx context.Context) int {
	limit, err := caching.UseCache(ctx, j.Cache, services.DBKeyConfig(services.CONFIG_LEADERBOARD_LIMIT), services.CACHE_TTL_5_MINS, func() (int, error) {
		config, err := datastore.GetConfigByKey(ctx, j.Db, services.CONFIG_LEADERBOARD_LIMIT)
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(config.Value)
	})
	if err != nil || limit <= 0 {
		limit = services.LEADERBOARD_DEFAULT_LIMIT
	}
	if limit > services.LEADERBOARD_MAX_LIMIT {
		limit = services.LEADERBOARD_MAX_LIMIT
	}

	return limit
}
