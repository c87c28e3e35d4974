package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"

	"square/internal/datastore"
	"square/internal/models"
	"square/internal/pkg/caching"
)

type ServiceLeaderboard struct {
	container          *do.Injector
	redisDBCache       redis.UniversalClient
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache

	serviceConfig *ServiceConfig
}

func NewServiceLeaderboard(container *do.Injector) (*ServiceLeaderboard, error) {
	dbRedisCache, err := do.InvokeNamed[redis.UniversalClient](container, "redis-cache")
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

	readonlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	return &ServiceLeaderboard{container, dbRedisCache, readonlyPostgresDB, cache, readonlyCache, serviceConfig}, nil
}

// GetLeaderboard returns one page ordered by balance, ties broken by signup
// time so the ordering is stable across pages. Ranks are absolute, offset
// included.
func (service *ServiceLeaderboard) GetLeaderboard(ctx context.Context, offset, limit int) (*models.LeaderboardPage, error) {
	offset, limit = service.clampPage(ctx, offset, limit)

	callback := func() (*models.LeaderboardPage, error) {
		// fetch one extra row to learn whether another page exists
		items, err := datastore.GetLeaderboardPage(ctx, service.readonlyPostgresDB, limit+1, offset)
		if err != nil {
			return nil, err
		}

		return buildPage(items, offset, limit), nil
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyLeaderboardPage(offset, limit), CACHE_TTL_1_MIN, callback)
}

func (service *ServiceLeaderboard) clampPage(ctx context.Context, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}

	defaultLimit, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_LEADERBOARD_LIMIT, LEADERBOARD_DEFAULT_LIMIT)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > LEADERBOARD_MAX_LIMIT {
		limit = LEADERBOARD_MAX_LIMIT
	}

	return offset, limit
}

// buildPage assigns absolute ranks and trims the probe row fetched beyond the
// page boundary.
func buildPage(items []*models.LeaderboardItem, offset, limit int) *models.LeaderboardPage {
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

	return &models.LeaderboardPage{
		Items:      items,
		NextOffset: offset + len(items),
		HasMore:    hasMore,
	}
}

// ClearLeaderboardCache drops every cached page. The cron job calls this
// after warming fresh pages.
func (service *ServiceLeaderboard) ClearLeaderboardCache(ctx context.Context) error {
	return caching.DeleteKeys(ctx, service.redisDBCache, "leaderboard:page:*")
}

// WarmLeaderboard refreshes the first pages so the common request never
// misses.
func (service *ServiceLeaderboard) WarmLeaderboard(ctx context.Context, pages int) error {
	limit, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_LEADERBOARD_LIMIT, LEADERBOARD_DEFAULT_LIMIT)

	if err := service.ClearLeaderboardCache(ctx); err != nil {
		return err
	}

	for page := 0; page < pages; page++ {
		if _, err := service.GetLeaderboard(ctx, page*limit, limit); err != nil {
			return fmt.Errorf("warm page %d: %w", page, err)
		}
	}

	return nil
}
