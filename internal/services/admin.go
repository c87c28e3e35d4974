package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/uptrace/bun"

	"square/internal/datastore"
	"square/internal/models"
	"square/internal/pkg/caching"
)

type ServiceAdmin struct {
	container          *do.Injector
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache
}

func NewServiceAdmin(container *do.Injector) (*ServiceAdmin, error) {
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

	readonlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	return &ServiceAdmin{container, postgresDB, readonlyPostgresDB, cache, readonlyCache}, nil
}

func (service *ServiceAdmin) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	callback := func() (bool, error) {
		return datastore.IsAdmin(ctx, service.readonlyPostgresDB, userID)
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyIsAdmin(userID), CACHE_TTL_1_MIN, callback)
}

// RequireAdmin guards every privileged operation. Callers never check the
// caller's identity themselves.
func (service *ServiceAdmin) RequireAdmin(ctx context.Context, userID int64) error {
	ok, err := service.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errorx.Wrap(ErrNotAdmin, errorx.Authn)
	}

	return nil
}

func (service *ServiceAdmin) AddAdmin(ctx context.Context, caller int64, userID int64) error {
	if err := service.RequireAdmin(ctx, caller); err != nil {
		return err
	}

	_, err := datastore.InsertAdmin(ctx, service.postgresDB, &models.Admin{
		UserID:    userID,
		AddedBy:   caller,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	return service.cache.Delete(ctx, DBKeyIsAdmin(userID))
}

// RemoveAdmin refuses to remove the last remaining admin so the registry can
// never lock everyone out.
func (service *ServiceAdmin) RemoveAdmin(ctx context.Context, caller int64, userID int64) error {
	if err := service.RequireAdmin(ctx, caller); err != nil {
		return err
	}

	count, err := datastore.CountAdmins(ctx, service.postgresDB)
	if err != nil {
		return err
	}
	if count <= 1 {
		return errorx.Wrap(ErrLastAdmin, errorx.Invalid)
	}

	affected, err := datastore.DeleteAdmin(ctx, service.postgresDB, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errorx.Wrap(errors.New("admin not found"), errorx.NotExist)
	}

	return service.cache.Delete(ctx, DBKeyIsAdmin(userID))
}

func (service *ServiceAdmin) ListAdmins(ctx context.Context, caller int64) ([]*models.Admin, error) {
	if err := service.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	return datastore.ListAdmins(ctx, service.readonlyPostgresDB)
}

// ClearTaskCompletion removes a user's recorded completion of one task so it
// can be attempted again. The ledger is never rewritten, so points already
// awarded stay put.
func (service *ServiceAdmin) ClearTaskCompletion(ctx context.Context, caller int64, userID int64, taskID string) error {
	if err := service.RequireAdmin(ctx, caller); err != nil {
		return err
	}

	affected, err := datastore.DeleteUserTask(ctx, service.postgresDB, userID, taskID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errorx.Wrap(errors.New("completion not found"), errorx.NotExist)
	}

	_ = service.cache.Delete(ctx, DBKeyUserAvailableTasks(userID))
	return service.cache.Delete(ctx, DBKeyUserRewards(userID))
}

func (service *ServiceAdmin) ResetUserStreak(ctx context.Context, caller int64, userID int64) error {
	if err := service.RequireAdmin(ctx, caller); err != nil {
		return err
	}

	_, err := datastore.GetUserReward(ctx, service.postgresDB, userID)
	if err == sql.ErrNoRows {
		return errorx.Wrap(errors.New("user has no reward record"), errorx.NotExist)
	}
	if err != nil {
		return err
	}

	err = datastore.ResetStreak(ctx, service.postgresDB, userID)
	if err != nil {
		return err
	}

	return service.cache.Delete(ctx, DBKeyUserRewards(userID))
}
