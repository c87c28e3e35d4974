package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"

	"square/internal/datastore"
	"square/internal/datastore/redis_store"
	"square/internal/models"
	"square/internal/pkg/caching"
)

type AwardResult struct {
	// Inserted is false when the reference was already in the ledger and the
	// award was a no-op replay.
	Inserted bool
	Balance  int64
}

type ServicePoints struct {
	container          *do.Injector
	redisDB            redis.UniversalClient
	rs                 *redsync.Redsync
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache

	serviceAdmin *ServiceAdmin
	bot          *Bot
}

func NewServicePoints(container *do.Injector) (*ServicePoints, error) {
	db, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
	if err != nil {
		return nil, err
	}

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

	readonlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	serviceAdmin, err := do.Invoke[*ServiceAdmin](container)
	if err != nil {
		return nil, err
	}

	bot, err := do.Invoke[*Bot](container)
	if err != nil {
		return nil, err
	}

	return &ServicePoints{container, db, rs, postgresDB, readonlyPostgresDB, cache, readonlyCache, serviceAdmin, bot}, nil
}

// Award appends one ledger entry and moves the balance, serialized per user.
// A non-nil reference makes the award idempotent: replaying it changes
// nothing and reports the existing balance.
func (service *ServicePoints) Award(ctx context.Context, userID int64, amount int64, reason string, referenceID *string) (*AwardResult, error) {
	return service.AwardWith(ctx, userID, amount, reason, referenceID, nil)
}

// AwardWith additionally applies `also` in the same database transaction as
// the ledger row, so streak or completion bookkeeping can never drift from
// the award it belongs to.
func (service *ServicePoints) AwardWith(ctx context.Context, userID int64, amount int64, reason string, referenceID *string, also func(ctx context.Context, tx bun.Tx) error) (*AwardResult, error) {
	mutex := service.rs.NewMutex(LockKeyUserPoints(userID))
	if err := mutex.Lock(); err != nil {
		return nil, errorx.Wrap(ErrUserLock, errorx.Invalid)
	}
	// nolint:errcheck
	defer mutex.Unlock()

	txn := &models.PointsTransaction{
		UserID:      userID,
		Amount:      amount,
		Reason:      reason,
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}

	inserted, balance, err := datastore.AppendTransactionWith(ctx, service.postgresDB, txn, also)
	if errors.Is(err, datastore.ErrBalanceUnderflow) {
		return nil, errorx.Wrap(ErrBalanceTooLow, errorx.Invalid)
	}
	if err != nil {
		return nil, err
	}

	if inserted {
		_ = service.cache.Delete(ctx, DBKeyUserRewards(userID))
	}

	return &AwardResult{Inserted: inserted, Balance: balance}, nil
}

// AwardByAdmin is the manual adjustment path. Negative amounts are allowed
// as long as the balance stays non-negative.
func (service *ServicePoints) AwardByAdmin(ctx context.Context, caller int64, req *models.AwardPointsRequest) (*AwardResult, error) {
	if err := service.serviceAdmin.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	if req.Points == 0 {
		return nil, errorx.Wrap(errors.New("points must not be zero"), errorx.Validation)
	}

	reason := req.Reason
	if reason == "" {
		reason = REASON_ADMIN_AWARD
	}

	result, err := service.Award(ctx, req.UserID, req.Points, reason, req.ReferenceID)
	if err != nil {
		return nil, err
	}

	if result.Inserted && req.Points > 0 {
		go service.notifyAward(req.UserID, req.Points, reason, req.ReferenceID)
	}

	return result, nil
}

// notifyAward pings the user about a manual award, at most once per
// reference. Failures are logged and never surfaced.
func (service *ServicePoints) notifyAward(userID int64, amount int64, reason string, referenceID *string) {
	ctx := context.Background()

	if referenceID != nil {
		notified, err := redis_store.GetAwardNotified(ctx, service.redisDB, userID, *referenceID)
		if err == nil && notified {
			return
		}
	}

	if err := service.bot.SendAwardMsg(userID, amount, reason); err != nil {
		log.Println(err)
		return
	}

	if referenceID != nil {
		if err := redis_store.SetAwardNotified(ctx, service.redisDB, userID, *referenceID); err != nil {
			log.Println(err)
		}
	}
}

func (service *ServicePoints) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return datastore.GetUserBalance(ctx, service.readonlyPostgresDB, userID)
}

func (service *ServicePoints) GetHistory(ctx context.Context, userID int64) ([]*models.PointsTransaction, error) {
	return datastore.GetPointsHistory(ctx, service.readonlyPostgresDB, userID)
}

// CalculateLevel maps a balance to a level, one level per 100 points,
// starting at level 1.
func CalculateLevel(points int64) int64 {
	if points < 0 {
		return 1
	}

	return 1 + points/POINTS_PER_LEVEL
}
