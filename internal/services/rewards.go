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

type ServiceRewards struct {
	container          *do.Injector
	rs                 *redsync.Redsync
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache

	serviceTask     *ServiceTask
	serviceVerifier *ServiceVerifier
	servicePoints   *ServicePoints
	serviceCheckIn  *ServiceCheckIn
}

func NewServiceRewards(container *do.Injector) (*ServiceRewards, error) {
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

	serviceTask, err := do.Invoke[*ServiceTask](container)
	if err != nil {
		return nil, err
	}

	serviceVerifier, err := do.Invoke[*ServiceVerifier](container)
	if err != nil {
		return nil, err
	}

	servicePoints, err := do.Invoke[*ServicePoints](container)
	if err != nil {
		return nil, err
	}

	serviceCheckIn, err := do.Invoke[*ServiceCheckIn](container)
	if err != nil {
		return nil, err
	}

	return &ServiceRewards{container, rs, postgresDB, readonlyPostgresDB, cache, readonlyCache, serviceTask, serviceVerifier, servicePoints, serviceCheckIn}, nil
}

// CompleteTask runs the whole completion pipeline. Verification against
// external collaborators happens in two phases: the snapshot is gathered with
// no lock held, then everything is re-checked under the per-user task mutex
// before the award commits, because both the task and the user's state may
// have changed while the snapshot was in flight.
func (service *ServiceRewards) CompleteTask(ctx context.Context, user *models.User, taskID string, req *models.CompleteTaskRequest) (*models.TaskCompletionResponse, error) {
	task, err := service.serviceTask.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Enabled {
		return nil, errorx.Wrap(ErrTaskNotFound, errorx.NotExist)
	}

	if err := ValidateProof(task, req.Proof); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := CheckWindow(task, now); err != nil {
		return nil, err
	}

	completed, err := service.serviceTask.IsCompletedThisPeriod(ctx, user.ID, task, now)
	if err != nil {
		return nil, err
	}
	if completed {
		return nil, errorx.Wrap(ErrAlreadyCompleted, errorx.Invalid)
	}

	// phase one, no lock held
	vc := req.Context
	if !task.Requirements.Empty() && vc == nil {
		vc, err = service.serviceVerifier.GatherAttestation(ctx, user.ID, task)
		if err != nil {
			return nil, err
		}
	}

	mutex := service.rs.NewMutex(LockKeyUserTask(user.ID, task.ID))
	if err := mutex.TryLock(); err != nil {
		return nil, errorx.Wrap(ErrUserLock, errorx.Invalid)
	}
	// nolint:errcheck
	defer mutex.Unlock()

	// phase two, everything re-checked under the lock
	now = time.Now()
	task, err = service.serviceTask.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Enabled {
		return nil, errorx.Wrap(ErrTaskNotFound, errorx.NotExist)
	}
	if err := CheckWindow(task, now); err != nil {
		return nil, err
	}
	if err := EvaluateRequirements(task.Requirements, vc); err != nil {
		return nil, errorx.Wrap(err, errorx.Invalid)
	}

	before, err := service.servicePoints.GetBalance(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	// the completion row rides in the same database transaction as the award
	reference := CompletionReference(task, user.ID, now)
	result, err := service.servicePoints.AwardWith(ctx, user.ID, task.PointsReward, REASON_TASK_COMPLETION, &reference, func(ctx context.Context, tx bun.Tx) error {
		return datastore.UpsertUserTask(ctx, tx, &models.UserTask{
			UserID:      user.ID,
			TaskID:      task.ID,
			CompletedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	if !result.Inserted {
		return nil, errorx.Wrap(ErrAlreadyCompleted, errorx.Invalid)
	}

	if err := service.serviceVerifier.InvalidateAttestation(ctx, user.ID, task.ID); err != nil {
		log.Println(err)
	}
	_ = service.cache.Delete(ctx, DBKeyUserAvailableTasks(user.ID))
	_ = service.cache.Delete(ctx, DBKeyUserRewards(user.ID))

	levelBefore := CalculateLevel(before)
	level := CalculateLevel(result.Balance)

	return &models.TaskCompletionResponse{
		Success:      true,
		PointsEarned: task.PointsReward,
		TotalPoints:  result.Balance,
		Level:        level,
		LevelUp:      level > levelBefore,
		Message:      fmt.Sprintf("completed %s", task.Title),
	}, nil
}

func (service *ServiceRewards) GetUserRewards(ctx context.Context, user *models.User) (*models.UserRewardsResponse, error) {
	callback := func() (*models.UserRewardsResponse, error) {
		reward, err := datastore.GetUserReward(ctx, service.readonlyPostgresDB, user.ID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == sql.ErrNoRows {
			reward = &models.UserReward{UserID: user.ID}
		}

		history, err := service.servicePoints.GetHistory(ctx, user.ID)
		if err != nil {
			return nil, err
		}

		completedTasks, err := datastore.ListCompletedTaskIDs(ctx, service.readonlyPostgresDB, user.ID)
		if err != nil {
			return nil, err
		}

		canCheckIn, err := service.serviceCheckIn.CanCheckIn(ctx, user.ID, time.Now())
		if err != nil {
			return nil, err
		}

		return &models.UserRewardsResponse{
			Points:          reward.Balance,
			Level:           CalculateLevel(reward.Balance),
			ConsecutiveDays: reward.ConsecutiveDays,
			LastClaimAt:     reward.LastClaimAt,
			CanCheckIn:      canCheckIn,
			CompletedTasks:  completedTasks,
			PointsHistory:   history,
		}, nil
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyUserRewards(user.ID), CACHE_TTL_15_SECONDS, callback)
}

// GetUserRewardsByID is the admin view of another user's rewards.
func (service *ServiceRewards) GetUserRewardsByID(ctx context.Context, caller int64, userID int64) (*models.UserRewardsResponse, error) {
	serviceAdmin, err := do.Invoke[*ServiceAdmin](service.container)
	if err != nil {
		return nil, err
	}

	if err := serviceAdmin.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	return service.GetUserRewards(ctx, &models.User{ID: userID})
}
