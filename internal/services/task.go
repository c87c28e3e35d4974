package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/tonkeeper/tongo"
	"github.com/uptrace/bun"

	"square/internal/datastore"
	"square/internal/models"
	"square/internal/pkg"
	"square/internal/pkg/caching"
)

type ServiceTask struct {
	container          *do.Injector
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache

	serviceAdmin *ServiceAdmin
}

func NewServiceTask(container *do.Injector) (*ServiceTask, error) {
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

	return &ServiceTask{container, postgresDB, readonlyPostgresDB, cache, readonlyCache, serviceAdmin}, nil
}

// ValidateTaskDefinition rejects definitions the engine could never honor:
// a zero reward, an inverted time window or holdings requirements naming
// unparseable account ids.
func ValidateTaskDefinition(req *models.CreateTaskRequest) error {
	if req.Title == "" {
		return errorx.Wrap(errors.New("title is required"), errorx.Validation)
	}

	if req.PointsReward == 0 {
		return errorx.Wrap(ErrZeroReward, errorx.Validation)
	}

	switch req.TaskType {
	case models.TaskTypeOneTime, models.TaskTypeDaily, models.TaskTypeWeekly, models.TaskTypeMonthly, models.TaskTypeSpecial:
	default:
		return errorx.Wrap(fmt.Errorf("unknown task type %q", req.TaskType), errorx.Validation)
	}

	if req.StartTime != nil && req.EndTime != nil && !req.StartTime.Before(*req.EndTime) {
		return errorx.Wrap(ErrInvalidWindow, errorx.Validation)
	}

	if req.Requirements != nil {
		for _, account := range req.Requirements.RequiredTokens {
			if _, err := tongo.ParseAddress(account); err != nil {
				return errorx.Wrap(fmt.Errorf("invalid token account %q: %w", account, err), errorx.Validation)
			}
		}
		for _, account := range req.Requirements.RequiredNFTs {
			if _, err := tongo.ParseAddress(account); err != nil {
				return errorx.Wrap(fmt.Errorf("invalid nft account %q: %w", account, err), errorx.Validation)
			}
		}
	}

	return nil
}

func (service *ServiceTask) CreateTask(ctx context.Context, caller int64, req *models.CreateTaskRequest) (*models.Task, error) {
	if err := service.serviceAdmin.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	if err := ValidateTaskDefinition(req); err != nil {
		return nil, err
	}

	taskID := req.ID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	now := time.Now()
	task := &models.Task{
		ID:            taskID,
		Title:         req.Title,
		Description:   req.Description,
		TaskType:      req.TaskType,
		PointsReward:  req.PointsReward,
		BasePoints:    req.BasePoints,
		BonusPercent:  req.BonusPercent,
		MaxBonusDays:  req.MaxBonusDays,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Requirements:  req.Requirements,
		RequiresProof: req.RequiresProof,
		Enabled:       true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	inserted, err := datastore.InsertTask(ctx, service.postgresDB, task)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, errorx.Wrap(ErrTaskExists, errorx.Invalid)
	}

	service.clearTaskCaches(ctx, taskID)
	return task, nil
}

func (service *ServiceTask) UpdateTask(ctx context.Context, caller int64, taskID string, req *models.UpdateTaskRequest) (*models.Task, error) {
	if err := service.serviceAdmin.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	if err := ValidateTaskDefinition(&req.CreateTaskRequest); err != nil {
		return nil, err
	}

	task, err := service.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	task.Title = req.Title
	task.Description = req.Description
	task.TaskType = req.TaskType
	task.PointsReward = req.PointsReward
	task.BasePoints = req.BasePoints
	task.BonusPercent = req.BonusPercent
	task.MaxBonusDays = req.MaxBonusDays
	task.StartTime = req.StartTime
	task.EndTime = req.EndTime
	task.Requirements = req.Requirements
	task.RequiresProof = req.RequiresProof
	if req.Enabled != nil {
		task.Enabled = *req.Enabled
	}

	affected, err := datastore.UpdateTask(ctx, service.postgresDB, task)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errorx.Wrap(ErrTaskNotFound, errorx.NotExist)
	}

	service.clearTaskCaches(ctx, taskID)
	return task, nil
}

func (service *ServiceTask) ToggleTask(ctx context.Context, caller int64, taskID string, enabled bool) error {
	if err := service.serviceAdmin.RequireAdmin(ctx, caller); err != nil {
		return err
	}

	affected, err := datastore.ToggleTask(ctx, service.postgresDB, taskID, enabled)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errorx.Wrap(ErrTaskNotFound, errorx.NotExist)
	}

	service.clearTaskCaches(ctx, taskID)
	return nil
}

func (service *ServiceTask) DeleteTask(ctx context.Context, caller int64, taskID string) error {
	if err := service.serviceAdmin.RequireAdmin(ctx, caller); err != nil {
		return err
	}

	affected, err := datastore.DeleteTask(ctx, service.postgresDB, taskID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errorx.Wrap(ErrTaskNotFound, errorx.NotExist)
	}

	service.clearTaskCaches(ctx, taskID)
	return nil
}

func (service *ServiceTask) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	callback := func() (*models.Task, error) {
		task, err := datastore.GetTask(ctx, service.readonlyPostgresDB, taskID)
		if err == sql.ErrNoRows {
			return nil, errorx.Wrap(ErrTaskNotFound, errorx.NotExist)
		}
		return task, err
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyTask(taskID), CACHE_TTL_5_MINS, callback)
}

func (service *ServiceTask) GetEnabledTasks(ctx context.Context) ([]models.Task, error) {
	callback := func() ([]models.Task, error) {
		return datastore.GetEnabledTasks(ctx, service.readonlyPostgresDB)
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyEnabledTasks(), CACHE_TTL_1_MIN, callback)
}

func (service *ServiceTask) GetAllTasks(ctx context.Context, caller int64) ([]models.Task, error) {
	if err := service.serviceAdmin.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	return datastore.GetAllTasks(ctx, service.readonlyPostgresDB)
}

// GetAvailableTasks lists enabled tasks currently inside their window,
// flagging the ones already completed in the current period.
func (service *ServiceTask) GetAvailableTasks(ctx context.Context, user *models.User) ([]models.AvailableTask, error) {
	callback := func() ([]models.AvailableTask, error) {
		tasks, err := service.GetEnabledTasks(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		available := make([]models.AvailableTask, 0, len(tasks))
		for _, task := range tasks {
			if err := CheckWindow(&task, now); err != nil {
				continue
			}

			completed, err := service.IsCompletedThisPeriod(ctx, user.ID, &task, now)
			if err != nil {
				return nil, err
			}

			available = append(available, models.AvailableTask{
				ID:             task.ID,
				Title:          task.Title,
				Description:    task.Description,
				TaskType:       task.TaskType,
				PointsReward:   task.PointsReward,
				IsCompleted:    completed,
				StartTime:      task.StartTime,
				ExpirationTime: task.EndTime,
			})
		}

		return available, nil
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyUserAvailableTasks(user.ID), CACHE_TTL_15_SECONDS, callback)
}

// IsCompletedThisPeriod reports whether a completion blocks another attempt
// right now. One-time and special tasks block forever, periodic tasks only
// until the period rolls over.
func (service *ServiceTask) IsCompletedThisPeriod(ctx context.Context, userID int64, task *models.Task, now time.Time) (bool, error) {
	start, recurring := PeriodStart(task.TaskType, now)
	if !recurring {
		userTask, err := datastore.GetUserTask(ctx, service.postgresDB, userID, task.ID)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return userTask != nil, nil
	}

	return datastore.HasCompletedSince(ctx, service.postgresDB, userID, task.ID, start)
}

// PeriodStart maps a recurring task type to the start of its current period.
// recurring=false means completions never reopen.
func PeriodStart(taskType models.TaskType, now time.Time) (start time.Time, recurring bool) {
	switch taskType {
	case models.TaskTypeDaily:
		return pkg.StartOfDay(now), true
	case models.TaskTypeWeekly:
		return pkg.StartOfWeek(now), true
	case models.TaskTypeMonthly:
		return pkg.StartOfMonth(now), true
	default:
		return time.Time{}, false
	}
}

// CheckWindow enforces the eligibility window. Expiry wins when the window is
// somehow both not yet open and already closed.
func CheckWindow(task *models.Task, now time.Time) error {
	if task.EndTime != nil && !now.Before(*task.EndTime) {
		return errorx.Wrap(ErrExpired, errorx.Invalid)
	}
	if task.StartTime != nil && now.Before(*task.StartTime) {
		return errorx.Wrap(ErrNotYetOpen, errorx.Invalid)
	}

	return nil
}

// CompletionReference derives the ledger reference for a completion. Periodic
// tasks embed the period start so each period awards once.
func CompletionReference(task *models.Task, userID int64, now time.Time) string {
	start, recurring := PeriodStart(task.TaskType, now)
	if recurring {
		return fmt.Sprintf("task:%s:user:%d:%s", task.ID, userID, start.Format("2006-01-02"))
	}

	return fmt.Sprintf("task:%s:user:%d", task.ID, userID)
}

func (service *ServiceTask) clearTaskCaches(ctx context.Context, taskID string) {
	_ = service.cache.Delete(ctx, DBKeyTask(taskID))
	_ = service.cache.Delete(ctx, DBKeyEnabledTasks())
}
