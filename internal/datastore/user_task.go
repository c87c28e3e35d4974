package datastore

import (
	"context"
	"time"

	"square/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableUserTask(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.UserTask)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.UserTask)(nil)).Index("index_user_task_user_id").IfNotExists().Column("user_id").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.UserTask)(nil)).Index("index_user_task_user_id_task_id").Unique().IfNotExists().Column("user_id", "task_id").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

// UpsertUserTask refreshes completed_at for tasks that recur per period.
func UpsertUserTask(ctx context.Context, db bun.IDB, userTask *models.UserTask) error {
	_, err := db.NewInsert().Model(userTask).
		On("CONFLICT (user_id, task_id) DO UPDATE").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	return err
}

func GetUserTask(ctx context.Context, db *bun.DB, userID int64, taskID string) (*models.UserTask, error) {
	var userTask models.UserTask
	err := db.NewSelect().Model(&userTask).
		Where("user_id = ?", userID).
		Where("task_id = ?", taskID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &userTask, nil
}

func HasCompletedSince(ctx context.Context, db *bun.DB, userID int64, taskID string, since time.Time) (bool, error) {
	count, err := db.NewSelect().Model((*models.UserTask)(nil)).
		Where("user_id = ?", userID).
		Where("task_id = ?", taskID).
		Where("completed_at >= ?", since).
		Count(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func ListCompletedTaskIDs(ctx context.Context, db *bun.DB, userID int64) ([]string, error) {
	var taskIDs []string
	err := db.NewSelect().Model((*models.UserTask)(nil)).
		Column("task_id").
		Where("user_id = ?", userID).
		Order("completed_at ASC").
		Scan(ctx, &taskIDs)
	if err != nil {
		return nil, err
	}

	return taskIDs, nil
}

// DeleteUserTask clears a one-time completion so the task can be attempted
// again. Awarded points stay in the ledger.
func DeleteUserTask(ctx context.Context, db *bun.DB, userID int64, taskID string) (int64, error) {
	res, err := db.NewDelete().Model((*models.UserTask)(nil)).
		Where("user_id = ?", userID).
		Where("task_id = ?", taskID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
