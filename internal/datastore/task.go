package datastore

import (
	"context"

	"square/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableTask(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Task)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Task)(nil)).Index("index_task_task_type").IfNotExists().Column("task_type").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Task)(nil)).Index("index_task_enabled").IfNotExists().Column("enabled").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

// InsertTask reports false when the id is already taken.
func InsertTask(ctx context.Context, db *bun.DB, task *models.Task) (bool, error) {
	res, err := db.NewInsert().Model(task).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return inserted > 0, nil
}

func GetTask(ctx context.Context, db *bun.DB, taskID string) (*models.Task, error) {
	var task models.Task
	err := db.NewSelect().Model(&task).Where("id = ?", taskID).Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &task, nil
}

func GetEnabledTasks(ctx context.Context, db *bun.DB) ([]models.Task, error) {
	var tasks []models.Task
	err := db.NewSelect().Model(&tasks).Where("enabled = ?", true).Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func GetAllTasks(ctx context.Context, db *bun.DB) ([]models.Task, error) {
	var tasks []models.Task
	err := db.NewSelect().Model(&tasks).Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func UpdateTask(ctx context.Context, db *bun.DB, task *models.Task) (int64, error) {
	res, err := db.NewUpdate().Model(task).
		Set("title = ?", task.Title).
		Set("description = ?", task.Description).
		Set("task_type = ?", task.TaskType).
		Set("points_reward = ?", task.PointsReward).
		Set("base_points = ?", task.BasePoints).
		Set("bonus_percent = ?", task.BonusPercent).
		Set("max_bonus_days = ?", task.MaxBonusDays).
		Set("start_time = ?", task.StartTime).
		Set("end_time = ?", task.EndTime).
		Set("requirements = ?", task.Requirements).
		Set("requires_proof = ?", task.RequiresProof).
		Set("enabled = ?", task.Enabled).
		Set("updated_at = current_timestamp").
		WherePK().Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func ToggleTask(ctx context.Context, db *bun.DB, taskID string, enabled bool) (int64, error) {
	res, err := db.NewUpdate().Model((*models.Task)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = current_timestamp").
		Where("id = ?", taskID).Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func DeleteTask(ctx context.Context, db *bun.DB, taskID string) (int64, error) {
	res, err := db.NewDelete().Model((*models.Task)(nil)).Where("id = ?", taskID).Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
