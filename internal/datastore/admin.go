package datastore

import (
	"context"
	"time"

	"square/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableAdmin(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Admin)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func IsAdmin(ctx context.Context, db *bun.DB, userID int64) (bool, error) {
	count, err := db.NewSelect().Model((*models.Admin)(nil)).Where("user_id = ?", userID).Count(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func InsertAdmin(ctx context.Context, db *bun.DB, admin *models.Admin) (bool, error) {
	res, err := db.NewInsert().Model(admin).On("CONFLICT (user_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func DeleteAdmin(ctx context.Context, db *bun.DB, userID int64) (int64, error) {
	res, err := db.NewDelete().Model((*models.Admin)(nil)).Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// BootstrapAdmin seeds the first admin without a caller check. A no-op once
// any admin exists.
func BootstrapAdmin(ctx context.Context, db *bun.DB, userID int64) (bool, error) {
	count, err := CountAdmins(ctx, db)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	return InsertAdmin(ctx, db, &models.Admin{
		UserID:    userID,
		AddedBy:   userID,
		CreatedAt: time.Now(),
	})
}

func CountAdmins(ctx context.Context, db *bun.DB) (int, error) {
	return db.NewSelect().Model((*models.Admin)(nil)).Count(ctx)
}

func ListAdmins(ctx context.Context, db *bun.DB) ([]*models.Admin, error) {
	var admins []*models.Admin
	err := db.NewSelect().Model(&admins).Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return admins, nil
}
