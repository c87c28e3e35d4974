package datastore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"square/internal/models"

	"github.com/uptrace/bun"
)

// ErrBalanceUnderflow is returned when an award would drive the running
// balance below zero. No ledger row is written in that case.
var ErrBalanceUnderflow = errors.New("balance underflow")

func CreateTablePointsTransaction(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.PointsTransaction)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.PointsTransaction)(nil)).Index("index_points_transaction_user_id").IfNotExists().Column("user_id").Exec(ctx)
	if err != nil {
		return err
	}

	// reference_id deduplicates retried awards per user
	_, err = db.NewRaw(`
		create unique index if not exists index_points_transaction_user_id_reference_id
			on points_transaction (user_id, reference_id)
			where reference_id is not null;`).Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func CreateTableUserReward(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.UserReward)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewRaw(`
		alter table user_reward
			add constraint user_reward_balance_non_negative check (balance >= 0);`).Exec(ctx)
	if err != nil {
		// constraint may already exist
		_ = err
	}

	return nil
}

func EnsureUserReward(ctx context.Context, db bun.IDB, userID int64) error {
	reward := &models.UserReward{
		UserID:    userID,
		UpdatedAt: time.Now(),
	}
	_, err := db.NewInsert().Model(reward).On("CONFLICT (user_id) DO NOTHING").Exec(ctx)
	return err
}

func GetUserReward(ctx context.Context, db bun.IDB, userID int64) (*models.UserReward, error) {
	var reward models.UserReward
	err := db.NewSelect().Model(&reward).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &reward, nil
}

func GetUserBalance(ctx context.Context, db bun.IDB, userID int64) (int64, error) {
	reward, err := GetUserReward(ctx, db, userID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return reward.Balance, nil
}

func GetPointsHistory(ctx context.Context, db bun.IDB, userID int64) ([]*models.PointsTransaction, error) {
	var history []*models.PointsTransaction
	err := db.NewSelect().Model(&history).Where("user_id = ?", userID).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return history, nil
}

func SumPointsHistory(ctx context.Context, db bun.IDB, userID int64) (int64, error) {
	var sum int64
	err := db.NewSelect().Model((*models.PointsTransaction)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(ctx, &sum)
	if err != nil {
		return 0, err
	}

	return sum, nil
}

// AppendTransaction appends one ledger row and moves the running balance in
// the same database transaction. A replayed reference_id leaves both the
// ledger and the balance untouched and reports inserted=false; an amount that
// would underflow the balance aborts with ErrBalanceUnderflow.
func AppendTransaction(ctx context.Context, db *bun.DB, txn *models.PointsTransaction) (inserted bool, balance int64, err error) {
	return AppendTransactionWith(ctx, db, txn, nil)
}

// AppendTransactionWith is AppendTransaction plus a companion mutation that
// commits or rolls back together with the ledger row. `also` runs only when
// the row was actually inserted; if it fails, the award is rolled back too,
// so a retry with the same reference starts from a clean slate.
func AppendTransactionWith(ctx context.Context, db *bun.DB, txn *models.PointsTransaction, also func(ctx context.Context, tx bun.Tx) error) (inserted bool, balance int64, err error) {
	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := EnsureUserReward(ctx, tx, txn.UserID); err != nil {
			return err
		}

		res, err := tx.NewInsert().Model(txn).
			On("CONFLICT (user_id, reference_id) WHERE reference_id IS NOT NULL DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if rows == 0 {
			// idempotent replay, report the existing balance
			inserted = false
			balance, err = GetUserBalance(ctx, tx, txn.UserID)
			return err
		}

		res, err = tx.NewUpdate().Model((*models.UserReward)(nil)).
			Set("balance = balance + ?", txn.Amount).
			Set("updated_at = current_timestamp").
			Where("user_id = ?", txn.UserID).
			Where("balance + ? >= 0", txn.Amount).
			Exec(ctx)
		if err != nil {
			return err
		}

		rows, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrBalanceUnderflow
		}

		if also != nil {
			if err := also(ctx, tx); err != nil {
				return err
			}
		}

		inserted = true
		balance, err = GetUserBalance(ctx, tx, txn.UserID)
		return err
	})

	return inserted, balance, err
}

func UpdateStreak(ctx context.Context, db bun.IDB, userID int64, consecutiveDays int64, lastClaimAt *time.Time) error {
	_, err := db.NewUpdate().Model((*models.UserReward)(nil)).
		Set("consecutive_days = ?", consecutiveDays).
		Set("last_claim_at = ?", lastClaimAt).
		Set("updated_at = current_timestamp").
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func ResetStreak(ctx context.Context, db *bun.DB, userID int64) error {
	_, err := db.NewUpdate().Model((*models.UserReward)(nil)).
		Set("consecutive_days = 0").
		Set("updated_at = current_timestamp").
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func GetLeaderboardPage(ctx context.Context, db *bun.DB, limit, offset int) ([]*models.LeaderboardItem, error) {
	var items []*models.LeaderboardItem
	err := db.NewSelect().
		ColumnExpr("u.username, u.photo_url as avatar, ur.user_id, ur.balance as score").
		TableExpr("user_reward ur").
		Join("JOIN \"user\" u ON u.id = ur.user_id").
		OrderExpr("ur.balance DESC").
		OrderExpr("u.created_at ASC").
		OrderExpr("u.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx, &items)
	if err != nil {
		return nil, err
	}

	return items, nil
}
