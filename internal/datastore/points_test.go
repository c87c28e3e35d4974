package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"square/internal/models"
)

// testDB connects to the database named by TEST_DB_DSN. Tests that need
// Postgres are skipped when it is not set.
func testDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx := context.Background()
	require.NoError(t, CreateTableUser(ctx, db))
	require.NoError(t, CreateTableUserReward(ctx, db))
	require.NoError(t, CreateTablePointsTransaction(ctx, db))

	return db
}

// testUserID hands out ids that cannot collide across runs against a shared
// database.
func testUserID() int64 {
	return time.Now().UnixNano()
}

func ref(s string) *string {
	return &s
}

func TestEnsureUserReward(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := testUserID()

	require.NoError(t, EnsureUserReward(ctx, db, userID))
	require.NoError(t, EnsureUserReward(ctx, db, userID))

	reward, err := GetUserReward(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reward.Balance)
	assert.Nil(t, reward.LastClaimAt)
}

func TestAppendTransactionReplay(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := testUserID()

	inserted, balance, err := AppendTransaction(ctx, db, &models.PointsTransaction{
		UserID:      userID,
		Amount:      100,
		Reason:      "bonus",
		ReferenceID: ref("r1"),
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(100), balance)

	// same reference again, must credit nothing
	inserted, balance, err = AppendTransaction(ctx, db, &models.PointsTransaction{
		UserID:      userID,
		Amount:      100,
		Reason:      "bonus",
		ReferenceID: ref("r1"),
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(100), balance)

	sum, err := SumPointsHistory(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, balance, sum)
}

func TestAppendTransactionUnderflow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := testUserID()

	_, balance, err := AppendTransaction(ctx, db, &models.PointsTransaction{
		UserID:    userID,
		Amount:    50,
		Reason:    "bonus",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)

	_, _, err = AppendTransaction(ctx, db, &models.PointsTransaction{
		UserID:    userID,
		Amount:    -100,
		Reason:    "correction",
		CreatedAt: time.Now(),
	})
	require.ErrorIs(t, err, ErrBalanceUnderflow)

	// the rejected row must not show up anywhere
	balance, err = GetUserBalance(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	// a correction that stays above zero is fine
	_, balance, err = AppendTransaction(ctx, db, &models.PointsTransaction{
		UserID:    userID,
		Amount:    -30,
		Reason:    "correction",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	sum, err := SumPointsHistory(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, balance, sum)
}

func TestAppendTransactionWithCompanion(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := testUserID()
	now := time.Now()
	errSpilled := errors.New("companion failed")

	// a failing companion mutation must take the award down with it
	_, _, err := AppendTransactionWith(ctx, db, &models.PointsTransaction{
		UserID:      userID,
		Amount:      13,
		Reason:      "daily_check_in",
		ReferenceID: ref("day-1"),
		CreatedAt:   now,
	}, func(ctx context.Context, tx bun.Tx) error {
		return errSpilled
	})
	require.ErrorIs(t, err, errSpilled)

	balance, err := GetUserBalance(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	sum, err := SumPointsHistory(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	// the retry with the same reference starts clean and lands both writes
	inserted, balance, err := AppendTransactionWith(ctx, db, &models.PointsTransaction{
		UserID:      userID,
		Amount:      13,
		Reason:      "daily_check_in",
		ReferenceID: ref("day-1"),
		CreatedAt:   now,
	}, func(ctx context.Context, tx bun.Tx) error {
		return UpdateStreak(ctx, tx, userID, 1, &now)
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(13), balance)

	reward, err := GetUserReward(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reward.ConsecutiveDays)
	require.NotNil(t, reward.LastClaimAt)
}

func TestLeaderboardPageTieBreak(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := testUserID()
	registered := time.Now()

	// equal balances, same registration instant: id decides
	for _, id := range []int64{base + 2, base + 1, base + 3} {
		_, err := CreateUser(ctx, db, &models.User{
			ID:        id,
			Username:  fmt.Sprintf("player%d", id-base),
			CreatedAt: registered,
			UpdatedAt: registered,
		})
		require.NoError(t, err)
		require.NoError(t, EnsureUserReward(ctx, db, id))
	}

	items, err := GetLeaderboardPage(ctx, db, 1<<30, 0)
	require.NoError(t, err)

	var got []int64
	for _, item := range items {
		if item.UserID >= base+1 && item.UserID <= base+3 {
			got = append(got, item.UserID)
		}
	}
	assert.Equal(t, []int64{base + 1, base + 2, base + 3}, got)
}
