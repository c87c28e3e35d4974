package redis_store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"square/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	VERIFY_CHECK_LIMIT    = 5
	VERIFY_CHECK_COOLDOWN = 2 * time.Minute

	ATTESTATION_TTL = 5 * time.Minute
)

func dbKeyAttestation(userID int64, taskID string) string {
	return fmt.Sprintf("user:attestation:%d:%s", userID, taskID)
}

func dbKeyVerifyCount(userID int64) string {
	return fmt.Sprintf("user:verify_count:%d", userID)
}

func dbKeyAwardNotified(userID int64, referenceID string) string {
	return fmt.Sprintf("user:award_notified:%d:%s", userID, referenceID)
}

// SetAttestation stores the collaborator snapshot gathered during the
// unlocked phase of verification. It expires so a stale snapshot cannot be
// replayed long after the external state changed.
func SetAttestation(ctx context.Context, cmd redis.Cmdable, userID int64, taskID string, vc *models.VerificationContext) error {
	b, err := msgpack.Marshal(vc)
	if err != nil {
		return err
	}

	return cmd.Set(ctx, dbKeyAttestation(userID, taskID), b, ATTESTATION_TTL).Err()
}

func GetAttestation(ctx context.Context, cmd redis.Cmdable, userID int64, taskID string) (*models.VerificationContext, error) {
	var vc *models.VerificationContext
	b, err := cmd.Get(ctx, dbKeyAttestation(userID, taskID)).Bytes()
	if err != nil {
		return nil, err
	}

	err = msgpack.Unmarshal(b, &vc)
	return vc, err
}

func DeleteAttestation(ctx context.Context, cmd redis.Cmdable, userID int64, taskID string) error {
	return cmd.Del(ctx, dbKeyAttestation(userID, taskID)).Err()
}

// CheckVerifyLimit counts external verification attempts per user and
// reports whether another one is allowed inside the cooldown window.
func CheckVerifyLimit(ctx context.Context, cmd redis.Cmdable, userID int64) (bool, error) {
	number, err := cmd.Get(ctx, dbKeyVerifyCount(userID)).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	numberInt := 0
	if err != redis.Nil {
		numberInt, _ = strconv.Atoi(number)
	}

	if numberInt <= VERIFY_CHECK_LIMIT {
		_, err = cmd.Incr(ctx, dbKeyVerifyCount(userID)).Result()
		if err != nil {
			return false, err
		}

		err = cmd.Expire(ctx, dbKeyVerifyCount(userID), VERIFY_CHECK_COOLDOWN).Err()
		if err != nil {
			return false, err
		}

		return true, nil
	}

	return false, nil
}

// SetAwardNotified dedupes award notifications per ledger reference.
func SetAwardNotified(ctx context.Context, cmd redis.Cmdable, userID int64, referenceID string) error {
	return cmd.Set(ctx, dbKeyAwardNotified(userID, referenceID), true, time.Hour*24).Err()
}

func GetAwardNotified(ctx context.Context, cmd redis.Cmdable, userID int64, referenceID string) (bool, error) {
	_, err := cmd.Get(ctx, dbKeyAwardNotified(userID, referenceID)).Bytes()
	if err != nil {
		return false, err
	}

	return true, nil
}
