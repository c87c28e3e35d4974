package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserReward keeps the running balance and the check-in streak state for one
// user. balance must equal the sum of the user's points_transaction rows at
// all times; the row is created lazily on first interaction and never deleted.
type UserReward struct {
	bun.BaseModel   `bun:"table:user_reward"`
	UserID          int64      `bun:"user_id,pk" json:"user_id"`
	Balance         int64      `bun:"balance" json:"balance"`
	ConsecutiveDays int64      `bun:"consecutive_days" json:"consecutive_days"`
	LastClaimAt     *time.Time `bun:"last_claim_at" json:"last_claim_at"`
	UpdatedAt       time.Time  `bun:"updated_at" json:"updated_at"`
}

// PointsTransaction is one append-only ledger entry. ReferenceID, when set,
// deduplicates retried awards: a second insert with the same (user_id,
// reference_id) is a no-op, enforced by a unique partial index.
type PointsTransaction struct {
	bun.BaseModel `bun:"table:points_transaction"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64     `bun:"user_id" json:"user_id"`
	Amount        int64     `bun:"amount" json:"amount"`
	Reason        string    `bun:"reason" json:"reason"`
	ReferenceID   *string   `bun:"reference_id" json:"reference_id"`
	CreatedAt     time.Time `bun:"created_at,default:current_timestamp" json:"timestamp"`
}

type AwardPointsRequest struct {
	UserID      int64   `json:"user_id"`
	Points      int64   `json:"points"`
	Reason      string  `json:"reason"`
	ReferenceID *string `json:"reference_id"`
}

type CheckInResponse struct {
	Success              bool      `json:"success"`
	PointsEarned         int64     `json:"points_earned"`
	BonusPoints          int64     `json:"bonus_points"`
	TotalPoints          int64     `json:"total_points"`
	ConsecutiveDays      int64     `json:"consecutive_days"`
	NextClaimAvailableAt time.Time `json:"next_claim_available_at"`
}

type UserRewardsResponse struct {
	Points          int64                `json:"points"`
	Level           int64                `json:"level"`
	ConsecutiveDays int64                `json:"consecutive_days"`
	LastClaimAt     *time.Time           `json:"last_claim_at"`
	CanCheckIn      bool                 `json:"can_checkin_today"`
	CompletedTasks  []string             `json:"completed_tasks"`
	PointsHistory   []*PointsTransaction `json:"points_history"`
}
