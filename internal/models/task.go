package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TaskType string

const (
	TaskTypeOneTime TaskType = "one_time"
	TaskTypeDaily   TaskType = "daily"
	TaskTypeWeekly  TaskType = "weekly"
	TaskTypeMonthly TaskType = "monthly"
	TaskTypeSpecial TaskType = "special"
)

type Task struct {
	bun.BaseModel `bun:"table:task"`
	ID            string            `bun:"id,pk" json:"id"`
	Title         string            `bun:"title" json:"title"`
	Description   string            `bun:"description" json:"description"`
	TaskType      TaskType          `bun:"task_type" json:"task_type"`
	PointsReward  int64             `bun:"points_reward" json:"points_reward"`
	BasePoints    int64             `bun:"base_points" json:"base_points"`
	BonusPercent  int64             `bun:"bonus_percent" json:"bonus_percent"`
	MaxBonusDays  int64             `bun:"max_bonus_days" json:"max_bonus_days"`
	StartTime     *time.Time        `bun:"start_time" json:"start_time"`
	EndTime       *time.Time        `bun:"end_time" json:"end_time"`
	Requirements  *TaskRequirements `bun:"requirements,type:jsonb" json:"requirements"`
	RequiresProof bool              `bun:"requires_proof" json:"requires_proof"`
	Enabled       bool              `bun:"enabled" json:"-"`
	CreatedAt     time.Time         `bun:"created_at,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time         `bun:"updated_at" json:"updated_at"`
}

// TaskRequirements is a predicate tree stored as jsonb. Every field is
// optional; the zero value means the sub-requirement is trivially satisfied.
// A threshold of exactly 0 is an exists-only check and always passes.
type TaskRequirements struct {
	MinLikes    int64 `json:"min_likes,omitempty"`
	MinFollows  int64 `json:"min_follows,omitempty"`
	MinShares   int64 `json:"min_shares,omitempty"`
	MinPosts    int64 `json:"min_posts,omitempty"`
	MinComments int64 `json:"min_comments,omitempty"`
	MinArticles int64 `json:"min_articles,omitempty"`

	// RequiredHashtags narrows the content-creation counts to posts that
	// carry all the listed hashtags.
	RequiredHashtags []string `json:"required_hashtags,omitempty"`

	MinLoginStreak int64 `json:"min_login_streak,omitempty"`

	RequiredTokens []string `json:"required_tokens,omitempty"`
	RequiredNFTs   []string `json:"required_nfts,omitempty"`

	// Custom requirements are opaque to the engine, matched against the
	// caller-supplied proof by convention.
	Custom []string `json:"custom_requirements,omitempty"`
}

func (r *TaskRequirements) Empty() bool {
	if r == nil {
		return true
	}
	return r.MinLikes == 0 && r.MinFollows == 0 && r.MinShares == 0 &&
		r.MinPosts == 0 && r.MinComments == 0 && r.MinArticles == 0 &&
		len(r.RequiredHashtags) == 0 && r.MinLoginStreak == 0 &&
		len(r.RequiredTokens) == 0 && len(r.RequiredNFTs) == 0 && len(r.Custom) == 0
}

// VerificationContext is the collaborator snapshot a requirement tree is
// evaluated against: social/content counters and attested holdings, taken as
// authoritative at verification time.
type VerificationContext struct {
	Likes    int64 `json:"likes"`
	Follows  int64 `json:"follows"`
	Shares   int64 `json:"shares"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Articles int64 `json:"articles"`

	Hashtags    []string `json:"hashtags"`
	LoginStreak int64    `json:"login_streak"`

	Tokens []string `json:"tokens"`
	NFTs   []string `json:"nfts"`
}

type UserTask struct {
	bun.BaseModel `bun:"table:user_task"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64     `bun:"user_id" json:"user_id"`
	TaskID        string    `bun:"task_id" json:"task_id"`
	CompletedAt   time.Time `bun:"completed_at,default:current_timestamp" json:"completed_at"`
}

type CreateTaskRequest struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	TaskType      TaskType          `json:"task_type"`
	PointsReward  int64             `json:"points_reward"`
	BasePoints    int64             `json:"base_points"`
	BonusPercent  int64             `json:"bonus_percent"`
	MaxBonusDays  int64             `json:"max_bonus_days"`
	StartTime     *time.Time        `json:"start_time"`
	EndTime       *time.Time        `json:"end_time"`
	Requirements  *TaskRequirements `json:"requirements"`
	RequiresProof bool              `json:"requires_proof"`
}

type UpdateTaskRequest struct {
	CreateTaskRequest
	Enabled *bool `json:"enabled"`
}

type CompleteTaskRequest struct {
	Proof   string               `json:"proof"`
	Context *VerificationContext `json:"context"`
}

type TaskCompletionResponse struct {
	Success      bool   `json:"success"`
	PointsEarned int64  `json:"points_earned"`
	TotalPoints  int64  `json:"total_points"`
	Level        int64  `json:"level"`
	LevelUp      bool   `json:"level_up"`
	Message      string `json:"message"`
}

type AvailableTask struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	TaskType       TaskType   `json:"task_type"`
	PointsReward   int64      `json:"points_reward"`
	IsCompleted    bool       `json:"is_completed"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
}
