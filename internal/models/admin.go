package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Admin is one authorized principal. The deployer row is seeded by the
// migrate command; the last remaining admin cannot remove itself.
type Admin struct {
	bun.BaseModel `bun:"table:admin"`
	UserID        int64     `bun:"user_id,pk" json:"user_id"`
	AddedBy       int64     `bun:"added_by" json:"added_by"`
	CreatedAt     time.Time `bun:"created_at,default:current_timestamp" json:"created_at"`
}
