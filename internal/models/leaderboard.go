package models

type LeaderboardItem struct {
	Username string  `bun:"username" json:"username"`
	UserID   int64   `bun:"user_id" json:"user_id"`
	Score    int64   `bun:"score" json:"score"`
	Rank     int     `bun:"-" json:"rank,omitempty"`
	Avatar   *string `bun:"avatar" json:"avatar,omitempty"`
}

type LeaderboardPage struct {
	Items      []*LeaderboardItem `json:"items"`
	NextOffset int                `json:"next_offset"`
	HasMore    bool               `json:"has_more"`
}
