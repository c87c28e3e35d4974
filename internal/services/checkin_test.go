package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCheckIn(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cadence := 24 * time.Hour

	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name            string
		lastClaimAt     *time.Time
		consecutiveDays int64
		want            int64
		wantErr         error
	}{
		{
			name:        "first claim ever",
			lastClaimAt: nil,
			want:        1,
		},
		{
			name:            "claim again within one cadence",
			lastClaimAt:     ago(2 * time.Hour),
			consecutiveDays: 3,
			want:            3,
			wantErr:         ErrAlreadyClaimed,
		},
		{
			name:            "claim exactly at cadence continues streak",
			lastClaimAt:     ago(cadence),
			consecutiveDays: 3,
			want:            4,
		},
		{
			name:            "claim just before two cadences continues streak",
			lastClaimAt:     ago(2*cadence - time.Second),
			consecutiveDays: 6,
			want:            7,
		},
		{
			name:            "claim exactly at two cadences resets streak",
			lastClaimAt:     ago(2 * cadence),
			consecutiveDays: 6,
			want:            1,
		},
		{
			name:            "claim after a long gap resets streak",
			lastClaimAt:     ago(10 * cadence),
			consecutiveDays: 20,
			want:            1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateCheckIn(tt.lastClaimAt, tt.consecutiveDays, now, cadence)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreakBonus(t *testing.T) {
	tests := []struct {
		name            string
		basePoints      int64
		consecutiveDays int64
		maxBonusDays    int64
		bonusPercent    int64
		want            int64
	}{
		{"no streak", 10, 0, 7, 10, 0},
		{"day one", 10, 1, 7, 10, 1},
		{"day three", 10, 3, 7, 10, 3},
		{"at the cap", 10, 7, 7, 10, 7},
		{"beyond the cap", 10, 30, 7, 10, 7},
		{"no cap configured", 10, 30, 0, 10, 30},
		{"zero percent", 10, 5, 7, 0, 0},
		{"rounds down", 7, 1, 7, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StreakBonus(tt.basePoints, tt.consecutiveDays, tt.maxBonusDays, tt.bonusPercent)
			assert.Equal(t, tt.want, got)
		})
	}
}

// day three of a streak with the default settings pays 10 + 3.
func TestCheckInDayThreeTotal(t *testing.T) {
	bonus := StreakBonus(DAILY_CHECK_IN_POINTS_DEFAULT, 3, MAX_CONSECUTIVE_DAYS_DEFAULT, STREAK_BONUS_PERCENT_DEFAULT)
	assert.Equal(t, int64(13), int64(DAILY_CHECK_IN_POINTS_DEFAULT)+bonus)
}
