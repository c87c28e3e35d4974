package pkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	got := StartOfDay(time.Date(2025, 3, 12, 15, 30, 45, 123, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), got)

	// non-UTC input is normalized first
	loc := time.FixedZone("UTC+7", 7*3600)
	got = StartOfDay(time.Date(2025, 3, 13, 5, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), got)
}

func TestStartOfWeek(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   time.Time
	}{
		{"monday itself", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)},
		{"midweek", time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)},
		{"sunday rolls back to the previous monday", time.Date(2025, 3, 16, 23, 59, 59, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, monday, StartOfWeek(tt.in))
		})
	}
}

func TestStartOfMonth(t *testing.T) {
	got := StartOfMonth(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got)
}
