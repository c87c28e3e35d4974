package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"square/internal/models"
)

func leaderboardRows(n int) []*models.LeaderboardItem {
	items := make([]*models.LeaderboardItem, n)
	for i := range items {
		items[i] = &models.LeaderboardItem{
			UserID:   int64(i + 1),
			Username: fmt.Sprintf("user-%d", i+1),
			Score:    int64(100 - i),
		}
	}
	return items
}

func TestBuildPage(t *testing.T) {
	t.Run("first page with more rows behind", func(t *testing.T) {
		// three rows fetched for a two-row page, the third is the probe
		page := buildPage(leaderboardRows(3), 0, 2)

		require.Len(t, page.Items, 2)
		assert.True(t, page.HasMore)
		assert.Equal(t, 2, page.NextOffset)
		assert.Equal(t, 1, page.Items[0].Rank)
		assert.Equal(t, 2, page.Items[1].Rank)
	})

	t.Run("offset page keeps absolute ranks", func(t *testing.T) {
		page := buildPage(leaderboardRows(2), 2, 2)

		require.Len(t, page.Items, 2)
		assert.False(t, page.HasMore)
		assert.Equal(t, 4, page.NextOffset)
		assert.Equal(t, 3, page.Items[0].Rank)
		assert.Equal(t, 4, page.Items[1].Rank)
	})

	t.Run("short last page", func(t *testing.T) {
		page := buildPage(leaderboardRows(1), 4, 2)

		require.Len(t, page.Items, 1)
		assert.False(t, page.HasMore)
		assert.Equal(t, 5, page.NextOffset)
		assert.Equal(t, 5, page.Items[0].Rank)
	})

	t.Run("empty result", func(t *testing.T) {
		page := buildPage(nil, 0, 2)

		require.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
		assert.False(t, page.HasMore)
		assert.Equal(t, 0, page.NextOffset)
	})

	t.Run("adjacent pages are disjoint", func(t *testing.T) {
		rows := leaderboardRows(5)

		first := buildPage(rows[:3], 0, 2)
		second := buildPage(rows[first.NextOffset:], first.NextOffset, 2)

		require.Len(t, first.Items, 2)
		require.Len(t, second.Items, 2)
		assert.NotEqual(t, first.Items[1].UserID, second.Items[0].UserID)
		assert.Equal(t, 3, second.Items[0].Rank)
	})
}
