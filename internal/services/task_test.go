package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"square/internal/models"
)

const testTokenAccount = "0:0000000000000000000000000000000000000000000000000000000000000000"

func TestValidateTaskDefinition(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	valid := func() *models.CreateTaskRequest {
		return &models.CreateTaskRequest{
			Title:        "Daily Post",
			TaskType:     models.TaskTypeDaily,
			PointsReward: 20,
		}
	}

	tests := []struct {
		name    string
		mutate  func(req *models.CreateTaskRequest)
		wantErr bool
	}{
		{
			name:   "valid definition",
			mutate: func(req *models.CreateTaskRequest) {},
		},
		{
			name: "valid window",
			mutate: func(req *models.CreateTaskRequest) {
				req.StartTime = &start
				req.EndTime = &end
			},
		},
		{
			name: "valid token requirement",
			mutate: func(req *models.CreateTaskRequest) {
				req.Requirements = &models.TaskRequirements{RequiredTokens: []string{testTokenAccount}}
			},
		},
		{
			name:    "missing title",
			mutate:  func(req *models.CreateTaskRequest) { req.Title = "" },
			wantErr: true,
		},
		{
			name:    "zero reward",
			mutate:  func(req *models.CreateTaskRequest) { req.PointsReward = 0 },
			wantErr: true,
		},
		{
			name:    "unknown task type",
			mutate:  func(req *models.CreateTaskRequest) { req.TaskType = "hourly" },
			wantErr: true,
		},
		{
			name: "inverted window",
			mutate: func(req *models.CreateTaskRequest) {
				req.StartTime = &end
				req.EndTime = &start
			},
			wantErr: true,
		},
		{
			name: "start equals end",
			mutate: func(req *models.CreateTaskRequest) {
				req.StartTime = &start
				req.EndTime = &start
			},
			wantErr: true,
		},
		{
			name: "unparseable nft account",
			mutate: func(req *models.CreateTaskRequest) {
				req.Requirements = &models.TaskRequirements{RequiredNFTs: []string{"not-an-address"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)

			err := ValidateTaskDefinition(req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		task    *models.Task
		wantErr error
	}{
		{
			name: "no window",
			task: &models.Task{},
		},
		{
			name: "inside window",
			task: &models.Task{StartTime: &past, EndTime: &future},
		},
		{
			name:    "not yet open",
			task:    &models.Task{StartTime: &future},
			wantErr: ErrNotYetOpen,
		},
		{
			name:    "already expired",
			task:    &models.Task{EndTime: &past},
			wantErr: ErrExpired,
		},
		{
			name:    "end time is exclusive",
			task:    &models.Task{EndTime: &now},
			wantErr: ErrExpired,
		},
		{
			name:    "expiry wins over not yet open",
			task:    &models.Task{StartTime: &future, EndTime: &past},
			wantErr: ErrExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWindow(tt.task, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPeriodStart(t *testing.T) {
	// a Wednesday
	now := time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		taskType  models.TaskType
		want      time.Time
		recurring bool
	}{
		{models.TaskTypeDaily, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{models.TaskTypeWeekly, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{models.TaskTypeMonthly, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{models.TaskTypeOneTime, time.Time{}, false},
		{models.TaskTypeSpecial, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			start, recurring := PeriodStart(tt.taskType, now)
			assert.Equal(t, tt.recurring, recurring)
			assert.Equal(t, tt.want, start)
		})
	}
}

func TestCompletionReference(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		task *models.Task
		want string
	}{
		{
			name: "one-time task",
			task: &models.Task{ID: "follow_us", TaskType: models.TaskTypeOneTime},
			want: "task:follow_us:user:42",
		},
		{
			name: "special task",
			task: &models.Task{ID: "launch_event", TaskType: models.TaskTypeSpecial},
			want: "task:launch_event:user:42",
		},
		{
			name: "daily task embeds the day",
			task: &models.Task{ID: "daily_post", TaskType: models.TaskTypeDaily},
			want: "task:daily_post:user:42:2025-03-12",
		},
		{
			name: "weekly task embeds the week start",
			task: &models.Task{ID: "weekly_article", TaskType: models.TaskTypeWeekly},
			want: "task:weekly_article:user:42:2025-03-10",
		},
		{
			name: "monthly task embeds the month start",
			task: &models.Task{ID: "monthly_recap", TaskType: models.TaskTypeMonthly},
			want: "task:monthly_recap:user:42:2025-03-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletionReference(tt.task, 42, now))
		})
	}
}
