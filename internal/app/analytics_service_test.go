package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantum-dashboard/internal/cache"
	"quantum-dashboard/internal/model"
)

func TestAnalyticsService_StatsAreScopedAndCached(t *testing.T) {
	f := newFixture(t)
	_, client := newRedis(t)
	statsCache := cache.NewStatsCache(client, time.Minute)
	svc := NewAnalyticsService(f.jobs, f.backends, statsCache)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)

	ada := f.user(t, "ada", model.RoleUser)
	admin := f.user(t, "root", model.RoleAdmin)

	started := now.Add(-2 * time.Hour)
	finished := started.Add(90 * time.Second)
	for _, job := range []model.Job{
		{UserID: ada.UserID, Name: "a", Backend: "ionq_aria", Status: model.JobCompleted, Qubits: 2, Shots: 10, SubmittedAt: now.Add(-3 * time.Hour), StartedAt: &started, CompletedAt: &finished},
		{UserID: ada.UserID, Name: "b", Backend: "ionq_aria", Status: model.JobFailed, Qubits: 2, Shots: 10, SubmittedAt: now.Add(-48 * time.Hour)},
		{UserID: ada.UserID, Name: "c", Backend: "ionq_aria", Status: model.JobCompleted, Qubits: 2, Shots: 10, SubmittedAt: now.Add(-time.Hour)},
		{UserID: admin.UserID, Name: "d", Backend: "ionq_aria", Status: model.JobQueued, Qubits: 2, Shots: 10, SubmittedAt: now},
	} {
		job := job
		require.NoError(t, f.jobs.Create(&job))
	}

	ctx := context.Background()
	stats, err := svc.Stats(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalJobs)
	assert.Equal(t, int64(2), stats.ByStatus["completed"])
	assert.Equal(t, int64(0), stats.ByStatus["running"])
	assert.InDelta(t, 66.7, stats.SuccessRate, 0.001)
	assert.InDelta(t, 90.0, stats.AvgRuntimeSeconds, 0.001)
	assert.Equal(t, 2, stats.JobsLast24h)
	assert.Equal(t, int64(3), stats.ActiveBackends)

	all, err := svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalJobs)

	require.NoError(t, f.jobs.Create(&model.Job{UserID: ada.UserID, Name: "e", Backend: "ionq_aria", Status: model.JobQueued, Qubits: 1, Shots: 1, SubmittedAt: now}))
	cached, err := svc.Stats(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cached.TotalJobs, "served from cache until invalidated")

	require.NoError(t, statsCache.Invalidate(ctx, "1"))
	fresh, err := svc.Stats(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, int64(4), fresh.TotalJobs)
}

func TestAnalyticsService_Trends(t *testing.T) {
	f := newFixture(t)
	svc := NewAnalyticsService(f.jobs, f.backends, nil)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	ada := f.user(t, "ada", model.RoleUser)

	for _, job := range []model.Job{
		{UserID: ada.UserID, Name: "today", Backend: "x", Status: model.JobCompleted, Qubits: 1, Shots: 1, SubmittedAt: now.Add(-time.Hour)},
		{UserID: ada.UserID, Name: "yesterday", Backend: "x", Status: model.JobFailed, Qubits: 1, Shots: 1, SubmittedAt: now.Add(-24 * time.Hour)},
		{UserID: ada.UserID, Name: "yesterday2", Backend: "x", Status: model.JobQueued, Qubits: 1, Shots: 1, SubmittedAt: now.Add(-25 * time.Hour)},
		{UserID: ada.UserID, Name: "old", Backend: "x", Status: model.JobCompleted, Qubits: 1, Shots: 1, SubmittedAt: now.Add(-10 * 24 * time.Hour)},
	} {
		job := job
		require.NoError(t, f.jobs.Create(&job))
	}

	points, err := svc.Trends(ada, 0)
	require.NoError(t, err)
	require.Len(t, points, DefaultTrendDays)
	assert.Equal(t, "2026-04-28", points[0].Date)
	assert.Equal(t, TrendPoint{Date: "2026-05-03", Submitted: 2, Failed: 1}, points[5])
	assert.Equal(t, TrendPoint{Date: "2026-05-04", Submitted: 1, Completed: 1}, points[6])

	_, err = svc.Trends(ada, MaxTrendDays+1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
