package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"quantum-dashboard/internal/cache"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
)

const (
	DefaultTrendDays = 7
	MaxTrendDays     = 90
)

type JobStats struct {
	TotalJobs         int64            `json:"total_jobs"`
	ByStatus          map[string]int64 `json:"by_status"`
	SuccessRate       float64          `json:"success_rate"`
	AvgRuntimeSeconds float64          `json:"avg_runtime_seconds"`
	JobsLast24h       int              `json:"jobs_last_24h"`
	ActiveBackends    int64            `json:"active_backends"`
}

type TrendPoint struct {
	Date      string `json:"date"`
	Submitted int    `json:"submitted"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// StatsStore caches rendered stats per scope.
type StatsStore interface {
	Get(ctx context.Context, scope string, dst any) (bool, error)
	Set(ctx context.Context, scope string, value any) error
}

type AnalyticsService struct {
	jobs     *repository.JobRepository
	backends *repository.BackendRepository
	cache    StatsStore
	now      func() time.Time
}

func NewAnalyticsService(jobs *repository.JobRepository, backends *repository.BackendRepository, statsCache StatsStore) *AnalyticsService {
	return &AnalyticsService{
		jobs:     jobs,
		backends: backends,
		cache:    statsCache,
		now:      time.Now,
	}
}

func (s *AnalyticsService) Stats(ctx context.Context, actor Actor) (*JobStats, error) {
	scope := cache.ScopeAll
	if !actor.IsAdmin() {
		scope = strconv.FormatUint(uint64(actor.UserID), 10)
	}

	if s.cache != nil {
		var cached JobStats
		if hit, err := s.cache.Get(ctx, scope, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	userID := actor.scope()
	counts, err := s.jobs.CountByStatus(userID)
	if err != nil {
		return nil, err
	}
	stats := &JobStats{ByStatus: make(map[string]int64, len(counts))}
	for status, n := range counts {
		stats.ByStatus[string(status)] = n
		stats.TotalJobs += n
	}

	finished := counts[model.JobCompleted] + counts[model.JobFailed]
	if finished > 0 {
		stats.SuccessRate = round1(float64(counts[model.JobCompleted]) * 100 / float64(finished))
	}

	completed, err := s.jobs.ListFinished(userID, 200)
	if err != nil {
		return nil, err
	}
	if len(completed) > 0 {
		var total time.Duration
		for _, job := range completed {
			total += job.CompletedAt.Sub(*job.StartedAt)
		}
		stats.AvgRuntimeSeconds = round1(total.Seconds() / float64(len(completed)))
	}

	recent, err := s.jobs.ListSubmittedSince(userID, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	stats.JobsLast24h = len(recent)

	stats.ActiveBackends, err = s.backends.CountByStatus(model.BackendOnline)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, scope, stats)
	}
	return stats, nil
}

// Trends buckets jobs submitted over the last days by UTC day, oldest first.
func (s *AnalyticsService) Trends(actor Actor, days int) ([]TrendPoint, error) {
	if days == 0 {
		days = DefaultTrendDays
	}
	if days < 1 || days > MaxTrendDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, MaxTrendDays)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	jobs, err := s.jobs.ListSubmittedSince(actor.scope(), start)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		points[i].Date = date
		index[date] = i
	}
	for _, job := range jobs {
		i, ok := index[job.SubmittedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		points[i].Submitted++
		switch job.Status {
		case model.JobCompleted:
			points[i].Completed++
		case model.JobFailed:
			points[i].Failed++
		}
	}
	return points, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
