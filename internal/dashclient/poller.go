package dashclient

import (
	"context"
	"time"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/model"
)

// Intervals used by the dashboard views.
const (
	StatsInterval    = 3 * time.Second
	JobsInterval     = 5 * time.Second
	BackendsInterval = 30 * time.Second
)

// Poll calls fetch once right away and then once per interval until ctx is
// cancelled, handing each result to onResult. The next fetch is scheduled
// from the start of the previous one and never overlaps it, so two requests
// never start less than interval apart.
func Poll[T any](ctx context.Context, interval time.Duration, fetch func(context.Context) (T, error), onResult func(T, error)) {
	if interval <= 0 {
		interval = StatsInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		started := time.Now()
		v, err := fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if onResult != nil {
			onResult(v, err)
		}
		timer.Reset(time.Until(started.Add(interval)))
	}
}

// PollStats polls the job statistics. A non-positive interval means StatsInterval.
func (c *Client) PollStats(ctx context.Context, interval time.Duration, onResult func(*app.JobStats, error)) {
	Poll(ctx, orDefault(interval, StatsInterval), c.JobStats, onResult)
}

// PollJobs polls one page of jobs. A non-positive interval means JobsInterval.
func (c *Client) PollJobs(ctx context.Context, interval time.Duration, query JobQuery, onResult func(*List[model.Job], error)) {
	Poll(ctx, orDefault(interval, JobsInterval), func(ctx context.Context) (*List[model.Job], error) {
		return c.Jobs(ctx, query)
	}, onResult)
}

// PollBackends polls the backend list. A non-positive interval means BackendsInterval.
func (c *Client) PollBackends(ctx context.Context, interval time.Duration, onResult func([]model.Backend, error)) {
	Poll(ctx, orDefault(interval, BackendsInterval), c.Backends, onResult)
}

func orDefault(interval, fallback time.Duration) time.Duration {
	if interval <= 0 {
		return fallback
	}
	return interval
}
