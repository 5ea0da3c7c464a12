package dashclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/bootstrap"
	"quantum-dashboard/internal/config"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/testutil"
	apihttp "quantum-dashboard/internal/transport/http"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("CONFIG_FILE", t.TempDir()+"/none.toml")
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.App.GinMode = "test"
	cfg.Simulator.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.InitialAdmin = config.InitialAdminConfig{Username: "root", Email: "root@example.com", Password: "correct-horse"}

	mr := miniredis.RunT(t)
	a, err := bootstrap.Assemble(context.Background(), cfg, nil, testutil.NewDB(t), redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(apihttp.NewHandler(a))
	t.Cleanup(func() {
		a.Hub.Close(context.Background())
		srv.Close()
	})
	return srv
}

func TestClient_AgainstServer(t *testing.T) {
	srv := newAPIServer(t)
	ctx := context.Background()
	client := New(srv.URL+"/", "")

	_, err := client.JobStats(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	err = client.Login(ctx, "root", "wrong-password")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Empty(t, client.Token())

	require.NoError(t, client.Login(ctx, "root", "correct-horse"))
	assert.NotEmpty(t, client.Token())

	backends, err := client.Backends(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, backends)

	stats, err := client.JobStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalJobs)

	jobs, err := client.Jobs(ctx, JobQuery{Limit: 5})
	require.NoError(t, err)
	assert.Zero(t, jobs.Total)
	assert.Empty(t, jobs.Items)

	trends, err := client.JobTrends(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, trends, 3)
}

type statsServer struct {
	*httptest.Server
	mu    sync.Mutex
	times []time.Time
}

func newStatsServer(t *testing.T) *statsServer {
	t.Helper()
	s := &statsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.times = append(s.times, time.Now())
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"total_jobs":4,"by_status":{"queued":4}}}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *statsServer) requests() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.times...)
}

func TestPollStats_CadenceAndCancel(t *testing.T) {
	srv := newStatsServer(t)
	client := New(srv.URL, "token")
	interval := 40 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var results atomic.Int32
	go func() {
		defer close(done)
		client.PollStats(ctx, interval, func(stats *app.JobStats, err error) {
			if assert.NoError(t, err) {
				assert.Equal(t, int64(4), stats.TotalJobs)
			}
			results.Add(1)
		})
	}()

	time.Sleep(230 * time.Millisecond)
	cancel()
	<-done

	times := srv.requests()
	require.GreaterOrEqual(t, len(times), 2)
	assert.LessOrEqual(t, len(times), 6)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), interval-5*time.Millisecond)
	}
	assert.LessOrEqual(t, int(results.Load()), len(times))

	time.Sleep(3 * interval)
	assert.Len(t, srv.requests(), len(times), "no requests after cancel")
}

func TestPoll_SlowFetchNeverOverlaps(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var inFlight, maxInFlight, calls atomic.Int32
	Poll(ctx, 10*time.Millisecond, func(ctx context.Context) (int, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		calls.Add(1)
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
		return 0, nil
	}, nil)

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.LessOrEqual(t, calls.Load(), int32(5))
}

func TestPoll_ReportsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	var got error
	Poll(ctx, time.Millisecond, func(context.Context) (string, error) {
		return "", boom
	}, func(_ string, err error) {
		got = err
		cancel()
	})
	assert.ErrorIs(t, got, boom)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "failed", r.URL.Query().Get("status"))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":40402,"message":"job not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "token").Jobs(context.Background(), JobQuery{Status: "failed"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 40402, apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "job not found")
}

// collect runs poll until cancelled after d and returns how often it reported.
func collect(d time.Duration, poll func(ctx context.Context, report func())) int {
	ctx, cancel := context.WithCancel(context.Background())
	var reports atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		poll(ctx, func() { reports.Add(1) })
	}()
	time.Sleep(d)
	cancel()
	<-done
	return int(reports.Load())
}

func TestPollJobsAndBackends_AgainstServer(t *testing.T) {
	srv := newAPIServer(t)
	client := New(srv.URL, "")
	require.NoError(t, client.Login(context.Background(), "root", "correct-horse"))

	pollJobs := func(interval time.Duration) func(context.Context, func()) {
		return func(ctx context.Context, report func()) {
			client.PollJobs(ctx, interval, JobQuery{Limit: 10}, func(list *List[model.Job], err error) {
				if assert.NoError(t, err) {
					assert.Zero(t, list.Total)
				}
				report()
			})
		}
	}
	pollBackends := func(interval time.Duration) func(context.Context, func()) {
		return func(ctx context.Context, report func()) {
			client.PollBackends(ctx, interval, func(backends []model.Backend, err error) {
				if assert.NoError(t, err) {
					assert.NotEmpty(t, backends)
				}
				report()
			})
		}
	}

	t.Run("default intervals fetch once then wait", func(t *testing.T) {
		assert.Equal(t, 1, collect(300*time.Millisecond, pollJobs(0)))
		assert.Equal(t, 1, collect(300*time.Millisecond, pollBackends(0)))
	})

	t.Run("short interval keeps cadence", func(t *testing.T) {
		n := collect(230*time.Millisecond, pollJobs(50*time.Millisecond))
		assert.GreaterOrEqual(t, n, 2)
		assert.LessOrEqual(t, n, 5)

		n = collect(230*time.Millisecond, pollBackends(50*time.Millisecond))
		assert.GreaterOrEqual(t, n, 2)
		assert.LessOrEqual(t, n, 5)
	})
}
