// Package simulator advances submitted jobs through their lifecycle so the
// dashboard has live data without real quantum hardware behind it.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"gorm.io/datatypes"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/config"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
)

const (
	// measured register is capped so histograms stay small
	maxMeasuredQubits = 5
	// running jobs are advanced in chunks of this size per tick
	runningBatch = 200

	minProgressStep = 10
	maxProgressStep = 40
)

// Result is the payload stored in Job.Results for completed jobs.
type Result struct {
	Shots  int            `json:"shots"`
	Counts map[string]int `json:"counts"`
}

// JobStore is the job persistence the simulator needs. Writes are
// conditional on the status the job was read in.
type JobStore interface {
	ListByStatus(status model.JobStatus, limit int) ([]model.Job, error)
	UpdateIfStatus(job *model.Job, prev model.JobStatus) (bool, error)
	CountActiveByBackend() (map[string]int64, error)
}

type Simulator struct {
	jobs     JobStore
	backends *repository.BackendRepository
	stats    app.StatsInvalidator
	cfg      config.SimulatorConfig
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func New(
	jobs JobStore,
	backends *repository.BackendRepository,
	stats app.StatsInvalidator,
	cfg config.SimulatorConfig,
	logger *slog.Logger,
) *Simulator {
	if cfg.TickSeconds <= 0 {
		cfg.TickSeconds = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		jobs:     jobs,
		backends: backends,
		stats:    stats,
		cfg:      cfg,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Start runs Tick every configured interval until Stop is called.
func (s *Simulator) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx)
	s.logger.Info("job simulator started", "tick_seconds", s.cfg.TickSeconds, "batch_size", s.cfg.BatchSize)
}

func (s *Simulator) run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.TickSeconds) * time.Second)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("simulator tick failed", "error", err)
			}
		}
	}
}

// Stop halts the ticker and waits for an in-flight tick to finish.
func (s *Simulator) Stop(ctx context.Context) error {
	if s.stopCh == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopCh) })

	select {
	case <-s.doneCh:
		s.logger.Info("job simulator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick advances running jobs, then promotes queued ones, then refreshes
// backend queue lengths. Jobs promoted in a tick start advancing on the next.
func (s *Simulator) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[uint]struct{})

	running, err := s.jobs.ListByStatus(model.JobRunning, runningBatch)
	if err != nil {
		return err
	}
	for i := range running {
		job := &running[i]
		if err := s.advance(job); err != nil {
			return err
		}
		ok, err := s.jobs.UpdateIfStatus(job, model.JobRunning)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Debug("job changed during tick, skipped", "job_id", job.ID)
			continue
		}
		touched[job.UserID] = struct{}{}
		if job.Status.Terminal() {
			s.logger.Debug("simulated job finished", "job_id", job.ID, "status", job.Status)
		}
	}

	queued, err := s.jobs.ListByStatus(model.JobQueued, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	for i := range queued {
		job := &queued[i]
		if err := app.Transition(job, model.JobRunning, s.now()); err != nil {
			return err
		}
		job.Progress = 0
		ok, err := s.jobs.UpdateIfStatus(job, model.JobQueued)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Debug("job changed during tick, skipped", "job_id", job.ID)
			continue
		}
		touched[job.UserID] = struct{}{}
	}

	if err := s.refreshQueues(); err != nil {
		return err
	}

	if s.stats != nil {
		for userID := range touched {
			if err := s.stats.Invalidate(ctx, strconv.FormatUint(uint64(userID), 10)); err != nil {
				s.logger.Warn("invalidate stats failed", "user_id", userID, "error", err)
			}
		}
	}
	return nil
}

func (s *Simulator) advance(job *model.Job) error {
	job.Progress += minProgressStep + s.rng.Intn(maxProgressStep-minProgressStep+1)
	if job.Progress < 100 {
		return nil
	}

	if s.rng.Float64() < s.cfg.FailureRate {
		job.Progress = 100
		job.Error = "simulated hardware fault: qubit decoherence exceeded threshold"
		return app.Transition(job, model.JobFailed, s.now())
	}

	payload, err := json.Marshal(Result{Shots: job.Shots, Counts: Histogram(s.rng, job.Qubits, job.Shots)})
	if err != nil {
		return fmt.Errorf("marshal job results failed: %w", err)
	}
	job.Results = datatypes.JSON(payload)
	return app.Transition(job, model.JobCompleted, s.now())
}

func (s *Simulator) refreshQueues() error {
	counts, err := s.jobs.CountActiveByBackend()
	if err != nil {
		return err
	}
	backends, err := s.backends.List()
	if err != nil {
		return err
	}
	for _, backend := range backends {
		queue := int(counts[backend.Name])
		if queue == backend.QueueLength {
			continue
		}
		if err := s.backends.UpdateQueueLength(backend.Name, queue); err != nil {
			return err
		}
	}
	return nil
}

// Histogram draws measurement counts over the 2^min(qubits,5) basis states of
// the measured register. Counts always sum to shots.
func Histogram(rng *rand.Rand, qubits, shots int) map[string]int {
	width := qubits
	if width > maxMeasuredQubits {
		width = maxMeasuredQubits
	}
	if width < 1 {
		width = 1
	}
	states := 1 << width

	weights := make([]float64, states)
	var total float64
	for i := range weights {
		weights[i] = rng.Float64()
		total += weights[i]
	}

	counts := make(map[string]int, states)
	assigned := 0
	heaviest := 0
	for i, w := range weights {
		n := int(float64(shots) * w / total)
		counts[bitstring(i, width)] = n
		assigned += n
		if w > weights[heaviest] {
			heaviest = i
		}
	}
	counts[bitstring(heaviest, width)] += shots - assigned
	return counts
}

func bitstring(state, width int) string {
	return fmt.Sprintf("%0*b", width, state)
}
