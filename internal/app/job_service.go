package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/datatypes"

	"quantum-dashboard/internal/cache"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
)

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrBackendNotFound    = errors.New("backend not found")
	ErrBackendUnavailable = errors.New("backend is offline")
	ErrInvalidTransition  = errors.New("invalid job status transition")
)

const (
	MaxJobQubits = 1024
	MaxJobShots  = 100000
)

// StatsInvalidator drops cached analytics after job mutations.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, scope string) error
}

type JobService struct {
	jobs     *repository.JobRepository
	backends *repository.BackendRepository
	stats    StatsInvalidator
	now      func() time.Time
}

type CreateJobInput struct {
	Name    string
	Backend string
	Qubits  int
	Shots   int
	Circuit string
	Tags    []string
}

type ListJobsInput struct {
	Status  string
	Backend string
	Limit   int
	Offset  int
}

func NewJobService(jobs *repository.JobRepository, backends *repository.BackendRepository, stats StatsInvalidator) *JobService {
	return &JobService{
		jobs:     jobs,
		backends: backends,
		stats:    stats,
		now:      time.Now,
	}
}

func (s *JobService) List(actor Actor, input ListJobsInput) ([]model.Job, int64, error) {
	status := model.JobStatus(strings.TrimSpace(input.Status))
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.jobs.List(repository.JobFilter{
		UserID:  actor.scope(),
		Status:  status,
		Backend: strings.TrimSpace(input.Backend),
		Page:    repository.Page{Limit: input.Limit, Offset: input.Offset},
	})
}

func (s *JobService) Search(actor Actor, query string, limit int) ([]model.Job, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	return s.jobs.Search(actor.scope(), query, limit)
}

func (s *JobService) Get(actor Actor, id uint) (*model.Job, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	job, err := s.jobs.GetByID(id)
	if err != nil {
		return nil, err
	}
	if job == nil || (!actor.IsAdmin() && job.UserID != actor.UserID) {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *JobService) Create(ctx context.Context, actor Actor, input CreateJobInput) (*model.Job, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Backend = strings.TrimSpace(input.Backend)
	if err := validation.ValidateStruct(&input,
		validation.Field(&input.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&input.Backend, validation.Required, validation.Length(1, 64)),
		validation.Field(&input.Qubits, validation.Required, validation.Min(1), validation.Max(MaxJobQubits)),
		validation.Field(&input.Shots, validation.Required, validation.Min(1), validation.Max(MaxJobShots)),
		validation.Field(&input.Tags, validation.Length(0, 16), validation.Each(validation.Length(1, 32))),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	backend, err := s.backends.GetByName(input.Backend)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrBackendNotFound
	}
	if backend.Status == model.BackendOffline {
		return nil, ErrBackendUnavailable
	}
	if input.Qubits > backend.Qubits {
		return nil, fmt.Errorf("%w: %s supports at most %d qubits", ErrInvalidInput, backend.Name, backend.Qubits)
	}

	job := &model.Job{
		UserID:      actor.UserID,
		Name:        input.Name,
		Backend:     backend.Name,
		Status:      model.JobQueued,
		Qubits:      input.Qubits,
		Shots:       input.Shots,
		Circuit:     input.Circuit,
		SubmittedAt: s.now(),
	}
	if len(input.Tags) > 0 {
		tags, err := json.Marshal(input.Tags)
		if err != nil {
			return nil, fmt.Errorf("marshal job tags failed: %w", err)
		}
		job.Tags = datatypes.JSON(tags)
	}
	if err := s.jobs.Create(job); err != nil {
		return nil, err
	}
	s.invalidate(ctx, job.UserID)
	return job, nil
}

// UpdateStatus moves a job along its lifecycle. Owners may only cancel; other
// transitions are reserved to admins and the simulator.
func (s *JobService) UpdateStatus(ctx context.Context, actor Actor, id uint, status model.JobStatus) (*model.Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	job, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && status != model.JobCancelled {
		return nil, ErrForbidden
	}
	prev := job.Status
	if err := Transition(job, status, s.now()); err != nil {
		return nil, err
	}
	ok, err := s.jobs.UpdateIfStatus(job, prev)
	if err != nil {
		return nil, err
	}
	if !ok {
		// moved on or deleted since it was read
		current, err := s.jobs.GetByID(id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	s.invalidate(ctx, job.UserID)
	return job, nil
}

func (s *JobService) Delete(ctx context.Context, actor Actor, id uint) error {
	job, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	if err := s.jobs.Delete(job.ID); err != nil {
		return err
	}
	s.invalidate(ctx, job.UserID)
	return nil
}

func (s *JobService) invalidate(ctx context.Context, userID uint) {
	if s.stats == nil {
		return
	}
	_ = s.stats.Invalidate(ctx, strconv.FormatUint(uint64(userID), 10))
}

// Transition applies a status change and its timestamps to job.
func Transition(job *model.Job, next model.JobStatus, now time.Time) error {
	if !job.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}
	job.Status = next
	switch next {
	case model.JobRunning:
		job.StartedAt = &now
	case model.JobCompleted:
		job.Progress = 100
		job.CompletedAt = &now
	case model.JobFailed, model.JobCancelled:
		job.CompletedAt = &now
	}
	return nil
}

var _ StatsInvalidator = (*cache.StatsCache)(nil)
