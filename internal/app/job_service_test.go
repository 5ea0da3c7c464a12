package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantum-dashboard/internal/model"
)

type recordingInvalidator struct {
	scopes []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, scope string) error {
	r.scopes = append(r.scopes, scope)
	return nil
}

func TestJobService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewJobService(f.jobs, f.backends, nil)
	ada := f.user(t, "ada", model.RoleUser)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateJobInput
		wantErr error
	}{
		{name: "missing name", input: CreateJobInput{Backend: "ionq_aria", Qubits: 2, Shots: 10}, wantErr: ErrInvalidInput},
		{name: "too many shots", input: CreateJobInput{Name: "x", Backend: "ionq_aria", Qubits: 2, Shots: MaxJobShots + 1}, wantErr: ErrInvalidInput},
		{name: "zero qubits", input: CreateJobInput{Name: "x", Backend: "ionq_aria", Shots: 10}, wantErr: ErrInvalidInput},
		{name: "unknown backend", input: CreateJobInput{Name: "x", Backend: "dwave", Qubits: 2, Shots: 10}, wantErr: ErrBackendNotFound},
		{name: "offline backend", input: CreateJobInput{Name: "x", Backend: "rigetti_ankaa", Qubits: 2, Shots: 10}, wantErr: ErrBackendUnavailable},
		{name: "exceeds backend qubits", input: CreateJobInput{Name: "x", Backend: "ionq_aria", Qubits: 26, Shots: 10}, wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, ada, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJobService_LifecycleAndScope(t *testing.T) {
	f := newFixture(t)
	stats := &recordingInvalidator{}
	svc := NewJobService(f.jobs, f.backends, stats)
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	ctx := context.Background()

	ada := f.user(t, "ada", model.RoleUser)
	bob := f.user(t, "bob", model.RoleUser)
	admin := f.user(t, "root", model.RoleAdmin)

	job, err := svc.Create(ctx, ada, CreateJobInput{Name: "Bell", Backend: "ionq_aria", Qubits: 2, Shots: 1024, Tags: []string{"demo"}})
	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, job.Status)
	assert.JSONEq(t, `["demo"]`, string(job.Tags))
	assert.Equal(t, []string{"1"}, stats.scopes)

	_, err = svc.Get(bob, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = svc.Get(admin, job.ID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, ada, job.ID, model.JobRunning)
	assert.ErrorIs(t, err, ErrForbidden)

	running, err := svc.UpdateStatus(ctx, admin, job.ID, model.JobRunning)
	require.NoError(t, err)
	require.NotNil(t, running.StartedAt)

	done, err := svc.UpdateStatus(ctx, admin, job.ID, model.JobCompleted)
	require.NoError(t, err)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.CompletedAt)

	_, err = svc.UpdateStatus(ctx, ada, job.ID, model.JobCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, admin, job.ID, "exploded")
	assert.ErrorIs(t, err, ErrInvalidInput)

	other, err := svc.Create(ctx, bob, CreateJobInput{Name: "GHZ", Backend: "qasm_simulator", Qubits: 3, Shots: 100})
	require.NoError(t, err)

	mine, total, err := svc.List(ada, ListJobsInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Bell", mine[0].Name)

	_, total, err = svc.List(admin, ListJobsInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, _, err = svc.List(ada, ListJobsInput{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	found, err := svc.Search(bob, "ghz", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	cancelled, err := svc.UpdateStatus(ctx, bob, other.ID, model.JobCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.JobCancelled, cancelled.Status)

	require.ErrorIs(t, svc.Delete(ctx, ada, other.ID), ErrJobNotFound)
	require.NoError(t, svc.Delete(ctx, bob, other.ID))
	_, err = svc.Get(bob, other.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
