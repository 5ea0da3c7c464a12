package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stepRecorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *stepRecorder) add(step string) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

type fakeShutdowner struct {
	name  string
	delay time.Duration
	err   error
	rec   *stepRecorder
}

func (f *fakeShutdowner) Shutdown(context.Context) error {
	f.rec.add(f.name + " start")
	time.Sleep(f.delay)
	f.rec.add(f.name + " done")
	return f.err
}

func TestShutdownInOrder_DrainsServerFirst(t *testing.T) {
	rec := &stepRecorder{}
	server := &fakeShutdowner{name: "server", delay: 30 * time.Millisecond, rec: rec}
	app := &fakeShutdowner{name: "app", rec: rec}

	assert.NoError(t, shutdownInOrder(context.Background(), server, app))
	assert.Equal(t, []string{"server start", "server done", "app start", "app done"}, rec.steps)
}

func TestShutdownInOrder_AppStillClosedWhenDrainFails(t *testing.T) {
	rec := &stepRecorder{}
	drain := errors.New("context deadline exceeded")
	server := &fakeShutdowner{name: "server", err: drain, rec: rec}
	app := &fakeShutdowner{name: "app", rec: rec}

	err := shutdownInOrder(context.Background(), server, app)
	assert.ErrorIs(t, err, drain)
	assert.Contains(t, rec.steps, "app done")
}
