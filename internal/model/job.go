package model

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{JobQueued, JobRunning, JobCompleted, JobFailed, JobCancelled}

func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a job in status s may move to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobRunning || next == JobCancelled
	case JobRunning:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	}
	return false
}

type Job struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Name        string         `gorm:"size:128;not null;index" json:"name"`
	Backend     string         `gorm:"size:64;not null;index" json:"backend"`
	Status      JobStatus      `gorm:"size:16;not null;index" json:"status"`
	Qubits      int            `gorm:"not null" json:"qubits"`
	Shots       int            `gorm:"not null" json:"shots"`
	Circuit     string         `gorm:"type:text" json:"circuit,omitempty"`
	Tags        datatypes.JSON `json:"tags,omitempty"`
	Results     datatypes.JSON `json:"results,omitempty"`
	Progress    int            `gorm:"not null;default:0" json:"progress"`
	Error       string         `gorm:"size:512" json:"error,omitempty"`
	SubmittedAt time.Time      `gorm:"index" json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
