package model

import "time"

type BackendStatus string

const (
	BackendOnline      BackendStatus = "online"
	BackendMaintenance BackendStatus = "maintenance"
	BackendOffline     BackendStatus = "offline"
)

func (s BackendStatus) Valid() bool {
	switch s {
	case BackendOnline, BackendMaintenance, BackendOffline:
		return true
	}
	return false
}

// Backend is a quantum processor or simulator jobs are submitted to.
type Backend struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	Name           string        `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Provider       string        `gorm:"size:64;not null" json:"provider"`
	Qubits         int           `gorm:"not null" json:"qubits"`
	Simulator      bool          `gorm:"not null;default:false" json:"simulator"`
	Status         BackendStatus `gorm:"size:16;not null;index" json:"status"`
	QueueLength    int           `gorm:"not null;default:0" json:"queue_length"`
	AvgWaitSeconds int           `gorm:"not null;default:0" json:"avg_wait_seconds"`
	ErrorRate      float64       `gorm:"not null;default:0" json:"error_rate"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
