package model

import (
	"time"

	"gorm.io/datatypes"
)

type PlanInterval string

const (
	PlanMonthly PlanInterval = "month"
	PlanYearly  PlanInterval = "year"
)

func (i PlanInterval) Valid() bool {
	switch i {
	case PlanMonthly, PlanYearly:
		return true
	}
	return false
}

type PricingPlan struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:64;not null;uniqueIndex" json:"name"`
	PriceCents      int            `gorm:"not null" json:"price_cents"`
	Currency        string         `gorm:"size:3;not null;default:USD" json:"currency"`
	Interval        PlanInterval   `gorm:"size:8;not null" json:"interval"`
	MaxQubits       int            `gorm:"not null" json:"max_qubits"`
	MaxJobsPerMonth int            `gorm:"not null" json:"max_jobs_per_month"`
	Features        datatypes.JSON `json:"features,omitempty"`
	Active          bool           `gorm:"not null" json:"active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
