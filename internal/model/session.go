package model

import "time"

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

// Session is a collaboration session. Code is the share code clients put in
// the sessionId query parameter of the collaboration socket.
type Session struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	Code            string        `gorm:"size:32;not null;uniqueIndex" json:"code"`
	Name            string        `gorm:"size:128;not null" json:"name"`
	ProjectID       uint          `gorm:"index" json:"project_id"`
	OwnerID         uint          `gorm:"not null;index" json:"owner_id"`
	Status          SessionStatus `gorm:"size:16;not null;default:active" json:"status"`
	DocumentContent string        `gorm:"type:text" json:"document_content"`
	DocumentVersion int           `gorm:"not null;default:0" json:"document_version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
