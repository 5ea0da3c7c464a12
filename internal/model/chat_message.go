package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChatMessage is a persisted collaboration chat line. ID is the UUID the hub
// assigned when broadcasting it.
type ChatMessage struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	ChannelID   string         `gorm:"size:32;not null;index" json:"channel_id"`
	UserID      string         `gorm:"size:64;not null;index" json:"user_id"`
	UserName    string         `gorm:"size:128;not null" json:"user_name"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Type        string         `gorm:"size:16;not null" json:"type"`
	Attachments datatypes.JSON `json:"attachments,omitempty"`
	SentAt      time.Time      `gorm:"index" json:"sent_at"`
	CreatedAt   time.Time      `json:"created_at"`
}
