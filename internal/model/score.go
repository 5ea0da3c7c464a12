package model

import "time"

// Score is one result of the learning mode games.
type Score struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Game      string    `gorm:"size:64;not null;index" json:"game"`
	Points    int       `gorm:"not null" json:"points"`
	Level     int       `gorm:"not null;default:1" json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry is the best score of one user for a game.
type LeaderboardEntry struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}
