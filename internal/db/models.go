package db

import (
	"time"

	"gorm.io/datatypes"
)

type GameSnapshot struct {
	SessionID string         `gorm:"primaryKey;size:64"`
	JoinCode  string         `gorm:"size:4;index;not null"`
	State     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type GameResult struct {
	ID              uint      `gorm:"primaryKey"`
	SessionID       string    `gorm:"size:64;uniqueIndex;not null"`
	JoinCode        string    `gorm:"size:4;not null"`
	WinnerAccountID *string   `gorm:"size:128;index"`
	WinnerName      string    `gorm:"size:64;not null"`
	TotalRounds     int       `gorm:"not null"`
	DurationSeconds int       `gorm:"not null"`
	PlayerCount     int       `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

type PlayerStatistic struct {
	AccountID    string    `gorm:"primaryKey;size:128"`
	Username     string    `gorm:"size:64;not null"`
	GamesPlayed  int       `gorm:"not null;default:0"`
	GamesWon     int       `gorm:"not null;default:0"`
	TotalPoints  int       `gorm:"not null;default:0"`
	HighestScore int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type MemeTemplate struct {
	ID            string    `gorm:"primaryKey;size:64"`
	Name          string    `gorm:"size:128"`
	URL           string    `gorm:"size:512;not null"`
	CaptionFields int       `gorm:"not null"`
	Description   string    `gorm:"size:512"`
	Category      string    `gorm:"size:64;index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
