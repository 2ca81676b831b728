package db

import (
	"time"

	"gorm.io/datatypes"
)

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	SessionID string         `gorm:"size:64;index;not null"`
	Round     *int           `gorm:"index"`
	PlayerID  *string        `gorm:"size:64;index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
