package models

import (
	"time"
)

// EmailLog is an append-only audit of every notification attempt,
// written regardless of whether the send succeeded.
type EmailLog struct {
	ID             uint   `gorm:"primaryKey"`
	RecipientEmail string `gorm:"size:255;not null"`
	Subject        string `gorm:"size:255"`
	Type           string `gorm:"size:64;index"`
	Success        bool
	ErrorMessage   string `gorm:"type:text"`
	CreatedAt      time.Time
}
