package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WinnerStatusPending = "pending"
	WinnerStatusPaid    = "paid"
)

// Winner snapshots the entry it was drawn from so the public announcement
// stays stable even if the entry is later renewed.
type Winner struct {
	ID            uint   `gorm:"primaryKey"`
	EntryID       uint   `gorm:"not null;index"`
	Name          string `gorm:"size:255;not null"`
	Email         string `gorm:"size:255;not null"`
	ReferenceCode string `gorm:"size:16;not null"`
	AnnouncedAt   time.Time
	PaymentStatus string          `gorm:"size:32;default:'pending'"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2)"`
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
