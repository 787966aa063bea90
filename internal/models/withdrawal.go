package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusProcessed = "processed"
)

// WithdrawalRequest is a refund request. At most one may ever exist per
// entry, enforced by the unique index on EntryID.
type WithdrawalRequest struct {
	ID            uint            `gorm:"primaryKey"`
	EntryID       uint            `gorm:"not null;uniqueIndex"`
	Email         string          `gorm:"size:255;not null"`
	Name          string          `gorm:"size:255;not null"`
	EntryCount    int             `gorm:"not null"`
	TotalPaid     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	ServiceCharge decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	RefundAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Status        string          `gorm:"size:32;default:'pending'"`
	AdminNotes    string          `gorm:"type:text"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
