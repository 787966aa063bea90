package models

import (
	"time"
)

const (
	EntryStatusActive     = "active"
	EntryStatusExpired    = "expired"
	EntryStatusWinnerPaid = "winner_paid"
)

// Entry is one membership slot. Email and reference code are unique at the
// storage layer; those constraints are the serialization points for
// concurrent enrollments.
type Entry struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"size:255;not null"`
	Email            string `gorm:"size:255;uniqueIndex;not null"`
	ReferenceCode    string `gorm:"size:16;uniqueIndex;not null"`
	Paid             bool   `gorm:"default:false"`
	Status           string `gorm:"size:32;default:'active';index"`
	LastPaymentDate  time.Time
	RenewalDue       time.Time
	ReferralCodeUsed string `gorm:"size:16"`
	ReferrerID       *uint  `gorm:"index"`
	ReferralCount    int    `gorm:"default:0"`
	EntryCount       int    `gorm:"default:1"`
	TermsAccepted    bool
	TermsAcceptedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
