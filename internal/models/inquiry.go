package models

import (
	"time"
)

const (
	InquiryStatusPending  = "pending"
	InquiryStatusReplied  = "replied"
	InquiryStatusResolved = "resolved"
)

type Inquiry struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:255;not null"`
	Email      string `gorm:"size:255;not null"`
	Subject    string `gorm:"size:255"`
	Message    string `gorm:"type:text;not null"`
	Status     string `gorm:"size:32;default:'pending'"`
	AdminReply string `gorm:"type:text"`
	RepliedAt  *time.Time
	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
