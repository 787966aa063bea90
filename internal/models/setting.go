package models

import (
	"time"
)

// Setting is a generic key/value store for operational state
// (e.g. last monthly reset time, default winner payout).
type Setting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}
