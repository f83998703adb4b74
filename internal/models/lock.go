package models

import "time"

// MessageLock is a lease-based mutex keyed by (tenant, user). Exactly
// one holder; the lease self-expires so a crash while held cannot
// wedge the user.
type MessageLock struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Key        string    `json:"key" gorm:"size:160;uniqueIndex"`
	Token      string    `json:"token" gorm:"size:64"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"index"`
}
