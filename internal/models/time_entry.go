package models

import "time"

// TimeEntry is one clock-in/clock-out pair. ClockOut nil means the
// entry is still open.
type TimeEntry struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	TenantID  string     `json:"tenant_id" gorm:"size:64;index"`
	UserID    string     `json:"user_id" gorm:"size:64;index"`
	JobNumber int        `json:"job_number"`
	ClockIn   time.Time  `json:"clock_in"`
	ClockOut  *time.Time `json:"clock_out"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
