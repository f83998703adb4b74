package models

import "time"

// Job status constants
const (
	JobStatusActive   = "active"
	JobStatusPaused   = "paused"
	JobStatusFinished = "finished"
)

// Job is a billable job/site. Number is the per-user business key the
// user sees ("job 12"); it is the id stamped into interactive list
// rows, never the row position.
type Job struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	TenantID   string     `json:"tenant_id" gorm:"size:64;uniqueIndex:ux_job_tenant_user_number,priority:1"`
	UserID     string     `json:"user_id" gorm:"size:64;uniqueIndex:ux_job_tenant_user_number,priority:2"`
	Number     int        `json:"number" gorm:"uniqueIndex:ux_job_tenant_user_number,priority:3"`
	Name       string     `json:"name" gorm:"size:128"`
	Status     string     `json:"status" gorm:"size:16;index"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
