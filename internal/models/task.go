package models

import "time"

// Task is a to-do item attached to a job. Number is per-user, the id
// the user completes tasks by ("done task 3").
type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	TenantID    string     `json:"tenant_id" gorm:"size:64;uniqueIndex:ux_task_tenant_user_number,priority:1"`
	UserID      string     `json:"user_id" gorm:"size:64;uniqueIndex:ux_task_tenant_user_number,priority:2"`
	Number      int        `json:"number" gorm:"uniqueIndex:ux_task_tenant_user_number,priority:3"`
	JobNumber   int        `json:"job_number"`
	Description string     `json:"description" gorm:"size:256"`
	Done        bool       `json:"done"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}
