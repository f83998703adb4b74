package models

import "time"

// PendingAction kinds. At most one live record exists per
// (tenant, user, kind); different kinds may coexist.
const (
	PendingConfirmExpense    = "confirm_expense"
	PendingPickJobForExpense = "pick_job_for_expense"
	PendingConfirmRevenue    = "confirm_revenue"
	PendingPickJobForRevenue = "pick_job_for_revenue"
	PendingMoveLastLog       = "move_last_log"
	PendingNeedClockOutTime  = "timeclock_need_clock_out_time"
)

// PendingAction is a durable record of an open multi-turn workflow
// awaiting a specific reply. Payload is opaque JSON owned by the
// executor that created the record. The router owns the remaining
// flags: Parked (set by "skip", cleared by "resume"), AwaitingEdit
// (set by "edit", cleared when the replacement value arrives) and
// AutoAdvanceReplyTo (provider id of the replacement message; the next
// message confirms implicitly only when it quotes that id).
type PendingAction struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	TenantID           string    `json:"tenant_id" gorm:"size:64;uniqueIndex:ux_pending_tenant_user_kind,priority:1"`
	UserID             string    `json:"user_id" gorm:"size:64;uniqueIndex:ux_pending_tenant_user_kind,priority:2"`
	Kind               string    `json:"kind" gorm:"size:64;uniqueIndex:ux_pending_tenant_user_kind,priority:3"`
	Payload            string    `json:"payload" gorm:"type:text"`
	Parked             bool      `json:"parked"`
	AwaitingEdit       bool      `json:"awaiting_edit"`
	AutoAdvanceReplyTo string    `json:"auto_advance_reply_to" gorm:"size:128"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at" gorm:"index"`
}

// Expired reports whether the record should be treated as absent.
func (p *PendingAction) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
