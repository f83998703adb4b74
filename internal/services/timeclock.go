package services

import (
	"context"
	"regexp"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
	"github.com/ScottJutras/chief-ai-backend/internal/utils"
)

// TimeclockExecutor handles clock-in/clock-out. Its one pending kind
// covers the forgot-to-clock-out case where the entry can't be closed
// at "now" and the user owes an explicit time.
type TimeclockExecutor struct {
	store storage.Store
}

// NewTimeclockExecutor creates the timeclock executor.
func NewTimeclockExecutor(store storage.Store) *TimeclockExecutor {
	return &TimeclockExecutor{store: store}
}

// clockOutPayload references the entry awaiting its close time.
type clockOutPayload struct {
	EntryID uint      `json:"entry_id"`
	ClockIn time.Time `json:"clock_in"`
}

var clockOutCueRe = regexp.MustCompile(`(?i)\b(clock(?:ed)?\s+out|punch(?:ed)?\s+out|end(?:ed)?\s+my\s+(?:day|shift))\b`)

func (e *TimeclockExecutor) Family() string { return IntentTimeclock }

func (e *TimeclockExecutor) Kinds() []string {
	return []string{models.PendingNeedClockOutTime}
}

func (e *TimeclockExecutor) Execute(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*ExecResult, error) {
	if clockOutCueRe.MatchString(msg.Text) {
		return e.clockOut(user, msg)
	}
	return e.clockIn(user, msg)
}

func (e *TimeclockExecutor) clockIn(user *models.UserProfile, msg *InboundMessage) (*ExecResult, error) {
	if open, err := e.store.GetOpenTimeEntry(user.TenantID, user.Phone); err == nil {
		return &ExecResult{Reply: textReply("🕐 You're already clocked in since %s. Say \"clock out\" first.",
			open.ClockIn.Format("3:04 PM Mon"))}, nil
	} else if err != storage.ErrNotFound {
		return nil, err
	}

	jobNumber := 0
	if active, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, models.JobStatusActive); err != nil {
		return nil, err
	} else if len(active) > 0 {
		jobNumber = active[0].Number
	}

	now := time.Now()
	entry := &models.TimeEntry{
		TenantID:  user.TenantID,
		UserID:    user.Phone,
		JobNumber: jobNumber,
		ClockIn:   now,
	}
	if err := e.store.CreateTimeEntry(entry); err != nil {
		return nil, err
	}
	return &ExecResult{
		Reply:      textReply("🕐 Clocked in at %s. Have a good one!", now.Format("3:04 PM")),
		SideEffect: true,
	}, nil
}

func (e *TimeclockExecutor) clockOut(user *models.UserProfile, msg *InboundMessage) (*ExecResult, error) {
	open, err := e.store.GetOpenTimeEntry(user.TenantID, user.Phone)
	if err == storage.ErrNotFound {
		return &ExecResult{Reply: textReply("🧐 You're not clocked in right now.")}, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if t, ok := utils.ParseClockTime(msg.Text, open.ClockIn); ok {
		return e.close(user, msg, open, t)
	}

	sameDay := open.ClockIn.Year() == now.Year() && open.ClockIn.YearDay() == now.YearDay()
	if sameDay {
		return e.close(user, msg, open, now)
	}

	// The entry crossed midnight; closing it at "now" would bill a
	// phantom overnight shift.
	return &ExecResult{
		Reply: textReply("🕐 Looks like you forgot to clock out on %s. What time did you finish? (e.g. \"5pm\")",
			open.ClockIn.Format("Monday")),
		Pending: &PendingSpec{
			Kind:    models.PendingNeedClockOutTime,
			Payload: clockOutPayload{EntryID: open.ID, ClockIn: open.ClockIn},
			TTL:     DefaultPendingTTL,
		},
	}, nil
}

func (e *TimeclockExecutor) close(user *models.UserProfile, msg *InboundMessage, entry *models.TimeEntry, at time.Time) (*ExecResult, error) {
	if !at.After(entry.ClockIn) {
		return &ExecResult{Reply: textReply("🧐 %s is before you clocked in (%s). What time did you finish?",
			at.Format("3:04 PM"), entry.ClockIn.Format("3:04 PM"))}, nil
	}
	entry.ClockOut = &at
	if err := e.store.UpdateTimeEntry(entry); err != nil {
		return nil, err
	}
	worked := at.Sub(entry.ClockIn).Round(time.Minute)
	return &ExecResult{
		Reply:      textReply("✅ Clocked out at %s — %s on the clock.", at.Format("3:04 PM"), worked),
		ClearKinds: []string{models.PendingNeedClockOutTime},
		SideEffect: true,
	}, nil
}

// Confirm on this kind can't do anything with a bare "yes"; the user
// owes a time.
func (e *TimeclockExecutor) Confirm(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction) (*ExecResult, error) {
	return e.Prompt(pending)
}

func (e *TimeclockExecutor) Edit(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, replacement string) (*ExecResult, error) {
	return e.applyTime(user, msg, pending, replacement)
}

func (e *TimeclockExecutor) Continue(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, intent Intent) (*ExecResult, error) {
	return e.applyTime(user, msg, pending, msg.Text)
}

func (e *TimeclockExecutor) applyTime(user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, text string) (*ExecResult, error) {
	var p clockOutPayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}
	at, ok := utils.ParseClockTime(text, p.ClockIn)
	if !ok {
		return &ExecResult{Reply: textReply("🧐 I need a time like \"5pm\" or \"17:30\". When did you finish?")}, nil
	}
	open, err := e.store.GetOpenTimeEntry(user.TenantID, user.Phone)
	if err == storage.ErrNotFound || (err == nil && open.ID != p.EntryID) {
		// Entry already closed elsewhere; nothing left to do.
		return &ExecResult{
			Reply:      textReply("✅ That entry is already squared away."),
			ClearKinds: []string{models.PendingNeedClockOutTime},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return e.close(user, msg, open, at)
}

func (e *TimeclockExecutor) Prompt(pending *models.PendingAction) (*ExecResult, error) {
	var p clockOutPayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}
	return &ExecResult{Reply: textReply("🕐 Still need your clock-out time for %s. What time did you finish? (e.g. \"5pm\")",
		p.ClockIn.Format("Monday"))}, nil
}
