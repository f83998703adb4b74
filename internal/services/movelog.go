package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// MoveLogExecutor reassigns the most recent transaction to another
// job. Reassignment moves money between jobs, so it always confirms.
type MoveLogExecutor struct {
	store storage.Store
}

// NewMoveLogExecutor creates the move-last-log executor.
func NewMoveLogExecutor(store storage.Store) *MoveLogExecutor {
	return &MoveLogExecutor{store: store}
}

// movePayload is the pending payload for move_last_log.
type movePayload struct {
	TxnID     uint        `json:"txn_id"`
	Summary   string      `json:"summary"`
	TargetJob int         `json:"target_job"` // 0 until picked
	Options   []jobOption `json:"options,omitempty"`
}

func (e *MoveLogExecutor) Family() string  { return IntentMoveLog }
func (e *MoveLogExecutor) Kinds() []string { return []string{models.PendingMoveLastLog} }

func (e *MoveLogExecutor) Execute(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*ExecResult, error) {
	txn, err := e.store.GetLastTransaction(user.TenantID, user.Phone)
	if err == storage.ErrNotFound {
		return &ExecResult{Reply: textReply("🧐 Nothing logged yet, so there's nothing to move.")}, nil
	}
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("%s %s (%s)", txn.Type, txn.AmountDisplay(), txn.Memo)
	p := movePayload{TxnID: txn.ID, Summary: summary}

	if m := jobNumberRe.FindStringSubmatch(msg.Text); m != nil {
		n, _ := resolveJobSelection(&InboundMessage{Text: m[0]}, nil)
		job, err := e.store.GetJob(user.TenantID, user.Phone, n)
		if err == storage.ErrNotFound {
			return &ExecResult{Reply: textReply("🧐 There's no job #%d. Say \"list jobs\" to see them.", n)}, nil
		}
		if err != nil {
			return nil, err
		}
		p.TargetJob = job.Number
		return &ExecResult{
			Reply: &Reply{
				Text:         fmt.Sprintf("↪️ Move your last entry — %s — to job #%d *%s*?\n\nReply *yes* to confirm or *cancel* to leave it.", summary, job.Number, job.Name),
				QuickReplies: []string{"yes", "cancel"},
			},
			Pending: &PendingSpec{Kind: models.PendingMoveLastLog, Payload: p, TTL: DefaultPendingTTL},
		}, nil
	}

	// No target named: offer the job list.
	jobs, err := e.store.GetJobs(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return &ExecResult{Reply: textReply("🏗️ No jobs on file to move it to. Say \"start job <name>\" first.")}, nil
	}
	for _, j := range jobs {
		p.Options = append(p.Options, jobOption{Number: j.Number, Name: j.Name})
	}
	return &ExecResult{
		Reply:   e.pickPrompt(p),
		Pending: &PendingSpec{Kind: models.PendingMoveLastLog, Payload: p, TTL: DefaultPendingTTL},
	}, nil
}

func (e *MoveLogExecutor) Confirm(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction) (*ExecResult, error) {
	var p movePayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}
	if p.TargetJob == 0 {
		res, err := e.Prompt(pending)
		if err != nil {
			return nil, err
		}
		res.Reply = &Reply{Text: "☝️ Pick the job first.\n\n" + res.Reply.Text}
		return res, nil
	}

	txn := &models.Transaction{}
	txns, err := e.store.GetTransactions(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range txns {
		if t.ID == p.TxnID {
			*txn = *t
			found = true
			break
		}
	}
	if !found {
		return &ExecResult{
			Reply:      textReply("🧐 That entry isn't there anymore — nothing moved."),
			ClearKinds: []string{models.PendingMoveLastLog},
		}, nil
	}

	txn.JobNumber = p.TargetJob
	if err := e.store.UpdateTransaction(txn); err != nil {
		return nil, err
	}
	return &ExecResult{
		Reply:      textReply("✅ Moved %s to job #%d.", p.Summary, p.TargetJob),
		ClearKinds: []string{models.PendingMoveLastLog},
		SideEffect: true,
	}, nil
}

func (e *MoveLogExecutor) Edit(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, replacement string) (*ExecResult, error) {
	return e.applyTarget(user, pending, &InboundMessage{Text: replacement})
}

func (e *MoveLogExecutor) Continue(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, intent Intent) (*ExecResult, error) {
	return e.applyTarget(user, pending, msg)
}

func (e *MoveLogExecutor) applyTarget(user *models.UserProfile, pending *models.PendingAction, msg *InboundMessage) (*ExecResult, error) {
	var p movePayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}
	number, ok := resolveJobSelection(msg, p.Options)
	if !ok {
		res, err := e.Prompt(pending)
		if err != nil {
			return nil, err
		}
		res.Reply = &Reply{Text: "🧐 I didn't catch which job. " + res.Reply.Text}
		return res, nil
	}
	job, err := e.store.GetJob(user.TenantID, user.Phone, number)
	if err == storage.ErrNotFound {
		return &ExecResult{Reply: textReply("🧐 There's no job #%d. Pick one from the list.", number)}, nil
	}
	if err != nil {
		return nil, err
	}
	p.TargetJob = job.Number
	return &ExecResult{
		Reply: &Reply{
			Text:         fmt.Sprintf("↪️ Move %s to job #%d *%s*?\n\nReply *yes* to confirm or *cancel* to leave it.", p.Summary, job.Number, job.Name),
			QuickReplies: []string{"yes", "cancel"},
		},
		Pending: &PendingSpec{Kind: models.PendingMoveLastLog, Payload: p, TTL: DefaultPendingTTL},
	}, nil
}

func (e *MoveLogExecutor) Prompt(pending *models.PendingAction) (*ExecResult, error) {
	var p movePayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}
	if p.TargetJob > 0 {
		return &ExecResult{Reply: &Reply{
			Text:         fmt.Sprintf("↪️ Move %s to job #%d?\n\nReply *yes* to confirm or *cancel* to leave it.", p.Summary, p.TargetJob),
			QuickReplies: []string{"yes", "cancel"},
		}}, nil
	}
	return &ExecResult{Reply: e.pickPrompt(p)}, nil
}

func (e *MoveLogExecutor) pickPrompt(p movePayload) *Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "↪️ Moving %s.\n\n🏗️ Which job should it go to?\n", p.Summary)
	for _, opt := range p.Options {
		fmt.Fprintf(&b, "• job_%d — %s\n", opt.Number, opt.Name)
	}
	b.WriteString("\nReply with the job number.")
	return &Reply{Text: b.String(), QuickReplies: []string{"cancel"}}
}
