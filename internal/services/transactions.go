package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
	"github.com/ScottJutras/chief-ai-backend/internal/utils"
)

// TransactionExecutor handles the expense and revenue families. One
// instance per family; the pending kinds differ but the workflow is
// the same: parse → confirm → (optional job pick) → record.
type TransactionExecutor struct {
	store   storage.Store
	txnType string // models.TransactionExpense or models.TransactionRevenue
}

// NewExpenseExecutor creates the expense-family executor.
func NewExpenseExecutor(store storage.Store) *TransactionExecutor {
	return &TransactionExecutor{store: store, txnType: models.TransactionExpense}
}

// NewRevenueExecutor creates the revenue-family executor.
func NewRevenueExecutor(store storage.Store) *TransactionExecutor {
	return &TransactionExecutor{store: store, txnType: models.TransactionRevenue}
}

// txnPayload is the opaque pending payload for confirm and pick kinds.
type txnPayload struct {
	AmountCents int64       `json:"amount_cents"`
	Party       string      `json:"party"`
	Memo        string      `json:"memo"`
	Date        time.Time   `json:"date"`
	JobNumber   int         `json:"job_number"`
	Options     []jobOption `json:"options,omitempty"`
}

// jobOption is one rendered row of a job-pick list, stored in the
// payload so a positional row index resolves against what the user
// actually saw, not against a re-query.
type jobOption struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

func (e *TransactionExecutor) Family() string {
	if e.txnType == models.TransactionExpense {
		return IntentExpense
	}
	return IntentRevenue
}

func (e *TransactionExecutor) Kinds() []string {
	if e.txnType == models.TransactionExpense {
		return []string{models.PendingConfirmExpense, models.PendingPickJobForExpense}
	}
	return []string{models.PendingConfirmRevenue, models.PendingPickJobForRevenue}
}

func (e *TransactionExecutor) confirmKind() string {
	if e.txnType == models.TransactionExpense {
		return models.PendingConfirmExpense
	}
	return models.PendingConfirmRevenue
}

func (e *TransactionExecutor) pickKind() string {
	if e.txnType == models.TransactionExpense {
		return models.PendingPickJobForExpense
	}
	return models.PendingPickJobForRevenue
}

var (
	vendorRe    = regexp.MustCompile(`(?i)\bat\s+(.+?)(?:\s+(?:on|for|yesterday|today)\b.*)?$`)
	expMemoRe   = regexp.MustCompile(`(?i)\b(?:on|for)\s+(.+?)(?:\s+at\s+.*)?$`)
	payerRe     = regexp.MustCompile(`(?i)\bfrom\s+(.+?)(?:\s+(?:for|yesterday|today)\b.*)?$`)
	revMemoRe   = regexp.MustCompile(`(?i)\bfor\s+(.+?)$`)
	futureWordRe = regexp.MustCompile(`(?i)\b(tomorrow|next\s+(?:week|month))\b`)
	jobNumberRe = regexp.MustCompile(`(?i)\bjob\s*#?\s*([0-9]+)\b`)
	bareNumberRe = regexp.MustCompile(`^#?([0-9]+)$`)
)

func trimParty(s string) string {
	return strings.Trim(strings.TrimSpace(s), ".,!")
}

// parse fills a payload from free text. Missing fields stay zero; the
// confirm step prompts for what's still needed.
func (e *TransactionExecutor) parse(text string, now time.Time) txnPayload {
	p := txnPayload{Date: utils.ParseRelativeDate(text, now)}
	if cents, ok := utils.ParseMoneyCents(text); ok {
		p.AmountCents = cents
	}
	if e.txnType == models.TransactionExpense {
		if m := vendorRe.FindStringSubmatch(text); m != nil {
			p.Party = trimParty(m[1])
		}
		if m := expMemoRe.FindStringSubmatch(text); m != nil {
			p.Memo = trimParty(m[1])
		}
	} else {
		if m := payerRe.FindStringSubmatch(text); m != nil {
			p.Party = trimParty(m[1])
		}
		if m := revMemoRe.FindStringSubmatch(text); m != nil {
			p.Memo = trimParty(m[1])
		}
	}
	if m := jobNumberRe.FindStringSubmatch(text); m != nil {
		p.JobNumber, _ = strconv.Atoi(m[1])
	}
	return p
}

// merge overlays freshly parsed fields onto an existing payload;
// stacked corrections replace only what the new message mentions.
func merge(base, update txnPayload, text string) txnPayload {
	if update.AmountCents > 0 {
		base.AmountCents = update.AmountCents
	}
	if update.Party != "" {
		base.Party = update.Party
	}
	if update.Memo != "" {
		base.Memo = update.Memo
	}
	if update.JobNumber > 0 {
		base.JobNumber = update.JobNumber
	}
	if strings.Contains(strings.ToLower(text), "yesterday") {
		base.Date = update.Date
	}
	return base
}

func (e *TransactionExecutor) Execute(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*ExecResult, error) {
	if futureWordRe.MatchString(msg.Text) {
		return &ExecResult{Reply: textReply("📅 I can only log things that already happened — tell me again once it's done.")}, nil
	}

	p := e.parse(msg.Text, time.Now())
	if p.JobNumber == 0 {
		// Default to the single active job when there is exactly one;
		// more than one gets a pick after confirmation.
		active, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, models.JobStatusActive)
		if err != nil {
			return nil, err
		}
		if len(active) == 1 {
			p.JobNumber = active[0].Number
		}
	}

	res := &ExecResult{
		Pending: &PendingSpec{Kind: e.confirmKind(), Payload: p, TTL: DefaultPendingTTL},
	}
	if p.AmountCents == 0 {
		res.Reply = &Reply{
			Text:         fmt.Sprintf("🧐 I couldn't find the amount. How much was it?\n\n%s", e.summary(p)),
			QuickReplies: []string{"cancel"},
		}
		return res, nil
	}
	res.Reply = e.confirmPrompt(p)
	return res, nil
}

func (e *TransactionExecutor) Confirm(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction) (*ExecResult, error) {
	var p txnPayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}

	switch pending.Kind {
	case e.confirmKind():
		if p.AmountCents == 0 {
			// Validation gap: keep awaiting the correction.
			return &ExecResult{Reply: textReply("🧐 I still need the amount before I can record this. How much was it?")}, nil
		}
		if p.JobNumber == 0 {
			active, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, models.JobStatusActive)
			if err != nil {
				return nil, err
			}
			if len(active) > 1 {
				return e.swapToJobPick(p, active, pending.Kind)
			}
			// Zero active jobs records as overhead.
		}
		return e.record(user, msg, p, pending.Kind)

	case e.pickKind():
		// A bare "yes" can't pick a row.
		res, err := e.Prompt(pending)
		if err != nil {
			return nil, err
		}
		res.Reply = &Reply{
			Text:         "☝️ Pick a job from the list first.\n\n" + res.Reply.Text,
			QuickReplies: res.Reply.QuickReplies,
		}
		return res, nil
	}
	return nil, fmt.Errorf("unexpected pending kind %q", pending.Kind)
}

func (e *TransactionExecutor) Edit(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, replacement string) (*ExecResult, error) {
	if pending.Kind == e.pickKind() {
		res, err := e.Prompt(pending)
		if err != nil {
			return nil, err
		}
		res.Reply = &Reply{Text: "☝️ Nothing to edit here — pick a job from the list.\n\n" + res.Reply.Text}
		return res, nil
	}

	var p txnPayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}
	update := e.parse(replacement, time.Now())
	if update.AmountCents == 0 && update.Party == "" && update.Memo == "" && update.JobNumber == 0 {
		// Rejected replacement; the edit stays open.
		return &ExecResult{Reply: textReply("🧐 I couldn't read a new amount, vendor or job out of that. Try something like \"$54\" or \"at Rona\".")}, nil
	}
	p = merge(p, update, replacement)

	return &ExecResult{
		Reply:   e.confirmPrompt(p),
		Pending: &PendingSpec{Kind: pending.Kind, Payload: p, TTL: DefaultPendingTTL},
	}, nil
}

func (e *TransactionExecutor) Continue(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, intent Intent) (*ExecResult, error) {
	var p txnPayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}

	// change_job swaps a confirm into an explicit job pick.
	if intent.Family == IntentControl && intent.Token == TokenChangeJob {
		jobs, err := e.pickableJobs(user)
		if err != nil {
			return nil, err
		}
		if len(jobs) == 0 {
			return &ExecResult{Reply: textReply("🏗️ No jobs on file yet. Say \"start job <name>\" first.")}, nil
		}
		return e.swapToJobPick(p, jobs, pending.Kind)
	}

	switch pending.Kind {
	case e.confirmKind():
		// Stacked correction before confirmation.
		update := e.parse(msg.Text, time.Now())
		p = merge(p, update, msg.Text)
		return &ExecResult{
			Reply:   e.confirmPrompt(p),
			Pending: &PendingSpec{Kind: pending.Kind, Payload: p, TTL: DefaultPendingTTL},
		}, nil

	case e.pickKind():
		number, ok := resolveJobSelection(msg, p.Options)
		if !ok {
			res, err := e.Prompt(pending)
			if err != nil {
				return nil, err
			}
			res.Reply = &Reply{Text: "🧐 I didn't catch which job. " + res.Reply.Text}
			return res, nil
		}
		if _, err := e.store.GetJob(user.TenantID, user.Phone, number); err != nil {
			if err == storage.ErrNotFound {
				return &ExecResult{Reply: textReply("🧐 There's no job #%d. Pick one from the list.", number)}, nil
			}
			return nil, err
		}
		p.JobNumber = number
		return e.record(user, msg, p, pending.Kind)
	}
	return nil, fmt.Errorf("unexpected pending kind %q", pending.Kind)
}

func (e *TransactionExecutor) Prompt(pending *models.PendingAction) (*ExecResult, error) {
	var p txnPayload
	if err := decodePayload(pending, &p); err != nil {
		return nil, err
	}
	if pending.Kind == e.pickKind() {
		return &ExecResult{Reply: e.pickPrompt(p)}, nil
	}
	return &ExecResult{Reply: e.confirmPrompt(p)}, nil
}

// resolveJobSelection turns a list reply or free text into a job
// number. A business-key row id ("job_12") is used directly; a
// positional index is resolved against the options stored in the
// payload when the list was rendered. Free text accepts "job 12" or a
// bare number, which is always a job number, never an index.
func resolveJobSelection(msg *InboundMessage, options []jobOption) (int, bool) {
	if msg.List != nil {
		if msg.List.BusinessKey == "job" {
			return msg.List.KeyValue, true
		}
		if msg.List.IsIndex {
			idx := msg.List.RowIndex
			if idx >= 1 && idx <= len(options) {
				return options[idx-1].Number, true
			}
			return 0, false
		}
	}
	if m := jobNumberRe.FindStringSubmatch(msg.Text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := bareNumberRe.FindStringSubmatch(strings.TrimSpace(msg.Text)); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

func (e *TransactionExecutor) pickableJobs(user *models.UserProfile) ([]*models.Job, error) {
	jobs, err := e.store.GetJobs(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	var open []*models.Job
	for _, j := range jobs {
		if j.Status != models.JobStatusFinished {
			open = append(open, j)
		}
	}
	return open, nil
}

func (e *TransactionExecutor) swapToJobPick(p txnPayload, jobs []*models.Job, fromKind string) (*ExecResult, error) {
	p.Options = p.Options[:0]
	for _, j := range jobs {
		p.Options = append(p.Options, jobOption{Number: j.Number, Name: j.Name})
	}
	return &ExecResult{
		Reply:      e.pickPrompt(p),
		Pending:    &PendingSpec{Kind: e.pickKind(), Payload: p, TTL: DefaultPendingTTL},
		ClearKinds: []string{fromKind},
	}, nil
}

// record applies the business mutation and closes the workflow.
func (e *TransactionExecutor) record(user *models.UserProfile, msg *InboundMessage, p txnPayload, clearKind string) (*ExecResult, error) {
	txn := &models.Transaction{
		TenantID:          user.TenantID,
		UserID:            user.Phone,
		Type:              e.txnType,
		AmountCents:       p.AmountCents,
		Party:             p.Party,
		Memo:              p.Memo,
		JobNumber:         p.JobNumber,
		Date:              p.Date,
		ProviderMessageID: msg.ProviderMessageID,
	}
	if err := e.store.CreateTransaction(txn); err != nil {
		return nil, err
	}

	target := "overhead"
	if p.JobNumber > 0 {
		target = fmt.Sprintf("job #%d", p.JobNumber)
	}
	verb := "Expense"
	if e.txnType == models.TransactionRevenue {
		verb = "Payment"
	}
	return &ExecResult{
		Reply:      textReply("✅ %s %s recorded against %s.", verb, utils.FormatMoney(p.AmountCents), target),
		ClearKinds: []string{clearKind},
		SideEffect: true,
	}, nil
}

func (e *TransactionExecutor) summary(p txnPayload) string {
	var b strings.Builder
	if e.txnType == models.TransactionExpense {
		b.WriteString("💸 Expense")
	} else {
		b.WriteString("💰 Payment")
	}
	if p.AmountCents > 0 {
		fmt.Fprintf(&b, ": %s", utils.FormatMoney(p.AmountCents))
	}
	if p.Memo != "" {
		fmt.Fprintf(&b, " — %s", p.Memo)
	}
	if p.Party != "" {
		if e.txnType == models.TransactionExpense {
			fmt.Fprintf(&b, " at %s", p.Party)
		} else {
			fmt.Fprintf(&b, " from %s", p.Party)
		}
	}
	fmt.Fprintf(&b, " (%s)", p.Date.Format("Jan 2"))
	if p.JobNumber > 0 {
		fmt.Fprintf(&b, " → job #%d", p.JobNumber)
	}
	return b.String()
}

func (e *TransactionExecutor) confirmPrompt(p txnPayload) *Reply {
	return &Reply{
		Text:         e.summary(p) + "\n\nReply *yes* to confirm, *edit* to change, or *cancel* to discard.",
		QuickReplies: confirmQuickReplies,
	}
}

func (e *TransactionExecutor) pickPrompt(p txnPayload) *Reply {
	var b strings.Builder
	b.WriteString(e.summary(p))
	b.WriteString("\n\n🏗️ Which job does this belong to?\n")
	for _, opt := range p.Options {
		fmt.Fprintf(&b, "• job_%d — %s\n", opt.Number, opt.Name)
	}
	b.WriteString("\nReply with the job number.")
	return &Reply{Text: b.String(), QuickReplies: []string{"cancel", "skip"}}
}
