package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// Router is the pending-action state machine. A user is Idle (no live,
// unparked pending action) or AwaitingControl(kind, payload); the
// router decides whether an inbound message continues the open
// workflow or falls through to classification.
//
// With multiple live kinds the most-recently-created one resolves
// first; a control token is scoped only to that kind.
type Router struct {
	store    storage.Store
	byFamily map[string]Executor
	byKind   map[string]Executor
}

// NewRouter wires the executor registry.
func NewRouter(store storage.Store, executors ...Executor) *Router {
	r := &Router{
		store:    store,
		byFamily: make(map[string]Executor),
		byKind:   make(map[string]Executor),
	}
	for _, ex := range executors {
		r.byFamily[ex.Family()] = ex
		for _, kind := range ex.Kinds() {
			r.byKind[kind] = ex
		}
	}
	return r
}

// ExecutorFor returns the executor claiming an intent family.
func (r *Router) ExecutorFor(family string) (Executor, bool) {
	ex, ok := r.byFamily[family]
	return ex, ok
}

// LivePending returns the user's unexpired, unparked pending actions,
// newest first.
func (r *Router) LivePending(user *models.UserProfile) ([]*models.PendingAction, error) {
	all, err := r.store.GetPendingActions(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	var live []*models.PendingAction
	for _, pa := range all {
		if !pa.Parked {
			live = append(live, pa)
		}
	}
	return live, nil
}

// AbortAll implements the global hard controls: every pending action
// for the user, parked ones included, is discarded.
func (r *Router) AbortAll(user *models.UserProfile) (*Reply, error) {
	n, err := r.store.DeleteAllPendingActions(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	return replyCancelled(n), nil
}

// RouteResult reports what the router did with the message.
type RouteResult struct {
	Reply      *Reply
	SideEffect bool
}

// Route handles a message while at least one pending action is live.
// classify runs stages 3–5 lazily; it is only consulted when the
// message is neither a control token, an awaited edit value, nor an
// auto-advance confirmation.
func (r *Router) Route(ctx context.Context, user *models.UserProfile, msg *InboundMessage,
	head *models.PendingAction, classify func() Intent) (*RouteResult, error) {

	ex, ok := r.byKind[head.Kind]
	if !ok {
		// A kind nobody owns is a stale record from an old deploy;
		// drop it rather than wedge the user.
		log.Printf("⚠️ orphaned pending kind %q for %s — discarding", head.Kind, user.Phone)
		if err := r.store.DeletePendingAction(user.TenantID, user.Phone, head.Kind); err != nil {
			return nil, err
		}
		return &RouteResult{Reply: replyCapabilitySummary()}, nil
	}

	// Stage 2: strict control-token match, exact equality only.
	if token, isToken := ParseControlToken(msg.Text); isToken {
		return r.handleToken(ctx, user, msg, head, ex, token)
	}

	// An open edit consumes the next free-text message as the
	// replacement value.
	if head.AwaitingEdit {
		return r.applyEdit(ctx, user, msg, head, ex)
	}

	// Auto-advance after edit: implicit yes, but only when this
	// message quotes the exact provider id recorded at edit-time.
	if head.AutoAdvanceReplyTo != "" && msg.ReplyToID != "" && msg.ReplyToID == head.AutoAdvanceReplyTo {
		return r.confirm(ctx, user, msg, head, ex)
	}

	// Interactive list replies belong to the open workflow regardless
	// of what the text classifies as.
	if msg.List != nil {
		return r.applyResult(user)(ex.Continue(ctx, user, msg, head, Intent{Family: ex.Family()}))
	}

	intent := classify()
	if intent.Family == ex.Family() {
		// Same-family continuation: stacked correction before the
		// confirmation lands.
		return r.applyResult(user)(ex.Continue(ctx, user, msg, head, intent))
	}
	if intent.Family != IntentNone {
		// A recognized but unrelated command: nudge, stay awaiting.
		return &RouteResult{Reply: replyNudge(head.Kind)}, nil
	}

	// Unclaimed message: offer it to the open workflow. Kinds that
	// await a value (a clock-out time, a job number) consume it;
	// otherwise the executor re-renders its prompt.
	return r.applyResult(user)(ex.Continue(ctx, user, msg, head, intent))
}

func (r *Router) handleToken(ctx context.Context, user *models.UserProfile, msg *InboundMessage,
	head *models.PendingAction, ex Executor, token ControlToken) (*RouteResult, error) {

	switch token {
	case TokenYes:
		return r.confirm(ctx, user, msg, head, ex)

	case TokenEdit:
		head.AwaitingEdit = true
		head.AutoAdvanceReplyTo = ""
		if err := r.store.SavePendingAction(head); err != nil {
			return nil, err
		}
		return &RouteResult{Reply: textReply("✏️ Okay — send the corrected value (e.g. \"$54\" or \"at Rona\").")}, nil

	case TokenResume:
		res, err := ex.Prompt(head)
		if err != nil {
			return nil, err
		}
		return &RouteResult{Reply: res.Reply}, nil

	case TokenSkip:
		head.Parked = true
		head.AwaitingEdit = false
		head.AutoAdvanceReplyTo = ""
		if err := r.store.SavePendingAction(head); err != nil {
			return nil, err
		}
		return &RouteResult{Reply: replyParked(head.Kind)}, nil

	case TokenChangeJob:
		return r.applyResult(user)(ex.Continue(ctx, user, msg, head, Intent{Family: IntentControl, Token: TokenChangeJob}))

	case TokenCancel:
		// Unreachable: the engine's global abort runs first. Kept so
		// the token switch is exhaustive.
		reply, err := r.AbortAll(user)
		return &RouteResult{Reply: reply}, err
	}
	return nil, fmt.Errorf("unhandled control token %q", token)
}

// confirm runs the executor's Confirm and applies the resulting
// lifecycle. On executor error the pending action is left untouched so
// the user can re-send the same token.
func (r *Router) confirm(ctx context.Context, user *models.UserProfile, msg *InboundMessage,
	head *models.PendingAction, ex Executor) (*RouteResult, error) {
	return r.applyResult(user)(ex.Confirm(ctx, user, msg, head))
}

// applyEdit feeds the replacement value to the executor. A successful
// edit (result carries an updated Pending) re-arms the record with the
// auto-advance correlation id of the replacement message.
func (r *Router) applyEdit(ctx context.Context, user *models.UserProfile, msg *InboundMessage,
	head *models.PendingAction, ex Executor) (*RouteResult, error) {

	res, err := ex.Edit(ctx, user, msg, head, msg.Text)
	if err != nil {
		return nil, err
	}

	if res.Pending == nil {
		// Replacement rejected; the edit stays open.
		return &RouteResult{Reply: res.Reply}, nil
	}

	pa, err := r.buildPending(user, res.Pending)
	if err != nil {
		return nil, err
	}
	pa.AwaitingEdit = false
	pa.AutoAdvanceReplyTo = msg.ProviderMessageID
	if err := r.store.SavePendingAction(pa); err != nil {
		return nil, err
	}
	return &RouteResult{Reply: res.Reply, SideEffect: res.SideEffect}, nil
}

// applyResult persists an ExecResult's pending-lifecycle changes.
// Neither Pending nor ClearKinds set leaves the state untouched: the
// recoverable-failure path. A persist error still returns the partial
// result so the caller can see whether a business mutation landed
// before the failure.
func (r *Router) applyResult(user *models.UserProfile) func(*ExecResult, error) (*RouteResult, error) {
	return func(res *ExecResult, err error) (*RouteResult, error) {
		if err != nil {
			return nil, err
		}
		out := &RouteResult{Reply: res.Reply, SideEffect: res.SideEffect}
		for _, kind := range res.ClearKinds {
			if derr := r.store.DeletePendingAction(user.TenantID, user.Phone, kind); derr != nil {
				return out, derr
			}
		}
		if res.Pending != nil {
			pa, berr := r.buildPending(user, res.Pending)
			if berr != nil {
				return out, berr
			}
			if serr := r.store.SavePendingAction(pa); serr != nil {
				return out, serr
			}
		}
		return out, nil
	}
}

// Dispatch handles a freshly classified message with no open workflow.
func (r *Router) Dispatch(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*RouteResult, error) {
	ex, ok := r.byFamily[intent.Family]
	if !ok {
		return &RouteResult{Reply: replyCapabilitySummary()}, nil
	}
	return r.applyResult(user)(ex.Execute(ctx, user, msg, intent))
}

// ResumeParked unparks the most recently parked action, used when
// "resume" arrives with nothing live.
func (r *Router) ResumeParked(user *models.UserProfile) (*RouteResult, error) {
	all, err := r.store.GetPendingActions(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	for _, pa := range all { // newest first
		if !pa.Parked {
			continue
		}
		pa.Parked = false
		pa.CreatedAt = time.Now()
		if err := r.store.SavePendingAction(pa); err != nil {
			return nil, err
		}
		ex, ok := r.byKind[pa.Kind]
		if !ok {
			return &RouteResult{Reply: replyCapabilitySummary()}, nil
		}
		res, err := ex.Prompt(pa)
		if err != nil {
			return nil, err
		}
		return &RouteResult{Reply: res.Reply}, nil
	}
	return &RouteResult{Reply: replyNothingToResume()}, nil
}

func (r *Router) buildPending(user *models.UserProfile, spec *PendingSpec) (*models.PendingAction, error) {
	payload, err := marshalPayload(spec.Payload)
	if err != nil {
		return nil, err
	}
	ttl := spec.TTL
	if ttl == 0 {
		ttl = DefaultPendingTTL
	}
	now := time.Now()
	return &models.PendingAction{
		TenantID:  user.TenantID,
		UserID:    user.Phone,
		Kind:      spec.Kind,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}
