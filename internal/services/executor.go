package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
)

// DefaultPendingTTL bounds how long an open workflow waits for its
// next message.
const DefaultPendingTTL = 3 * time.Hour

// PendingSpec is an executor's request to open (or replace) one of its
// pending kinds. Payload is marshaled to JSON by the router.
type PendingSpec struct {
	Kind    string
	Payload interface{}
	TTL     time.Duration
}

// ExecResult is what an executor hands back to the router.
//
// Pending and ClearKinds describe the pending-action lifecycle the
// executor owns; both empty means the pending state is left untouched
// (the recoverable-failure case). SideEffect is true only when a
// business mutation was applied.
type ExecResult struct {
	Reply      *Reply
	Pending    *PendingSpec
	ClearKinds []string
	SideEffect bool
}

// Executor is a domain workflow handler. It owns the creation and
// clearing of its own pending kinds, must be re-entrant under the
// idempotency guard, and never interprets text as a control token;
// the router decides applicability.
type Executor interface {
	// Family is the intent family this executor claims.
	Family() string
	// Kinds lists the pending-action kinds this executor owns.
	Kinds() []string
	// Execute handles a freshly classified message with no pending
	// state involved.
	Execute(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*ExecResult, error)
	// Confirm applies the pending action (an exact "yes", or the
	// auto-advance implicit yes).
	Confirm(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction) (*ExecResult, error)
	// Edit applies a replacement value to the pending payload. A nil
	// Pending in the result means the replacement was rejected and the
	// edit is still awaited.
	Edit(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, replacement string) (*ExecResult, error)
	// Continue handles a same-family message (stacked correction, list
	// pick, change_job) while the pending action is open.
	Continue(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, intent Intent) (*ExecResult, error)
	// Prompt re-renders the pending action's current state.
	Prompt(pending *models.PendingAction) (*ExecResult, error)
}

// decodePayload unmarshals an opaque pending payload into the
// executor's own type.
func decodePayload(pending *models.PendingAction, out interface{}) error {
	if err := json.Unmarshal([]byte(pending.Payload), out); err != nil {
		return fmt.Errorf("corrupt %s payload: %w", pending.Kind, err)
	}
	return nil
}

// marshalPayload serializes an executor payload for storage.
func marshalPayload(payload interface{}) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal pending payload: %w", err)
	}
	return string(raw), nil
}
