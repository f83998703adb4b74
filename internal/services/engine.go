package services

import (
	"context"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// DefaultSafetyTimeout is the ceiling on how long a message may run
// before the user hears something. WhatsApp users assume a dead bot
// after a few silent seconds.
const DefaultSafetyTimeout = 8 * time.Second

// Engine is the message pipeline: lock, dedupe, normalize, classify,
// route, reply. One Engine serves all users; per-user ordering comes
// from the lock, not from the engine.
type Engine struct {
	store         storage.Store
	lock          *LockService
	idem          *IdempotencyGuard
	normalizer    *Normalizer
	classifier    *Classifier
	router        *Router
	safetyTimeout time.Duration
}

// NewEngine wires the pipeline.
func NewEngine(store storage.Store, lock *LockService, idem *IdempotencyGuard,
	normalizer *Normalizer, classifier *Classifier, router *Router) *Engine {
	return &Engine{
		store:         store,
		lock:          lock,
		idem:          idem,
		normalizer:    normalizer,
		classifier:    classifier,
		router:        router,
		safetyTimeout: DefaultSafetyTimeout,
	}
}

// SetSafetyTimeout overrides the holding-reply deadline.
func (e *Engine) SetSafetyTimeout(d time.Duration) {
	if d > 0 {
		e.safetyTimeout = d
	}
}

// Handle processes one inbound envelope and always produces a reply.
// If processing outruns the safety timer the user gets a holding
// message now and the work finishes in the background; the real reply
// is cached for redelivery.
func (e *Engine) Handle(ctx context.Context, env *InboundEnvelope) *Reply {
	done := make(chan *Reply, 1)

	// The background copy must survive the webhook request context.
	bg := context.WithoutCancel(ctx)
	go func() {
		done <- e.process(bg, env)
	}()

	select {
	case reply := <-done:
		return reply
	case <-time.After(e.safetyTimeout):
		log.Printf("⏳ safety timer fired for %s (msg %s)", env.From, env.ProviderMessageID)
		return replySlow()
	}
}

// process runs the full pipeline for one message. It never returns a
// nil reply and never panics out.
func (e *Engine) process(ctx context.Context, env *InboundEnvelope) (reply *Reply) {
	userID := strings.TrimPrefix(env.From, "whatsapp:")

	// claimed flips once this delivery wins the idempotency record;
	// only then does the computed reply get cached for redeliveries.
	claimed := false
	defer func() {
		if r := recover(); r != nil {
			traceID := uuid.NewString()[:8]
			log.Printf("❌ panic handling message %s (ref %s): %v\n%s",
				env.ProviderMessageID, traceID, r, debug.Stack())
			reply = replyApology(traceID)
		}
		if claimed && reply != nil {
			if err := e.idem.Complete(env.ProviderMessageID, reply); err != nil {
				log.Printf("⚠️ failed to cache reply for %s: %v", env.ProviderMessageID, err)
			}
		}
	}()

	// Per-user lease lock: one message at a time.
	lockKey := LockKey(env.TenantID, userID)
	token, err := e.lock.Acquire(lockKey)
	if err == ErrLockBusy {
		return replyBusy()
	}
	if err != nil {
		log.Printf("❌ lock acquire failed for %s: %v", lockKey, err)
		return replyTryAgain()
	}
	defer func() {
		if rerr := e.lock.Release(lockKey, token); rerr != nil {
			log.Printf("⚠️ lock release failed for %s: %v", lockKey, rerr)
		}
	}()

	// At-most-once: claim the provider message id before any mutation.
	if env.ProviderMessageID == "" {
		log.Printf("❌ envelope from %s has no provider message id", env.From)
		return replyTryAgain()
	}
	begin, err := e.idem.Begin(env.ProviderMessageID, userID)
	if err != nil {
		log.Printf("❌ idempotency begin failed for %s: %v", env.ProviderMessageID, err)
		return replyTryAgain()
	}
	if begin.CachedReply != nil {
		return begin.CachedReply
	}
	if !begin.Proceed {
		return replyWorkingOnIt()
	}
	claimed = true

	msg, err := e.normalizer.Normalize(ctx, env)
	if err != nil {
		log.Printf("❌ normalize failed for %s: %v", env.ProviderMessageID, err)
		return replyTryAgain()
	}

	user, err := e.getOrCreateUser(env.TenantID, userID)
	if err != nil {
		log.Printf("❌ user lookup failed for %s: %v", userID, err)
		return replyTryAgain()
	}

	// Stage 1: global abort beats everything, pending or not.
	if IsGlobalAbort(msg.Text) {
		abort, err := e.router.AbortAll(user)
		if err != nil {
			log.Printf("❌ abort failed for %s: %v", userID, err)
			return replyTryAgain()
		}
		return abort
	}

	res, err := e.dispatch(ctx, user, msg)
	if err != nil && !committed(res) {
		// Transient taxonomy: retry once, but only while no business
		// mutation has been applied.
		log.Printf("⚠️ dispatch failed for %s, retrying once: %v", msg.ProviderMessageID, err)
		res, err = e.dispatch(ctx, user, msg)
	}
	if err != nil {
		if committed(res) {
			// The record landed; only the pending bookkeeping failed.
			// Re-running the executor past a commit would double-record,
			// so report the committed result and let the sweeper expire
			// the leftover pending state.
			log.Printf("⚠️ pending cleanup failed after commit for %s: %v", msg.ProviderMessageID, err)
			if res.Reply != nil {
				return res.Reply
			}
			return replyTryAgain()
		}
		log.Printf("❌ dispatch failed twice for %s: %v", msg.ProviderMessageID, err)
		return replyTryAgain()
	}
	return res.Reply
}

// committed reports whether a dispatch attempt applied a business
// mutation, even if it then failed persisting the pending lifecycle.
func committed(res *RouteResult) bool {
	return res != nil && res.SideEffect
}

// dispatch routes against the pending state machine or classifies
// fresh, depending on whether a live pending action exists.
func (e *Engine) dispatch(ctx context.Context, user *models.UserProfile, msg *InboundMessage) (*RouteResult, error) {
	live, err := e.router.LivePending(user)
	if err != nil {
		return nil, err
	}

	if len(live) > 0 {
		head := live[0] // newest first
		classify := func() Intent {
			return e.classifier.Classify(ctx, msg.Text, true)
		}
		return e.router.Route(ctx, user, msg, head, classify)
	}

	// Idle path. "resume" with nothing live revives the newest parked
	// action.
	if token, ok := ParseControlToken(msg.Text); ok && token == TokenResume {
		return e.router.ResumeParked(user)
	}

	intent := e.classifier.Classify(ctx, msg.Text, false)
	if intent.Family == IntentNone || intent.Family == IntentControl {
		// Unclassified idle message: capability summary, no pending
		// state created.
		return &RouteResult{Reply: replyCapabilitySummary()}, nil
	}
	return e.router.Dispatch(ctx, user, msg, intent)
}

func (e *Engine) getOrCreateUser(tenantID, phone string) (*models.UserProfile, error) {
	user, err := e.store.GetUserByPhone(phone)
	if err == nil {
		return user, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}
	user = &models.UserProfile{TenantID: tenantID, Phone: phone}
	if err := e.store.CreateUser(user); err != nil {
		if err == storage.ErrDuplicate {
			return e.store.GetUserByPhone(phone)
		}
		return nil, err
	}
	log.Printf("👤 new user %s (tenant %s)", phone, tenantID)
	return user, nil
}
