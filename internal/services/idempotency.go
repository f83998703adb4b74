package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// IdempotencyGuard deduplicates redelivered provider message ids. The
// record is written before any mutating effect begins; a redelivery
// replays the cached reply instead of re-running executors.
type IdempotencyGuard struct {
	store  storage.Store
	window time.Duration
}

// NewIdempotencyGuard creates a guard whose records expire after
// window.
func NewIdempotencyGuard(store storage.Store, window time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, window: window}
}

// BeginResult tells the engine whether to process the message.
type BeginResult struct {
	Proceed     bool
	CachedReply *Reply // set when a completed duplicate is replayed
	InFlight    bool   // duplicate of a delivery still being processed
}

// Begin claims the provider message id. Exactly one caller per id gets
// Proceed=true.
func (g *IdempotencyGuard) Begin(providerMessageID, userID string) (*BeginResult, error) {
	now := time.Now()
	rec := &models.IdempotencyRecord{
		ProviderMessageID: providerMessageID,
		UserID:            userID,
		Status:            models.IdempotencyProcessing,
		FirstSeenAt:       now,
		ExpiresAt:         now.Add(g.window),
	}

	err := g.store.CreateIdempotencyRecord(rec)
	if err == nil {
		return &BeginResult{Proceed: true}, nil
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		return nil, err
	}

	existing, err := g.store.GetIdempotencyRecord(providerMessageID)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.IdempotencyDone {
		log.Printf("🔁 duplicate delivery %s — replaying cached reply", providerMessageID)
		return &BeginResult{CachedReply: &Reply{Text: existing.ReplyText}}, nil
	}
	return &BeginResult{InFlight: true}, nil
}

// Complete caches the computed reply for future redeliveries.
func (g *IdempotencyGuard) Complete(providerMessageID string, reply *Reply) error {
	rec, err := g.store.GetIdempotencyRecord(providerMessageID)
	if err != nil {
		return err
	}
	rec.Status = models.IdempotencyDone
	rec.ReplyText = reply.Render()
	sum := sha256.Sum256([]byte(rec.ReplyText))
	rec.ResultHash = hex.EncodeToString(sum[:])
	return g.store.UpdateIdempotencyRecord(rec)
}
