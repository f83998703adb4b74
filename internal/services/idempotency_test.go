package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

func TestIdempotencyFirstDeliveryProceeds(t *testing.T) {
	guard := NewIdempotencyGuard(storage.NewMemoryStore(), time.Hour)

	res, err := guard.Begin("SM1", "+15551234567")
	require.NoError(t, err)
	require.True(t, res.Proceed)
	require.Nil(t, res.CachedReply)
	require.False(t, res.InFlight)
}

func TestIdempotencyDuplicateInFlight(t *testing.T) {
	guard := NewIdempotencyGuard(storage.NewMemoryStore(), time.Hour)

	res, err := guard.Begin("SM1", "+15551234567")
	require.NoError(t, err)
	require.True(t, res.Proceed)

	// Redelivery before Complete: neutral acknowledgement, no replay.
	res, err = guard.Begin("SM1", "+15551234567")
	require.NoError(t, err)
	require.False(t, res.Proceed)
	require.True(t, res.InFlight)
	require.Nil(t, res.CachedReply)
}

func TestIdempotencyDuplicateReplaysCachedReply(t *testing.T) {
	guard := NewIdempotencyGuard(storage.NewMemoryStore(), time.Hour)

	res, err := guard.Begin("SM1", "+15551234567")
	require.NoError(t, err)
	require.True(t, res.Proceed)

	reply := &Reply{Text: "✅ Expense $45.00 recorded against job #2."}
	require.NoError(t, guard.Complete("SM1", reply))

	res, err = guard.Begin("SM1", "+15551234567")
	require.NoError(t, err)
	require.False(t, res.Proceed)
	require.NotNil(t, res.CachedReply)
	require.Equal(t, reply.Text, res.CachedReply.Text)
}

func TestIdempotencyDistinctIDsIndependent(t *testing.T) {
	guard := NewIdempotencyGuard(storage.NewMemoryStore(), time.Hour)

	res, err := guard.Begin("SM1", "+15551234567")
	require.NoError(t, err)
	require.True(t, res.Proceed)

	res, err = guard.Begin("SM2", "+15551234567")
	require.NoError(t, err)
	require.True(t, res.Proceed)
}

func TestIdempotencyCompleteStoresResultHash(t *testing.T) {
	store := storage.NewMemoryStore()
	guard := NewIdempotencyGuard(store, time.Hour)

	_, err := guard.Begin("SM1", "+15551234567")
	require.NoError(t, err)
	require.NoError(t, guard.Complete("SM1", &Reply{Text: "done"}))

	rec, err := store.GetIdempotencyRecord("SM1")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ResultHash)
	require.Equal(t, "done", rec.ReplyText)
}
