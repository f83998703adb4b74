package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

func TestChangeJobSwapsConfirmIntoPick(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "start job Deck Build")
	send(t, e, "resume job 1")
	send(t, e, "spent $45 on screws")
	require.Equal(t, []string{models.PendingConfirmExpense}, livePendingKinds(t, store))

	reply := send(t, e, "change_job")
	require.Contains(t, reply.Text, "Which job")
	require.Equal(t, []string{models.PendingPickJobForExpense}, livePendingKinds(t, store))

	reply = send(t, e, "job 2")
	require.Contains(t, reply.Text, "recorded")

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, 2, txns[0].JobNumber)
}

func TestOrphanedPendingKindIsDiscarded(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	require.NoError(t, store.SavePendingAction(&models.PendingAction{
		TenantID:  testTenant,
		UserID:    testPhone,
		Kind:      "retired_kind_from_old_deploy",
		Payload:   `{}`,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	reply := send(t, e, "yes")
	require.Contains(t, reply.Text, "I didn't catch that")

	pas, err := store.GetPendingActions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, pas)
}

func TestPickKindRejectsBareYes(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	require.NoError(t, store.CreateJob(&models.Job{
		TenantID: testTenant, UserID: testPhone, Number: 1, Name: "Deck", Status: models.JobStatusActive,
	}))
	require.NoError(t, store.CreateJob(&models.Job{
		TenantID: testTenant, UserID: testPhone, Number: 2, Name: "Roof", Status: models.JobStatusActive,
	}))

	send(t, e, "spent $45 on screws")
	send(t, e, "yes") // swaps into the pick

	// Another "yes" can't pick a row.
	reply := send(t, e, "yes")
	require.Contains(t, reply.Text, "Pick a job")
	require.Equal(t, []string{models.PendingPickJobForExpense}, livePendingKinds(t, store))

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestConfirmWithoutAmountStaysPending(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	// A confirmation awaiting its amount: "yes" can't close it.
	require.NoError(t, store.SavePendingAction(&models.PendingAction{
		TenantID:  testTenant,
		UserID:    testPhone,
		Kind:      models.PendingConfirmExpense,
		Payload:   `{"amount_cents":0,"memo":"screws"}`,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	reply := send(t, e, "yes")
	require.Contains(t, reply.Text, "need the amount")
	require.Contains(t, livePendingKinds(t, store), models.PendingConfirmExpense)

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, txns)
}
