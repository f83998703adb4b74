package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

const (
	testPhone  = "+15551234567"
	testTenant = "default"
)

func newTestEngine(store storage.Store) *Engine {
	lock := NewLockService(store, time.Minute)
	idem := NewIdempotencyGuard(store, time.Hour)
	normalizer := NewNormalizer(nil, nil)
	classifier := NewClassifier(nil)
	router := NewRouter(store,
		NewExpenseExecutor(store),
		NewRevenueExecutor(store),
		NewTimeclockExecutor(store),
		NewJobExecutor(store),
		NewTaskExecutor(store),
		NewMoveLogExecutor(store),
	)
	return NewEngine(store, lock, idem, normalizer, classifier, router)
}

var sidCounter int

func nextSID() string {
	sidCounter++
	return fmt.Sprintf("SM%06d", sidCounter)
}

func send(t *testing.T, e *Engine, body string) *Reply {
	t.Helper()
	return sendEnvelope(t, e, &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		Body:              body,
		ProviderMessageID: nextSID(),
	})
}

func sendEnvelope(t *testing.T, e *Engine, env *InboundEnvelope) *Reply {
	t.Helper()
	reply := e.Handle(context.Background(), env)
	require.NotNil(t, reply)
	return reply
}

func livePendingKinds(t *testing.T, store storage.Store) []string {
	t.Helper()
	pas, err := store.GetPendingActions(testTenant, testPhone)
	require.NoError(t, err)
	var kinds []string
	for _, pa := range pas {
		if !pa.Parked {
			kinds = append(kinds, pa.Kind)
		}
	}
	return kinds
}

func TestExpenseHappyPath(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	reply := send(t, e, "start job Smith Roof")
	require.Contains(t, reply.Text, "Smith Roof")

	reply = send(t, e, "spent $45 on screws at Home Depot")
	require.Contains(t, reply.Text, "$45.00")
	require.Contains(t, reply.Text, "yes")
	require.Equal(t, []string{models.PendingConfirmExpense}, livePendingKinds(t, store))

	// Nothing recorded until the confirmation lands.
	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, txns)

	reply = send(t, e, "yes")
	require.Contains(t, reply.Text, "recorded")

	txns, err = store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, models.TransactionExpense, txns[0].Type)
	require.Equal(t, int64(4500), txns[0].AmountCents)
	require.Equal(t, 1, txns[0].JobNumber)
	require.Empty(t, livePendingKinds(t, store))
}

func TestDuplicateDeliveryRecordsOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "spent $45 on screws")

	confirmSID := nextSID()
	env := &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		Body:              "yes",
		ProviderMessageID: confirmSID,
	}
	first := sendEnvelope(t, e, env)
	require.Contains(t, first.Text, "recorded")

	// Same provider id again: replay, no second transaction.
	second := sendEnvelope(t, e, env)
	require.Equal(t, first.Render(), second.Text)

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
}

func TestCancelClearsEverything(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "spent $45 on screws")
	require.NotEmpty(t, livePendingKinds(t, store))

	reply := send(t, e, "cancel")
	require.Contains(t, reply.Text, "Cancelled")

	pas, err := store.GetPendingActions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, pas)

	// A bare "yes" with nothing pending is not a command.
	reply = send(t, e, "yes")
	require.Contains(t, reply.Text, "I didn't catch that")
	require.Empty(t, livePendingKinds(t, store))

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestIdleUnclassifiedLeavesNoPending(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	reply := send(t, e, "what's the weather like")
	require.Contains(t, reply.Text, "I didn't catch that")

	pas, err := store.GetPendingActions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, pas)
}

func TestEditThenAutoAdvance(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "spent $45 on screws at Home Depot")

	reply := send(t, e, "edit")
	require.Contains(t, reply.Text, "corrected value")

	editSID := nextSID()
	reply = sendEnvelope(t, e, &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		Body:              "$54",
		ProviderMessageID: editSID,
	})
	require.Contains(t, reply.Text, "$54.00")

	pa, err := store.GetPendingAction(testTenant, testPhone, models.PendingConfirmExpense)
	require.NoError(t, err)
	require.False(t, pa.AwaitingEdit)
	require.Equal(t, editSID, pa.AutoAdvanceReplyTo)

	// A reply quoting the replacement message is an implicit yes.
	reply = sendEnvelope(t, e, &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		Body:              "looks right",
		ProviderMessageID: nextSID(),
		ReplyToID:         editSID,
	})
	require.Contains(t, reply.Text, "recorded")

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, int64(5400), txns[0].AmountCents)
}

func TestAutoAdvanceRequiresQuotedReply(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "spent $45 on screws")
	send(t, e, "edit")
	sendEnvelope(t, e, &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		Body:              "$54",
		ProviderMessageID: nextSID(),
	})

	// Same words, but not quoting the replacement: never an implicit
	// yes.
	send(t, e, "looks right")

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, txns)
	require.Equal(t, []string{models.PendingConfirmExpense}, livePendingKinds(t, store))
}

func TestEditRejectedReplacementStaysOpen(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "spent $45 on screws")
	send(t, e, "edit")

	reply := send(t, e, "hmm let me think")
	require.Contains(t, reply.Text, "couldn't read")

	pa, err := store.GetPendingAction(testTenant, testPhone, models.PendingConfirmExpense)
	require.NoError(t, err)
	require.True(t, pa.AwaitingEdit)

	// The next message is still consumed as the replacement.
	reply = send(t, e, "$60")
	require.Contains(t, reply.Text, "$60.00")
}

func TestSkipParksAndResumeRevives(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "spent $45 on screws")

	reply := send(t, e, "skip")
	require.Contains(t, reply.Text, "resume")
	require.Empty(t, livePendingKinds(t, store))

	// Parked state doesn't block new work.
	reply = send(t, e, "add task order shingles")
	require.Contains(t, reply.Text, "Task #1")

	reply = send(t, e, "resume")
	require.Contains(t, reply.Text, "$45.00")
	require.Equal(t, []string{models.PendingConfirmExpense}, livePendingKinds(t, store))

	reply = send(t, e, "yes")
	require.Contains(t, reply.Text, "recorded")
}

func TestResumeWithNothingParked(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	reply := send(t, e, "resume")
	require.Contains(t, reply.Text, "Nothing parked")
}

func TestUnrelatedCommandNudges(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "spent $45 on screws")

	reply := send(t, e, "clock in")
	require.Contains(t, reply.Text, "waiting")

	// The pending survives and no time entry was opened.
	require.Equal(t, []string{models.PendingConfirmExpense}, livePendingKinds(t, store))
	_, err := store.GetOpenTimeEntry(testTenant, testPhone)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStackedCorrectionBeforeConfirm(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "spent $45 on screws")

	reply := send(t, e, "actually spent $54 at Rona")
	require.Contains(t, reply.Text, "$54.00")
	require.Contains(t, reply.Text, "Rona")

	send(t, e, "yes")
	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, int64(5400), txns[0].AmountCents)
}

func TestJobPickRowIndexResolvesAgainstRenderedList(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	// Two active jobs so the confirm swaps into a pick.
	require.NoError(t, store.CreateJob(&models.Job{
		TenantID: testTenant, UserID: testPhone, Number: 4, Name: "Deck", Status: models.JobStatusActive,
	}))
	require.NoError(t, store.CreateJob(&models.Job{
		TenantID: testTenant, UserID: testPhone, Number: 7, Name: "Roof", Status: models.JobStatusActive,
	}))

	send(t, e, "spent $45 on screws")
	reply := send(t, e, "yes")
	require.Contains(t, reply.Text, "Which job")
	require.Equal(t, []string{models.PendingPickJobForExpense}, livePendingKinds(t, store))

	// Row index 2 means the second rendered option (job #7), not job
	// number 2.
	reply = sendEnvelope(t, e, &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		ListReplyID:       "2",
		ListReplyTitle:    "Roof",
		ProviderMessageID: nextSID(),
	})
	require.Contains(t, reply.Text, "recorded")

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, 7, txns[0].JobNumber)
}

func TestJobPickBusinessKeyUsedDirectly(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	require.NoError(t, store.CreateJob(&models.Job{
		TenantID: testTenant, UserID: testPhone, Number: 4, Name: "Deck", Status: models.JobStatusActive,
	}))
	require.NoError(t, store.CreateJob(&models.Job{
		TenantID: testTenant, UserID: testPhone, Number: 7, Name: "Roof", Status: models.JobStatusActive,
	}))

	send(t, e, "spent $45 on screws")
	send(t, e, "yes")

	reply := sendEnvelope(t, e, &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		ListReplyID:       "job_4",
		ListReplyTitle:    "Deck",
		ProviderMessageID: nextSID(),
	})
	require.Contains(t, reply.Text, "recorded")

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Equal(t, 4, txns[0].JobNumber)
}

func TestExpiredPendingFallsThrough(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	require.NoError(t, store.SavePendingAction(&models.PendingAction{
		TenantID:  testTenant,
		UserID:    testPhone,
		Kind:      models.PendingConfirmExpense,
		Payload:   `{"amount_cents":4500}`,
		CreatedAt: time.Now().Add(-4 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	// The expired confirmation is dead; "yes" means nothing now.
	reply := send(t, e, "yes")
	require.Contains(t, reply.Text, "I didn't catch that")

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestBusyUserGetsHoldingReply(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	ok, err := store.AcquireLock(LockKey(testTenant, testPhone), "other-handler", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	reply := send(t, e, "spent $45 on screws")
	require.Contains(t, reply.Text, "Still processing")

	// The message was not claimed; a retry after release processes it.
	require.NoError(t, store.ReleaseLock(LockKey(testTenant, testPhone), "other-handler"))
	reply = send(t, e, "spent $45 on screws")
	require.Contains(t, reply.Text, "$45.00")
}

func TestClockOutCrossedMidnightAsksForTime(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	yesterday := time.Now().AddDate(0, 0, -1)
	clockIn := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 8, 0, 0, 0, time.Local)
	require.NoError(t, store.CreateTimeEntry(&models.TimeEntry{
		TenantID: testTenant, UserID: testPhone, ClockIn: clockIn,
	}))

	reply := send(t, e, "clock out")
	require.Contains(t, reply.Text, "forgot to clock out")
	require.Equal(t, []string{models.PendingNeedClockOutTime}, livePendingKinds(t, store))

	// The bare time is consumed by the open workflow even though it
	// classifies as nothing.
	reply = send(t, e, "5pm")
	require.Contains(t, reply.Text, "Clocked out")
	require.Empty(t, livePendingKinds(t, store))

	_, err := store.GetOpenTimeEntry(testTenant, testPhone)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// cleanupFailStore makes clearing a pending action fail a set number
// of times, simulating a transient store error after the executor has
// already committed its record.
type cleanupFailStore struct {
	*storage.MemoryStore
	failDeletes int
}

func (s *cleanupFailStore) DeletePendingAction(tenantID, userID, kind string) error {
	if s.failDeletes > 0 {
		s.failDeletes--
		return errors.New("connection reset by peer")
	}
	return s.MemoryStore.DeletePendingAction(tenantID, userID, kind)
}

func TestConfirmRecordsOnceWhenCleanupFails(t *testing.T) {
	store := &cleanupFailStore{MemoryStore: storage.NewMemoryStore()}
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "spent $45 on screws at Home Depot")

	// The transaction commits, then clearing the confirmation hits a
	// transient error. The executor must not run a second time.
	store.failDeletes = 1
	reply := send(t, e, "yes")
	require.Contains(t, reply.Text, "recorded")

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
}

// stallingExecutor blocks Execute until released, standing in for a
// wedged downstream dependency.
type stallingExecutor struct {
	Executor
	release chan struct{}
}

func (s *stallingExecutor) Execute(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*ExecResult, error) {
	<-s.release
	return s.Executor.Execute(ctx, user, msg, intent)
}

func TestSafetyTimerRepliesAndCachesLateResult(t *testing.T) {
	store := storage.NewMemoryStore()
	release := make(chan struct{})
	ex := &stallingExecutor{Executor: NewExpenseExecutor(store), release: release}

	e := NewEngine(store,
		NewLockService(store, time.Minute),
		NewIdempotencyGuard(store, time.Hour),
		NewNormalizer(nil, nil),
		NewClassifier(nil),
		NewRouter(store, ex),
	)
	e.SetSafetyTimeout(50 * time.Millisecond)

	env := &InboundEnvelope{
		From:              "whatsapp:" + testPhone,
		TenantID:          testTenant,
		Body:              "spent $45 on screws",
		ProviderMessageID: nextSID(),
	}
	reply := e.Handle(context.Background(), env)
	require.Contains(t, reply.Text, "taking longer")

	// The stalled work finishes in the background and caches the real
	// reply; the redelivery gets it instead of the holding message.
	close(release)
	require.Eventually(t, func() bool {
		rec, err := store.GetIdempotencyRecord(env.ProviderMessageID)
		return err == nil && rec.Status == models.IdempotencyDone
	}, 2*time.Second, 10*time.Millisecond)

	second := e.Handle(context.Background(), env)
	require.Contains(t, second.Text, "$45.00")
}

// userRaceStore loses the first insert to a concurrent delivery that
// created the same user between the lookup and the create.
type userRaceStore struct {
	*storage.MemoryStore
	raced bool
}

func (s *userRaceStore) CreateUser(user *models.UserProfile) error {
	if !s.raced {
		s.raced = true
		other := &models.UserProfile{TenantID: user.TenantID, Phone: user.Phone}
		if err := s.MemoryStore.CreateUser(other); err != nil {
			return err
		}
		return storage.ErrDuplicate
	}
	return s.MemoryStore.CreateUser(user)
}

func TestUserCreateRaceRecovers(t *testing.T) {
	store := &userRaceStore{MemoryStore: storage.NewMemoryStore()}
	e := newTestEngine(store)

	reply := send(t, e, "clock in")
	require.Contains(t, reply.Text, "Clocked in")

	_, err := store.GetUserByPhone(testPhone)
	require.NoError(t, err)
}

func TestMostRecentPendingResolvesFirst(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	require.NoError(t, store.SavePendingAction(&models.PendingAction{
		TenantID:  testTenant,
		UserID:    testPhone,
		Kind:      models.PendingConfirmExpense,
		Payload:   `{"amount_cents":4500,"memo":"screws"}`,
		CreatedAt: time.Now().Add(-10 * time.Minute),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, store.SavePendingAction(&models.PendingAction{
		TenantID:  testTenant,
		UserID:    testPhone,
		Kind:      models.PendingConfirmRevenue,
		Payload:   `{"amount_cents":50000,"party":"John"}`,
		CreatedAt: time.Now().Add(-time.Minute),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	// "yes" binds to the newer revenue confirmation only.
	reply := send(t, e, "yes")
	require.Contains(t, reply.Text, "Payment")
	require.Contains(t, reply.Text, "recorded")

	require.Equal(t, []string{models.PendingConfirmExpense}, livePendingKinds(t, store))

	txns, err := store.GetTransactions(testTenant, testPhone)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, models.TransactionRevenue, txns[0].Type)
}
