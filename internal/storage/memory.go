package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
)

// MemoryStore is an in-memory store for tests and local development
// (USE_MEMORY_STORE=true). Not for production.
type MemoryStore struct {
	mu sync.Mutex

	nextID      uint
	pending     map[string]*models.PendingAction // (tenant|user|kind)
	idempotency map[string]*models.IdempotencyRecord
	locks       map[string]*models.MessageLock
	users       map[string]*models.UserProfile // phone
	jobs        []*models.Job
	txns        []*models.Transaction
	entries     []*models.TimeEntry
	tasks       []*models.Task
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending:     make(map[string]*models.PendingAction),
		idempotency: make(map[string]*models.IdempotencyRecord),
		locks:       make(map[string]*models.MessageLock),
		users:       make(map[string]*models.UserProfile),
	}
}

func pendingKey(tenantID, userID, kind string) string {
	return strings.Join([]string{tenantID, userID, kind}, "|")
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

// ========== Pending-action operations ==========

func (s *MemoryStore) SavePendingAction(pa *models.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey(pa.TenantID, pa.UserID, pa.Kind)
	if existing, ok := s.pending[key]; ok {
		pa.ID = existing.ID
	} else if pa.ID == 0 {
		pa.ID = s.id()
	}
	cp := *pa
	s.pending[key] = &cp
	return nil
}

func (s *MemoryStore) GetPendingAction(tenantID, userID, kind string) (*models.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pa, ok := s.pending[pendingKey(tenantID, userID, kind)]
	if !ok || pa.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	cp := *pa
	return &cp, nil
}

func (s *MemoryStore) GetPendingActions(tenantID, userID string) ([]*models.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []*models.PendingAction
	for _, pa := range s.pending {
		if pa.TenantID == tenantID && pa.UserID == userID && !pa.Expired(now) {
			cp := *pa
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeletePendingAction(tenantID, userID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, pendingKey(tenantID, userID, kind))
	return nil
}

func (s *MemoryStore) DeleteAllPendingActions(tenantID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, pa := range s.pending {
		if pa.TenantID == tenantID && pa.UserID == userID {
			delete(s.pending, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteExpiredPendingActions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, pa := range s.pending {
		if pa.Expired(now) {
			delete(s.pending, key)
		}
	}
	return nil
}

// ========== Idempotency operations ==========

func (s *MemoryStore) CreateIdempotencyRecord(rec *models.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idempotency[rec.ProviderMessageID]; ok {
		return ErrDuplicate
	}
	rec.ID = s.id()
	cp := *rec
	s.idempotency[rec.ProviderMessageID] = &cp
	return nil
}

func (s *MemoryStore) GetIdempotencyRecord(providerMessageID string) (*models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.idempotency[providerMessageID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) UpdateIdempotencyRecord(rec *models.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.idempotency[rec.ProviderMessageID] = &cp
	return nil
}

func (s *MemoryStore) DeleteExpiredIdempotencyRecords() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, rec := range s.idempotency {
		if now.After(rec.ExpiresAt) {
			delete(s.idempotency, id)
		}
	}
	return nil
}

// ========== Lock operations ==========

func (s *MemoryStore) AcquireLock(key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if lock, ok := s.locks[key]; ok && now.Before(lock.ExpiresAt) {
		return false, nil
	}
	s.locks[key] = &models.MessageLock{
		ID:         s.id(),
		Key:        key,
		Token:      token,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	return true, nil
}

func (s *MemoryStore) ReleaseLock(key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[key]; ok && lock.Token == token {
		delete(s.locks, key)
	}
	return nil
}

func (s *MemoryStore) DeleteExpiredLocks() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, lock := range s.locks {
		if !now.Before(lock.ExpiresAt) {
			delete(s.locks, key)
		}
	}
	return nil
}

// ========== User operations ==========

func (s *MemoryStore) GetUserByPhone(phone string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) CreateUser(user *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Phone]; ok {
		return ErrDuplicate
	}
	user.ID = s.id()
	user.CreatedAt = time.Now()
	cp := *user
	s.users[user.Phone] = &cp
	return nil
}

// ========== Job operations ==========

func (s *MemoryStore) CreateJob(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.ID = s.id()
	job.CreatedAt = time.Now()
	cp := *job
	s.jobs = append(s.jobs, &cp)
	return nil
}

func (s *MemoryStore) GetJob(tenantID, userID string, number int) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.TenantID == tenantID && job.UserID == userID && job.Number == number {
			cp := *job
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetJobs(tenantID, userID string) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Job
	for _, job := range s.jobs {
		if job.TenantID == tenantID && job.UserID == userID {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) GetJobsByStatus(tenantID, userID, status string) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Job
	for _, job := range s.jobs {
		if job.TenantID == tenantID && job.UserID == userID && job.Status == status {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) UpdateJob(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.jobs {
		if existing.ID == job.ID {
			job.UpdatedAt = time.Now()
			cp := *job
			s.jobs[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) NextJobNumber(tenantID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := 0
	for _, job := range s.jobs {
		if job.TenantID == tenantID && job.UserID == userID && job.Number > max {
			max = job.Number
		}
	}
	return max + 1, nil
}

// ========== Transaction operations ==========

func (s *MemoryStore) CreateTransaction(txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn.ID = s.id()
	txn.CreatedAt = time.Now()
	cp := *txn
	s.txns = append(s.txns, &cp)
	return nil
}

func (s *MemoryStore) GetLastTransaction(tenantID, userID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.txns) - 1; i >= 0; i-- {
		if s.txns[i].TenantID == tenantID && s.txns[i].UserID == userID {
			cp := *s.txns[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetTransactions(tenantID, userID string) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Transaction
	for i := len(s.txns) - 1; i >= 0; i-- {
		if s.txns[i].TenantID == tenantID && s.txns[i].UserID == userID {
			cp := *s.txns[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateTransaction(txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.txns {
		if existing.ID == txn.ID {
			cp := *txn
			s.txns[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

// ========== Time entry operations ==========

func (s *MemoryStore) CreateTimeEntry(entry *models.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.id()
	entry.CreatedAt = time.Now()
	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MemoryStore) GetOpenTimeEntry(tenantID, userID string) (*models.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.TenantID == tenantID && e.UserID == userID && e.ClockOut == nil {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateTimeEntry(entry *models.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.entries {
		if existing.ID == entry.ID {
			entry.UpdatedAt = time.Now()
			cp := *entry
			s.entries[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

// ========== Task operations ==========

func (s *MemoryStore) CreateTask(task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = s.id()
	task.CreatedAt = time.Now()
	cp := *task
	s.tasks = append(s.tasks, &cp)
	return nil
}

func (s *MemoryStore) GetTask(tenantID, userID string, number int) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.tasks {
		if task.TenantID == tenantID && task.UserID == userID && task.Number == number {
			cp := *task
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetOpenTasks(tenantID, userID string) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Task
	for _, task := range s.tasks {
		if task.TenantID == tenantID && task.UserID == userID && !task.Done {
			cp := *task
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) NextTaskNumber(tenantID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := 0
	for _, task := range s.tasks {
		if task.TenantID == tenantID && task.UserID == userID && task.Number > max {
			max = task.Number
		}
	}
	return max + 1, nil
}

func (s *MemoryStore) UpdateTask(task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.tasks {
		if existing.ID == task.ID {
			cp := *task
			s.tasks[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}
