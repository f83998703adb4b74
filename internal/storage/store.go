package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate record")
)

var (
	storeInstance Store
	storeMu       sync.RWMutex
)

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeMu.Lock()
	defer storeMu.Unlock()
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return storeInstance
}

// Store defines the interface for storage operations
type Store interface {
	// Pending-action operations. All mutation is single-row upsert or
	// delete keyed by (tenant, user, kind).
	SavePendingAction(pa *models.PendingAction) error
	GetPendingAction(tenantID, userID, kind string) (*models.PendingAction, error)
	GetPendingActions(tenantID, userID string) ([]*models.PendingAction, error)
	DeletePendingAction(tenantID, userID, kind string) error
	DeleteAllPendingActions(tenantID, userID string) (int64, error)
	DeleteExpiredPendingActions() error

	// Idempotency operations. CreateIdempotencyRecord returns
	// ErrDuplicate when the provider message id was already seen.
	CreateIdempotencyRecord(rec *models.IdempotencyRecord) error
	GetIdempotencyRecord(providerMessageID string) (*models.IdempotencyRecord, error)
	UpdateIdempotencyRecord(rec *models.IdempotencyRecord) error
	DeleteExpiredIdempotencyRecords() error

	// Lock operations. AcquireLock reports false when another holder
	// has an unexpired lease.
	AcquireLock(key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(key, token string) error
	DeleteExpiredLocks() error

	// User operations
	GetUserByPhone(phone string) (*models.UserProfile, error)
	CreateUser(user *models.UserProfile) error

	// Job operations
	CreateJob(job *models.Job) error
	GetJob(tenantID, userID string, number int) (*models.Job, error)
	GetJobs(tenantID, userID string) ([]*models.Job, error)
	GetJobsByStatus(tenantID, userID, status string) ([]*models.Job, error)
	UpdateJob(job *models.Job) error
	NextJobNumber(tenantID, userID string) (int, error)

	// Transaction operations
	CreateTransaction(txn *models.Transaction) error
	GetLastTransaction(tenantID, userID string) (*models.Transaction, error)
	GetTransactions(tenantID, userID string) ([]*models.Transaction, error)
	UpdateTransaction(txn *models.Transaction) error

	// Time entry operations
	CreateTimeEntry(entry *models.TimeEntry) error
	GetOpenTimeEntry(tenantID, userID string) (*models.TimeEntry, error)
	UpdateTimeEntry(entry *models.TimeEntry) error

	// Task operations
	CreateTask(task *models.Task) error
	GetTask(tenantID, userID string, number int) (*models.Task, error)
	GetOpenTasks(tenantID, userID string) ([]*models.Task, error)
	UpdateTask(task *models.Task) error
	NextTaskNumber(tenantID, userID string) (int, error)
}
