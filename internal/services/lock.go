package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// ErrLockBusy is returned when another handler holds the user's lock.
var ErrLockBusy = errors.New("user lock busy")

// LockService serializes workflow steps per user with a durable,
// lease-based lock. The lease TTL covers the safety timer with margin,
// so a crash while held frees the user shortly after.
type LockService struct {
	store storage.Store
	ttl   time.Duration
}

// NewLockService creates a lock service with the given lease TTL.
func NewLockService(store storage.Store, ttl time.Duration) *LockService {
	return &LockService{store: store, ttl: ttl}
}

// LockKey builds the per-user lock key.
func LockKey(tenantID, userID string) string {
	return fmt.Sprintf("msg:%s:%s", tenantID, userID)
}

// Acquire takes the lease or returns ErrLockBusy. The returned token
// must be passed to Release.
func (l *LockService) Acquire(key string) (string, error) {
	token := uuid.NewString()
	ok, err := l.store.AcquireLock(key, token, l.ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockBusy
	}
	return token, nil
}

// Release frees the lease. A stale token (lease already expired and
// re-acquired) is a no-op.
func (l *LockService) Release(key, token string) error {
	return l.store.ReleaseLock(key, token)
}
