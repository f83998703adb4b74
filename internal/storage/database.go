package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
)

// DatabaseStore is the PostgreSQL-backed store
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by the given GORM handle
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// ========== Pending-action operations ==========

func (s *DatabaseStore) SavePendingAction(pa *models.PendingAction) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}, {Name: "kind"}},
		UpdateAll: true,
	}).Create(pa).Error
}

func (s *DatabaseStore) GetPendingAction(tenantID, userID, kind string) (*models.PendingAction, error) {
	var pa models.PendingAction
	err := s.db.Where("tenant_id = ? AND user_id = ? AND kind = ? AND expires_at > ?",
		tenantID, userID, kind, time.Now()).First(&pa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (s *DatabaseStore) GetPendingActions(tenantID, userID string) ([]*models.PendingAction, error) {
	var pas []*models.PendingAction
	err := s.db.Where("tenant_id = ? AND user_id = ? AND expires_at > ?",
		tenantID, userID, time.Now()).
		Order("created_at DESC").
		Find(&pas).Error
	return pas, err
}

func (s *DatabaseStore) DeletePendingAction(tenantID, userID, kind string) error {
	return s.db.Where("tenant_id = ? AND user_id = ? AND kind = ?",
		tenantID, userID, kind).Delete(&models.PendingAction{}).Error
}

func (s *DatabaseStore) DeleteAllPendingActions(tenantID, userID string) (int64, error) {
	res := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Delete(&models.PendingAction{})
	return res.RowsAffected, res.Error
}

func (s *DatabaseStore) DeleteExpiredPendingActions() error {
	return s.db.Where("expires_at <= ?", time.Now()).Delete(&models.PendingAction{}).Error
}

// ========== Idempotency operations ==========

func (s *DatabaseStore) CreateIdempotencyRecord(rec *models.IdempotencyRecord) error {
	err := s.db.Create(rec).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *DatabaseStore) GetIdempotencyRecord(providerMessageID string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := s.db.Where("provider_message_id = ?", providerMessageID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *DatabaseStore) UpdateIdempotencyRecord(rec *models.IdempotencyRecord) error {
	return s.db.Save(rec).Error
}

func (s *DatabaseStore) DeleteExpiredIdempotencyRecords() error {
	return s.db.Where("expires_at <= ?", time.Now()).Delete(&models.IdempotencyRecord{}).Error
}

// ========== Lock operations ==========

func (s *DatabaseStore) AcquireLock(key, token string, ttl time.Duration) (bool, error) {
	now := time.Now()
	lock := models.MessageLock{
		Key:        key,
		Token:      token,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	err := s.db.Create(&lock).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	// Row exists: steal the lease only if it expired.
	res := s.db.Model(&models.MessageLock{}).
		Where("key = ? AND expires_at <= ?", key, now).
		Updates(map[string]interface{}{
			"token":       token,
			"acquired_at": now,
			"expires_at":  now.Add(ttl),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DatabaseStore) ReleaseLock(key, token string) error {
	// Token check so a late release after lease expiry cannot free
	// somebody else's lock.
	return s.db.Where("key = ? AND token = ?", key, token).
		Delete(&models.MessageLock{}).Error
}

func (s *DatabaseStore) DeleteExpiredLocks() error {
	return s.db.Where("expires_at <= ?", time.Now()).Delete(&models.MessageLock{}).Error
}

// ========== User operations ==========

func (s *DatabaseStore) GetUserByPhone(phone string) (*models.UserProfile, error) {
	var user models.UserProfile
	err := s.db.Where("phone = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *DatabaseStore) CreateUser(user *models.UserProfile) error {
	err := s.db.Create(user).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// ========== Job operations ==========

func (s *DatabaseStore) CreateJob(job *models.Job) error {
	return s.db.Create(job).Error
}

func (s *DatabaseStore) GetJob(tenantID, userID string, number int) (*models.Job, error) {
	var job models.Job
	err := s.db.Where("tenant_id = ? AND user_id = ? AND number = ?",
		tenantID, userID, number).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *DatabaseStore) GetJobs(tenantID, userID string) ([]*models.Job, error) {
	var jobs []*models.Job
	err := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("number ASC").Find(&jobs).Error
	return jobs, err
}

func (s *DatabaseStore) GetJobsByStatus(tenantID, userID, status string) ([]*models.Job, error) {
	var jobs []*models.Job
	err := s.db.Where("tenant_id = ? AND user_id = ? AND status = ?",
		tenantID, userID, status).Order("number ASC").Find(&jobs).Error
	return jobs, err
}

func (s *DatabaseStore) UpdateJob(job *models.Job) error {
	return s.db.Save(job).Error
}

func (s *DatabaseStore) NextJobNumber(tenantID, userID string) (int, error) {
	var max int
	err := s.db.Model(&models.Job{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Select("COALESCE(MAX(number), 0)").Scan(&max).Error
	return max + 1, err
}

// ========== Transaction operations ==========

func (s *DatabaseStore) CreateTransaction(txn *models.Transaction) error {
	return s.db.Create(txn).Error
}

func (s *DatabaseStore) GetLastTransaction(tenantID, userID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *DatabaseStore) GetTransactions(tenantID, userID string) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").Find(&txns).Error
	return txns, err
}

func (s *DatabaseStore) UpdateTransaction(txn *models.Transaction) error {
	return s.db.Save(txn).Error
}

// ========== Time entry operations ==========

func (s *DatabaseStore) CreateTimeEntry(entry *models.TimeEntry) error {
	return s.db.Create(entry).Error
}

func (s *DatabaseStore) GetOpenTimeEntry(tenantID, userID string) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := s.db.Where("tenant_id = ? AND user_id = ? AND clock_out IS NULL",
		tenantID, userID).Order("clock_in DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *DatabaseStore) UpdateTimeEntry(entry *models.TimeEntry) error {
	return s.db.Save(entry).Error
}

// ========== Task operations ==========

func (s *DatabaseStore) CreateTask(task *models.Task) error {
	return s.db.Create(task).Error
}

func (s *DatabaseStore) GetTask(tenantID, userID string, number int) (*models.Task, error) {
	var task models.Task
	err := s.db.Where("tenant_id = ? AND user_id = ? AND number = ?",
		tenantID, userID, number).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *DatabaseStore) GetOpenTasks(tenantID, userID string) ([]*models.Task, error) {
	var tasks []*models.Task
	err := s.db.Where("tenant_id = ? AND user_id = ? AND done = ?",
		tenantID, userID, false).Order("number ASC").Find(&tasks).Error
	return tasks, err
}

func (s *DatabaseStore) UpdateTask(task *models.Task) error {
	return s.db.Save(task).Error
}

func (s *DatabaseStore) NextTaskNumber(tenantID, userID string) (int, error) {
	var max int
	err := s.db.Model(&models.Task{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Select("COALESCE(MAX(number), 0)").Scan(&max).Error
	return max + 1, err
}
