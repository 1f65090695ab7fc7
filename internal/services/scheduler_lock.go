package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/brandsentry/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrJobRunning = errors.New("job is already running")

var lockFree = time.Unix(0, 0).UTC()

// SchedulerLockService hands out row leases in scheduler_locks so a job runs
// on one instance at a time.
type SchedulerLockService struct {
	db    *gorm.DB
	owner string
	now   func() time.Time
}

func NewSchedulerLockService(db *gorm.DB) *SchedulerLockService {
	host, _ := os.Hostname()
	return &SchedulerLockService{
		db:    db,
		owner: fmt.Sprintf("%s/%s", host, uuid.New().String()[:8]),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Acquire takes the (name, key) lease for ttl. It returns ErrJobRunning while
// another owner holds an unexpired lease.
func (s *SchedulerLockService) Acquire(ctx context.Context, name, key string, ttl time.Duration) (func(), error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	// Make sure the row exists, then claim it only if it is free or expired.
	seed := models.SchedulerLock{LockName: name, LockKey: key, LockedAt: now, ExpiresAt: lockFree}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("seed scheduler lock: %w", err)
	}

	result := db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Updates(map[string]interface{}{
			"locked_by":  s.owner,
			"locked_at":  now,
			"expires_at": now.Add(ttl),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("claim scheduler lock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrJobRunning
	}

	return func() {
		s.db.Model(&models.SchedulerLock{}).
			Where("lock_name = ? AND lock_key = ? AND locked_by = ?", name, key, s.owner).
			Updates(map[string]interface{}{
				"locked_by":  "",
				"expires_at": lockFree,
			})
	}, nil
}
