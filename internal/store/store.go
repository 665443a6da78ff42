// Package store persists the mailbox and user settings in SQLite via gorm
// and owns the sensitivity epoch.
package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/guardianmail/guardianmail/internal/core"
)

// Store implements core.Mailbox and core.SettingsStore over one SQLite
// database.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	// mu serializes epoch transitions against risk writes so a stale
	// result can never slip past a concurrent sensitivity change.
	mu    sync.Mutex
	epoch atomic.Int64
}

// Open opens (and migrates) the store at the given path, creating the
// settings row and seeding demo emails when the mailbox is empty.
func Open(path string, seed bool, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox database: %w", err)
	}

	if err := db.AutoMigrate(&EmailRecord{}, &SettingsRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mailbox database: %w", err)
	}

	s := &Store{db: db, logger: logger}

	var settings SettingsRecord
	err = db.First(&settings, 1).Error
	if err == gorm.ErrRecordNotFound {
		settings = SettingsRecord{
			ID:          1,
			Sensitivity: int(core.DefaultSensitivity),
			ReplyTone:   "professional",
			RiskEpoch:   1,
		}
		if err := db.Create(&settings).Error; err != nil {
			return nil, fmt.Errorf("failed to initialize settings: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	s.epoch.Store(settings.RiskEpoch)

	if seed {
		var count int64
		if err := db.Model(&EmailRecord{}).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count emails: %w", err)
		}
		if count == 0 {
			if err := s.seed(); err != nil {
				return nil, err
			}
			logger.Info("mailbox seeded with demo emails")
		}
	}

	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// List returns all emails with the given status, newest first.
func (s *Store) List(ctx context.Context, status core.EmailStatus) ([]*core.Email, error) {
	var records []EmailRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("date DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	emails := make([]*core.Email, len(records))
	for i := range records {
		emails[i] = records[i].toEmail()
	}
	return emails, nil
}

// Get returns one email by ID.
func (s *Store) Get(ctx context.Context, id string) (*core.Email, error) {
	var record EmailRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("email %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load email: %w", err)
	}
	return record.toEmail(), nil
}

// Save inserts or replaces an email.
func (s *Store) Save(ctx context.Context, email *core.Email) error {
	if email.Status == "" {
		email.Status = core.StatusInbox
	}
	if email.Risk == "" {
		email.Risk = core.RiskUnclassified
	}
	if err := s.db.WithContext(ctx).Save(fromEmail(email)).Error; err != nil {
		return fmt.Errorf("failed to save email: %w", err)
	}
	return nil
}

// SetRead updates the unread flag.
func (s *Store) SetRead(ctx context.Context, id string, read bool) error {
	return s.updateField(ctx, id, "unread", !read)
}

// SetStarred updates the starred flag.
func (s *Store) SetStarred(ctx context.Context, id string, starred bool) error {
	return s.updateField(ctx, id, "starred", starred)
}

// SetStatus moves an email between inbox and trash.
func (s *Store) SetStatus(ctx context.Context, id string, status core.EmailStatus) error {
	return s.updateField(ctx, id, "status", string(status))
}

// Delete permanently removes an email.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&EmailRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete email: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("email %s not found", id)
	}
	return nil
}

func (s *Store) updateField(ctx context.Context, id, field string, value interface{}) error {
	res := s.db.WithContext(ctx).Model(&EmailRecord{}).
		Where("id = ?", id).
		Update(field, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update email: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("email %s not found", id)
	}
	return nil
}

// SelectUnclassified returns inbox emails whose risk is still
// unclassified. Pending emails are excluded, which is what keeps a
// re-invoked bulk run from duplicating in-flight requests.
func (s *Store) SelectUnclassified(ctx context.Context) ([]*core.Email, error) {
	var records []EmailRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND risk = ?", string(core.StatusInbox), string(core.RiskUnclassified)).
		Order("date DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select unclassified emails: %w", err)
	}
	emails := make([]*core.Email, len(records))
	for i := range records {
		emails[i] = records[i].toEmail()
	}
	return emails, nil
}

// MarkPending transitions the given emails to pending in one statement.
func (s *Store) MarkPending(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&EmailRecord{}).
		Where("id IN ? AND risk = ?", ids, string(core.RiskUnclassified)).
		Update("risk", string(core.RiskPending)).Error
	if err != nil {
		return fmt.Errorf("failed to mark emails pending: %w", err)
	}
	return nil
}

// SetRisk records a settled classification for one email. Results from a
// stale sensitivity epoch are rejected so they cannot overwrite a fresh
// invalidation; within the current epoch, last write wins.
func (s *Store) SetRisk(ctx context.Context, id string, level core.RiskLevel, epoch int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch.Load() {
		return core.ErrStaleEpoch
	}
	return s.updateField(ctx, id, "risk", string(level))
}

// ResetRisk moves every email back to unclassified.
func (s *Store) ResetRisk(ctx context.Context) error {
	err := s.db.WithContext(ctx).Model(&EmailRecord{}).
		Where("risk <> ?", string(core.RiskUnclassified)).
		Update("risk", string(core.RiskUnclassified)).Error
	if err != nil {
		return fmt.Errorf("failed to reset classifications: %w", err)
	}
	return nil
}

// Settings returns the current user settings.
func (s *Store) Settings(ctx context.Context) (*core.UserSettings, error) {
	var record SettingsRecord
	if err := s.db.WithContext(ctx).First(&record, 1).Error; err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &core.UserSettings{
		Sensitivity: core.Sensitivity(record.Sensitivity),
		ReplyTone:   record.ReplyTone,
	}, nil
}

// UpdateSettings stores new settings. A sensitivity change goes through
// SetSensitivity so the epoch moves with it.
func (s *Store) UpdateSettings(ctx context.Context, settings *core.UserSettings) error {
	current, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	if settings.Sensitivity != current.Sensitivity {
		if _, err := s.SetSensitivity(ctx, settings.Sensitivity); err != nil {
			return err
		}
	}
	err = s.db.WithContext(ctx).Model(&SettingsRecord{}).
		Where("id = ?", 1).
		Update("reply_tone", settings.ReplyTone).Error
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// Sensitivity returns the current value together with its epoch.
func (s *Store) Sensitivity(ctx context.Context) (core.Sensitivity, int64, error) {
	var record SettingsRecord
	if err := s.db.WithContext(ctx).First(&record, 1).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to load settings: %w", err)
	}
	return core.Sensitivity(record.Sensitivity), s.epoch.Load(), nil
}

// SetSensitivity stores a new value and bumps the epoch. Classification
// results started under the previous epoch are rejected from then on.
func (s *Store) SetSensitivity(ctx context.Context, value core.Sensitivity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newEpoch := s.epoch.Load() + 1
	err := s.db.WithContext(ctx).Model(&SettingsRecord{}).
		Where("id = ?", 1).
		Updates(map[string]interface{}{
			"sensitivity": int(value),
			"risk_epoch":  newEpoch,
		}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to update sensitivity: %w", err)
	}
	s.epoch.Store(newEpoch)

	s.logger.Info("sensitivity changed",
		zap.Int("sensitivity", int(value)),
		zap.Int64("epoch", newEpoch))
	return newEpoch, nil
}
