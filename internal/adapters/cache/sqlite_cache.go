package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

// SQLiteCache is a SQLite-backed risk cache.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewSQLiteCache opens (and migrates) a SQLite risk cache at the given
// path.
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS risk_cache (
			email_id TEXT PRIMARY KEY,
			epoch INTEGER,
			level TEXT,
			score REAL,
			justification TEXT,
			analyzed_at TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_risk_expires_at ON risk_cache(expires_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	c := &SQLiteCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	go c.startCleanupTask()
	return c, nil
}

// Get retrieves the entry for an email under the given sensitivity epoch.
func (c *SQLiteCache) Get(ctx context.Context, emailID string, epoch int64) (*core.RiskEntry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT email_id, epoch, level, score, justification, analyzed_at, expires_at
		FROM risk_cache
		WHERE email_id = ? AND epoch = ? AND expires_at > ?
	`, emailID, epoch, time.Now())

	var entry core.RiskEntry
	var level string
	err := row.Scan(&entry.EmailID, &entry.Epoch, &level, &entry.Score,
		&entry.Justification, &entry.AnalyzedAt, &entry.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query risk cache: %w", err)
	}
	entry.Level = core.RiskLevel(level)
	return &entry, nil
}

// Set stores an entry, replacing any previous one for the same email.
func (c *SQLiteCache) Set(ctx context.Context, entry *core.RiskEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO risk_cache
			(email_id, epoch, level, score, justification, analyzed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.EmailID, entry.Epoch, string(entry.Level), entry.Score,
		entry.Justification, entry.AnalyzedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store risk cache entry: %w", err)
	}
	return nil
}

// Invalidate removes the entry for one email.
func (c *SQLiteCache) Invalidate(ctx context.Context, emailID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM risk_cache WHERE email_id = ?`, emailID)
	if err != nil {
		return fmt.Errorf("failed to invalidate risk cache entry: %w", err)
	}
	return nil
}

// InvalidateAll removes every entry.
func (c *SQLiteCache) InvalidateAll(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM risk_cache`)
	if err != nil {
		return fmt.Errorf("failed to invalidate risk cache: %w", err)
	}
	return nil
}

// Cleanup removes expired entries.
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM risk_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean up risk cache: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		c.logger.Debug("cleaned up expired risk cache entries", zap.Int64("expired_count", n))
	}
	return nil
}

func (c *SQLiteCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("failed to clean up risk cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database.
func (c *SQLiteCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.db.Close()
	})
}
