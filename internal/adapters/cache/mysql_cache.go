package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

// MySQLCache is a MySQL-backed risk cache for deployments that share the
// cache between instances.
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLCache connects to MySQL and migrates the risk cache table.
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS risk_cache (
			email_id VARCHAR(64) PRIMARY KEY,
			epoch BIGINT,
			level VARCHAR(16),
			score DOUBLE,
			justification TEXT,
			analyzed_at TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_risk_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	c := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	go c.startCleanupTask()
	return c, nil
}

// Get retrieves the entry for an email under the given sensitivity epoch.
func (c *MySQLCache) Get(ctx context.Context, emailID string, epoch int64) (*core.RiskEntry, error) {
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
func (c *MySQLCache) Set(ctx context.Context, entry *core.RiskEntry) error {
	_, err := c.db.ExecContext(ctx, `
		REPLACE INTO risk_cache
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
func (c *MySQLCache) Invalidate(ctx context.Context, emailID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM risk_cache WHERE email_id = ?`, emailID)
	if err != nil {
		return fmt.Errorf("failed to invalidate risk cache entry: %w", err)
	}
	return nil
}

// InvalidateAll removes every entry.
func (c *MySQLCache) InvalidateAll(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM risk_cache`)
	if err != nil {
		return fmt.Errorf("failed to invalidate risk cache: %w", err)
	}
	return nil
}

// Cleanup removes expired entries.
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM risk_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean up risk cache: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		c.logger.Debug("cleaned up expired risk cache entries", zap.Int64("expired_count", n))
	}
	return nil
}

func (c *MySQLCache) startCleanupTask() {
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
func (c *MySQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.db.Close()
	})
}
