// Package cache provides the risk-cache backends. All of them implement
// core.RiskCacheRepository with entries keyed by email ID and scoped to a
// sensitivity epoch.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

var (
	// ErrNotFound is returned when no valid entry exists for an email.
	ErrNotFound = errors.New("risk cache entry not found")
)

// MemoryCache is an in-memory risk cache.
type MemoryCache struct {
	entries     map[string]*core.RiskEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory cache with a background cleanup
// task.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:     make(map[string]*core.RiskEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	go c.startCleanupTask()
	return c
}

// Get retrieves the entry for an email under the given sensitivity epoch.
func (c *MemoryCache) Get(ctx context.Context, emailID string, epoch int64) (*core.RiskEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[emailID]
	if !ok || entry.Epoch != epoch || time.Now().After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

// Set stores an entry, replacing any previous one for the same email.
func (c *MemoryCache) Set(ctx context.Context, entry *core.RiskEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *entry
	c.entries[entry.EmailID] = &cp
	return nil
}

// Invalidate removes the entry for one email.
func (c *MemoryCache) Invalidate(ctx context.Context, emailID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, emailID)
	return nil
}

// InvalidateAll removes every entry.
func (c *MemoryCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*core.RiskEntry)
	return nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expired := 0
	for id, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, id)
			expired++
		}
	}

	c.logger.Debug("cleaned up expired risk cache entries", zap.Int("expired_count", expired))
	return nil
}

func (c *MemoryCache) startCleanupTask() {
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

// Stop stops the background cleanup task.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
