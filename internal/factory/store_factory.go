package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/config"
	"github.com/guardianmail/guardianmail/internal/store"
)

// StoreFactory creates the mailbox store
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore opens the mailbox store described by the configuration
func (f *StoreFactory) CreateStore() (*store.Store, error) {
	storeCfg := f.cfg.GetStore()
	if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return store.Open(storeCfg.SQLitePath, storeCfg.SeedDemoData, f.logger)
}
