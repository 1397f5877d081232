package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/contact-guard/internal/adapters/submissionlog"
	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates submission logs based on configuration
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

// CreateSubmissionLog creates a submission log based on the configuration
func (f *StoreFactory) CreateSubmissionLog(ctx context.Context) (core.SubmissionLog, error) {
	storeCfg, err := f.cfg.GetStore()
	if err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	switch storeCfg.Type {
	case "memory":
		return submissionlog.NewMemoryLog(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return submissionlog.NewSQLiteLog(storeCfg.SQLitePath, storeCfg.LockTimeout, f.logger)
	case "mysql":
		return submissionlog.NewMySQLLog(storeCfg.MySQLDSN, storeCfg.LockTimeout, f.logger)
	case "postgres":
		return submissionlog.NewPostgresLog(ctx, storeCfg.PostgresDSN, storeCfg.LockTimeout, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}
