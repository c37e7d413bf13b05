package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"usdt-ledger/internal/config"
	"usdt-ledger/internal/ledger"
)

// Store is a ledger database that can also migrate its own schema.
type Store interface {
	ledger.Database
	Migrate() error
}

// NewDatabaseFromConfig creates a Store implementation based on the database config type.
// In-memory databases are migrated immediately since they start empty.
func NewDatabaseFromConfig(ctx context.Context, cfg config.DatabaseConfig, instanceID string) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, instanceID+".db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return db, nil
	case "postgres":
		if cfg.URL == "" {
			return nil, fmt.Errorf("url required for postgres database")
		}
		db, err := NewPostgresDatabase(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
