package database

import (
	"context"
	"testing"

	"usdt-ledger/internal/config"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory database is migrated", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "memory"}
		got, err := NewDatabaseFromConfig(ctx, cfg, "test-instance-123")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() = %v, want nil", err)
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Type:    "sqlite",
			DataDir: t.TempDir(),
		}
		got, err := NewDatabaseFromConfig(ctx, cfg, "test-instance-123")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() on a fresh file = nil, want needs-migration error")
		}
		if err := got.Migrate(); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() after Migrate() = %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite"}
		got, err := NewDatabaseFromConfig(ctx, cfg, "test-instance-123")

		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("postgres database without url", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "postgres"}
		got, err := NewDatabaseFromConfig(ctx, cfg, "test-instance-123")

		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for missing url, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "unknown"}
		got, err := NewDatabaseFromConfig(ctx, cfg, "test-instance-123")

		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for unknown type, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})
}
