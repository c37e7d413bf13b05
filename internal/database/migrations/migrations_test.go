package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := MigrateUp(db, SQLite)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"users", "ledgers", "transactions", "attachments", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db, SQLite)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	err := CheckDBMigrationStatus(db, SQLite)
	if err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Run migration twice
	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db, SQLite); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestMigrateUp_UnknownDialect(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, Dialect("oracle")); err == nil {
		t.Error("MigrateUp() expected error for unknown dialect, got nil")
	}
}

func TestLatestVersion(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    uint
	}{
		{SQLite, 1},
		{Postgres, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			got, err := LatestVersion(tt.dialect)
			if err != nil {
				t.Fatalf("LatestVersion() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("LatestVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A transaction pointing at a missing ledger must be rejected.
	_, err := db.Exec(`
		INSERT INTO transactions (id, ledger_id, type, price, quantity, total, timestamp, date_key, edit_count, author_username)
		VALUES ('tx-1', 'no-such-ledger', 'BUY', '7', '100', '700', datetime('now'), '2025-01-01', 0, 'alice')
	`)

	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_TransactionTypeChecked(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO ledgers (id, name, secret, created_by, created_at) VALUES ('l-1', 'main', 's', 'admin', datetime('now'))"); err != nil {
		t.Fatalf("Failed to insert ledger: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO transactions (id, ledger_id, type, price, quantity, total, timestamp, date_key, edit_count, author_username)
		VALUES ('tx-1', 'l-1', 'HOLD', '7', '100', '700', datetime('now'), '2025-01-01', 0, 'alice')
	`)
	if err == nil {
		t.Error("Expected check constraint violation for unknown type, but insert succeeded")
	}
}

func TestSchema_UsernameUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO users (id, username, credential, role, created_at) VALUES ('u-1', 'alice', 'pw', 'ADMIN', datetime('now'))")
	if err != nil {
		t.Fatalf("Failed to insert first user: %v", err)
	}

	_, err = db.Exec("INSERT INTO users (id, username, credential, role, created_at) VALUES ('u-2', 'alice', 'pw', 'OPERATOR', datetime('now'))")
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate username, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Each pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	return db
}
