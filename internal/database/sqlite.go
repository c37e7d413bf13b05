package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"usdt-ledger/internal/database/migrations"
	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the ledger.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// This is exported for use in tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	// Foreign keys are enabled through the DSN so every pooled connection
	// gets them, not only the first.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Each connection to :memory: opens a separate empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate brings the schema up to date.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db, migrations.SQLite)
}

// User operations

const userColumns = "id, username, credential, role, created_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Credential, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (s *SQLiteDatabase) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteDatabase) InsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Credential, string(user.Role), user.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return s.findUser(ctx, "id = ?", user.ID)
}

func (s *SQLiteDatabase) Authenticate(ctx context.Context, username, credential string) (*model.User, error) {
	return s.findUser(ctx, "username = ? AND credential = ?", username, credential)
}

func (s *SQLiteDatabase) findUser(ctx context.Context, where string, args ...any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

// Ledger operations

const ledgerColumns = "id, name, secret, created_by, created_at"

func scanLedger(row interface{ Scan(...any) error }) (*model.Ledger, error) {
	var l model.Ledger
	if err := row.Scan(&l.ID, &l.Name, &l.Secret, &l.CreatedBy, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteDatabase) ListLedgers(ctx context.Context) ([]*model.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+ledgerColumns+" FROM ledgers ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []*model.Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func (s *SQLiteDatabase) FindLedger(ctx context.Context, id string) (*model.Ledger, error) {
	l, err := scanLedger(s.db.QueryRowContext(ctx, "SELECT "+ledgerColumns+" FROM ledgers WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding ledger: %w", err)
	}
	return l, nil
}

func (s *SQLiteDatabase) InsertLedger(ctx context.Context, l *model.Ledger) (*model.Ledger, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ledgers ("+ledgerColumns+") VALUES (?, ?, ?, ?, ?)",
		l.ID, l.Name, l.Secret, l.CreatedBy, l.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting ledger: %w", err)
	}
	return s.FindLedger(ctx, l.ID)
}

func (s *SQLiteDatabase) DeleteLedger(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ledgers WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting ledger: %w", err)
	}
	return nil
}

// Transaction operations

const transactionColumns = "id, ledger_id, type, price, quantity, total, timestamp, date_key, edit_count, author_username"

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var typ string
	err := row.Scan(&t.ID, &t.LedgerID, &typ, &t.Price, &t.Quantity, &t.Total,
		&t.Timestamp, &t.DateKey, &t.EditCount, &t.AuthorUsername)
	if err != nil {
		return nil, err
	}
	t.Type = model.TxType(typ)
	return &t, nil
}

func (s *SQLiteDatabase) ListTransactions(ctx context.Context, ledgerID string) ([]*model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE ledger_id = ? ORDER BY timestamp DESC, id DESC",
		ledgerID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *SQLiteDatabase) FindTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding transaction: %w", err)
	}
	return t, nil
}

func (s *SQLiteDatabase) InsertTransaction(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.LedgerID, string(t.Type), t.Price.String(), t.Quantity.String(), t.Total.String(),
		t.Timestamp.UTC(), t.DateKey, t.EditCount, t.AuthorUsername)
	if err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}
	return s.FindTransaction(ctx, t.ID)
}

func (s *SQLiteDatabase) UpdateTransaction(ctx context.Context, id string, f model.TransactionFields) (*model.Transaction, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET type = ?, price = ?, quantity = ?, total = ?, timestamp = ?, date_key = ?, edit_count = ?
		WHERE id = ?`,
		string(f.Type), f.Price.String(), f.Quantity.String(), f.Total.String(),
		f.Timestamp.UTC(), f.DateKey, f.EditCount, id)
	if err != nil {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("updating transaction: no transaction with id %s", id)
	}
	return s.FindTransaction(ctx, id)
}

func (s *SQLiteDatabase) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteAllTransactions(ctx context.Context, ledgerID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE ledger_id = ?", ledgerID); err != nil {
		return fmt.Errorf("deleting transactions: %w", err)
	}
	return nil
}

// Attachment operations

const attachmentColumns = "id, transaction_id, ledger_id, storage_key, public_locator, file_name, file_size, media_kind, encrypted, created_at"

func scanAttachment(row interface{ Scan(...any) error }) (*model.Attachment, error) {
	var a model.Attachment
	var kind string
	err := row.Scan(&a.ID, &a.TransactionID, &a.LedgerID, &a.StorageKey, &a.PublicLocator,
		&a.FileName, &a.FileSize, &kind, &a.Encrypted, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.MediaKind = model.MediaKind(kind)
	return &a, nil
}

func (s *SQLiteDatabase) ListAttachments(ctx context.Context, scope ledger.AttachmentScope) ([]*model.Attachment, error) {
	where := []string{"ledger_id = ?"}
	args := []any{scope.LedgerID}
	if scope.TransactionID != "" {
		where = append(where, "transaction_id = ?")
		args = append(args, scope.TransactionID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+attachmentColumns+" FROM attachments WHERE "+strings.Join(where, " AND ")+" ORDER BY created_at, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var as []*model.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		as = append(as, a)
	}
	return as, rows.Err()
}

func (s *SQLiteDatabase) FindAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	a, err := scanAttachment(s.db.QueryRowContext(ctx,
		"SELECT "+attachmentColumns+" FROM attachments WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding attachment: %w", err)
	}
	return a, nil
}

func (s *SQLiteDatabase) InsertAttachment(ctx context.Context, a *model.Attachment) (*model.Attachment, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO attachments ("+attachmentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.TransactionID, a.LedgerID, a.StorageKey, a.PublicLocator,
		a.FileName, a.FileSize, string(a.MediaKind), a.Encrypted, a.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting attachment: %w", err)
	}
	return s.FindAttachment(ctx, a.ID)
}

func (s *SQLiteDatabase) DeleteAttachment(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db, migrations.SQLite)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time checks
var (
	_ ledger.Database    = (*SQLiteDatabase)(nil)
	_ ledger.Snapshotter = (*SQLiteDatabase)(nil)
)
