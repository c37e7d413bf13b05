package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"usdt-ledger/internal/database/migrations"
	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"
)

// PostgresDatabase implements the ledger.Database interface on PostgreSQL.
// Numeric columns travel as text so decimals keep their exact value.
type PostgresDatabase struct {
	Pool *pgxpool.Pool
}

// NewPostgresDatabase connects to url and verifies the connection.
func NewPostgresDatabase(ctx context.Context, url string) (*PostgresDatabase, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresDatabase{Pool: pool}, nil
}

// NewPostgresDatabaseFromPool wraps an existing pool.
func NewPostgresDatabaseFromPool(pool *pgxpool.Pool) *PostgresDatabase {
	return &PostgresDatabase{Pool: pool}
}

// Migrate brings the schema up to date.
func (p *PostgresDatabase) Migrate() error {
	db := stdlib.OpenDBFromPool(p.Pool)
	defer db.Close()
	return migrations.MigrateUp(db, migrations.Postgres)
}

// CheckMigrations verifies the database schema is up-to-date.
func (p *PostgresDatabase) CheckMigrations() error {
	db := stdlib.OpenDBFromPool(p.Pool)
	defer db.Close()
	return migrations.CheckDBMigrationStatus(db, migrations.Postgres)
}

// User operations

func (p *PostgresDatabase) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := p.Pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
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

func (p *PostgresDatabase) InsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	_, err := p.Pool.Exec(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5)",
		user.ID, user.Username, user.Credential, string(user.Role), user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return p.findUser(ctx, "id = $1", user.ID)
}

func (p *PostgresDatabase) Authenticate(ctx context.Context, username, credential string) (*model.User, error) {
	return p.findUser(ctx, "username = $1 AND credential = $2", username, credential)
}

func (p *PostgresDatabase) findUser(ctx context.Context, where string, args ...any) (*model.User, error) {
	u, err := scanUser(p.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

// Ledger operations

func (p *PostgresDatabase) ListLedgers(ctx context.Context) ([]*model.Ledger, error) {
	rows, err := p.Pool.Query(ctx, "SELECT "+ledgerColumns+" FROM ledgers ORDER BY created_at, id")
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

func (p *PostgresDatabase) FindLedger(ctx context.Context, id string) (*model.Ledger, error) {
	l, err := scanLedger(p.Pool.QueryRow(ctx, "SELECT "+ledgerColumns+" FROM ledgers WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding ledger: %w", err)
	}
	return l, nil
}

func (p *PostgresDatabase) InsertLedger(ctx context.Context, l *model.Ledger) (*model.Ledger, error) {
	_, err := p.Pool.Exec(ctx,
		"INSERT INTO ledgers ("+ledgerColumns+") VALUES ($1, $2, $3, $4, $5)",
		l.ID, l.Name, l.Secret, l.CreatedBy, l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting ledger: %w", err)
	}
	return p.FindLedger(ctx, l.ID)
}

func (p *PostgresDatabase) DeleteLedger(ctx context.Context, id string) error {
	if _, err := p.Pool.Exec(ctx, "DELETE FROM ledgers WHERE id = $1", id); err != nil {
		return fmt.Errorf("deleting ledger: %w", err)
	}
	return nil
}

// Transaction operations

const pgTransactionSelect = `SELECT id, ledger_id, type, price::text, quantity::text, total::text,
	timestamp, date_key, edit_count, author_username FROM transactions`

func scanPgTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var typ, price, quantity, total string
	err := row.Scan(&t.ID, &t.LedgerID, &typ, &price, &quantity, &total,
		&t.Timestamp, &t.DateKey, &t.EditCount, &t.AuthorUsername)
	if err != nil {
		return nil, err
	}
	t.Type = model.TxType(typ)
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parsing price %q: %w", price, err)
	}
	if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("parsing quantity %q: %w", quantity, err)
	}
	if t.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parsing total %q: %w", total, err)
	}
	return &t, nil
}

func (p *PostgresDatabase) ListTransactions(ctx context.Context, ledgerID string) ([]*model.Transaction, error) {
	rows, err := p.Pool.Query(ctx,
		pgTransactionSelect+" WHERE ledger_id = $1 ORDER BY timestamp DESC, id DESC", ledgerID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*model.Transaction
	for rows.Next() {
		t, err := scanPgTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (p *PostgresDatabase) FindTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	t, err := scanPgTransaction(p.Pool.QueryRow(ctx, pgTransactionSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding transaction: %w", err)
	}
	return t, nil
}

func (p *PostgresDatabase) InsertTransaction(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	_, err := p.Pool.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10)`,
		t.ID, t.LedgerID, string(t.Type), t.Price.String(), t.Quantity.String(), t.Total.String(),
		t.Timestamp, t.DateKey, t.EditCount, t.AuthorUsername)
	if err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}
	return p.FindTransaction(ctx, t.ID)
}

func (p *PostgresDatabase) UpdateTransaction(ctx context.Context, id string, f model.TransactionFields) (*model.Transaction, error) {
	tag, err := p.Pool.Exec(ctx, `
		UPDATE transactions
		SET type = $1, price = $2::numeric, quantity = $3::numeric, total = $4::numeric,
		    timestamp = $5, date_key = $6, edit_count = $7
		WHERE id = $8`,
		string(f.Type), f.Price.String(), f.Quantity.String(), f.Total.String(),
		f.Timestamp, f.DateKey, f.EditCount, id)
	if err != nil {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("updating transaction: no transaction with id %s", id)
	}
	return p.FindTransaction(ctx, id)
}

func (p *PostgresDatabase) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := p.Pool.Exec(ctx, "DELETE FROM transactions WHERE id = $1", id); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) DeleteAllTransactions(ctx context.Context, ledgerID string) error {
	if _, err := p.Pool.Exec(ctx, "DELETE FROM transactions WHERE ledger_id = $1", ledgerID); err != nil {
		return fmt.Errorf("deleting transactions: %w", err)
	}
	return nil
}

// Attachment operations

func (p *PostgresDatabase) ListAttachments(ctx context.Context, scope ledger.AttachmentScope) ([]*model.Attachment, error) {
	where := []string{"ledger_id = $1"}
	args := []any{scope.LedgerID}
	if scope.TransactionID != "" {
		where = append(where, "transaction_id = $2")
		args = append(args, scope.TransactionID)
	}

	rows, err := p.Pool.Query(ctx,
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

func (p *PostgresDatabase) FindAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	a, err := scanAttachment(p.Pool.QueryRow(ctx,
		"SELECT "+attachmentColumns+" FROM attachments WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding attachment: %w", err)
	}
	return a, nil
}

func (p *PostgresDatabase) InsertAttachment(ctx context.Context, a *model.Attachment) (*model.Attachment, error) {
	_, err := p.Pool.Exec(ctx,
		"INSERT INTO attachments ("+attachmentColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		a.ID, a.TransactionID, a.LedgerID, a.StorageKey, a.PublicLocator,
		a.FileName, a.FileSize, string(a.MediaKind), a.Encrypted, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting attachment: %w", err)
	}
	return p.FindAttachment(ctx, a.ID)
}

func (p *PostgresDatabase) DeleteAttachment(ctx context.Context, id string) error {
	if _, err := p.Pool.Exec(ctx, "DELETE FROM attachments WHERE id = $1", id); err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *PostgresDatabase) Close() error {
	p.Pool.Close()
	return nil
}

var _ ledger.Database = (*PostgresDatabase)(nil)
