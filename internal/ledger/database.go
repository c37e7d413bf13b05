package ledger

import (
	"context"

	"usdt-ledger/internal/model"
)

// Database is the row store for users, ledgers, transactions and attachment
// metadata. Find* methods return (nil, nil) when the row does not exist.
type Database interface {
	// User operations

	// ListUsers returns all users ordered by creation time.
	ListUsers(ctx context.Context) ([]*model.User, error)

	// InsertUser creates a user. Usernames are unique.
	InsertUser(ctx context.Context, user *model.User) (*model.User, error)

	// Authenticate returns the user whose username and credential both match.
	Authenticate(ctx context.Context, username, credential string) (*model.User, error)

	// Ledger operations

	// ListLedgers returns all ledgers ordered by creation time.
	ListLedgers(ctx context.Context) ([]*model.Ledger, error)

	// FindLedger returns a ledger by ID.
	FindLedger(ctx context.Context, id string) (*model.Ledger, error)

	// InsertLedger creates a ledger.
	InsertLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error)

	// DeleteLedger deletes a ledger and, by cascade, its transactions and
	// attachment records.
	DeleteLedger(ctx context.Context, id string) error

	// Transaction operations

	// ListTransactions returns every transaction of a ledger, newest first.
	ListTransactions(ctx context.Context, ledgerID string) ([]*model.Transaction, error)

	// FindTransaction returns a transaction by ID.
	FindTransaction(ctx context.Context, id string) (*model.Transaction, error)

	// InsertTransaction creates a transaction.
	InsertTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error)

	// UpdateTransaction overwrites the mutable fields of a transaction.
	UpdateTransaction(ctx context.Context, id string, fields model.TransactionFields) (*model.Transaction, error)

	// DeleteTransaction deletes a transaction and, by cascade, its attachment records.
	DeleteTransaction(ctx context.Context, id string) error

	// DeleteAllTransactions deletes every transaction of a ledger.
	DeleteAllTransactions(ctx context.Context, ledgerID string) error

	// Attachment operations

	// ListAttachments returns attachment records matching scope, oldest first.
	ListAttachments(ctx context.Context, scope AttachmentScope) ([]*model.Attachment, error)

	// FindAttachment returns an attachment record by ID.
	FindAttachment(ctx context.Context, id string) (*model.Attachment, error)

	// InsertAttachment records an attachment.
	InsertAttachment(ctx context.Context, a *model.Attachment) (*model.Attachment, error)

	// DeleteAttachment removes an attachment record. The blob is not touched.
	DeleteAttachment(ctx context.Context, id string) error

	// Maintenance

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}

// AttachmentScope selects attachment records. An empty TransactionID
// selects every attachment of the ledger.
type AttachmentScope struct {
	LedgerID      string
	TransactionID string
}

// Snapshotter is implemented by stores that can copy themselves to a file.
type Snapshotter interface {
	BackupTo(destPath string) error
}
