package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"usdt-ledger/internal/accounting"
	"usdt-ledger/internal/config"
	"usdt-ledger/internal/database"
	"usdt-ledger/internal/encryption"
	"usdt-ledger/internal/feed"
	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"
	"usdt-ledger/internal/vault"
)

// App is the application layer between the CLI and ledger.Service.
// It constructs all dependencies from config, exposes operations that
// accept raw CLI strings, and releases resources on Close.
type App struct {
	cfg       *config.Config
	zone      *time.Location
	db        database.Store
	vault     ledger.Vault
	encryptor ledger.Encryptor
	feed      *feed.Broadcaster
	service   *ledger.Service
	clock     ledger.Clock
	logger    ledger.Logger
	op        *Operation
	logFile   *os.File
}

// PollInterval is how often Watch checks a shared SQLite file for commits
// by other processes.
var PollInterval = feed.DefaultPollInterval

// Options tune how an App is built.
type Options struct {
	// Operation names the CLI command being run, e.g. "AddTransaction".
	Operation string
	// Verbose enables debug logging.
	Verbose bool
}

// New creates a fully wired App from the given config. The schema must be
// current; run Migrate first on a fresh database. The caller must call
// Close when done.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	zone, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var v ledger.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run `usdt db migrate`): %w", err)
	}

	clock := ledger.RealClock{}
	idgen := ledger.UUIDGenerator{}
	op := NewOperation(opts.Operation, clock, idgen)

	l, logFile, err := newLogger(cfg.LogDir, op.LogID(), opts.Verbose)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	broadcaster := feed.NewBroadcaster(logger)
	svc := ledger.NewService(db, v, broadcaster, enc, logger, clock, idgen, ledger.Settings{
		Zone:             zone,
		RegistrationCode: cfg.RegistrationCode,
	})

	logger.Debug("app started", "database", cfg.Database.Type, "zone", zone.String())
	return &App{
		cfg:       cfg,
		zone:      zone,
		db:        db,
		vault:     v,
		encryptor: enc,
		feed:      broadcaster,
		service:   svc,
		clock:     clock,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Migrate brings the configured database schema up to date.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database, cfg.InstanceID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Service exposes the underlying service for callers that already hold
// parsed inputs.
func (a *App) Service() *ledger.Service { return a.service }

// Zone returns the ledger time zone.
func (a *App) Zone() *time.Location { return a.zone }

// Today returns today's date key in the ledger zone.
func (a *App) Today() string {
	return accounting.DateKeyOf(a.clock.Now(), a.zone)
}

// Fail marks the running operation as failed; Close logs the outcome.
func (a *App) Fail(err error) {
	if err != nil {
		a.op.Fail()
		a.logger.Error("operation failed", "error", err)
	}
}

// Users

// Register creates a user. role is "admin" or "operator".
func (a *App) Register(ctx context.Context, username, credential, role, code string) (*model.User, error) {
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	return a.service.Register(ctx, ledger.RegisterInput{
		Username:   username,
		Credential: credential,
		Role:       r,
		Code:       code,
	})
}

// Login authenticates a user.
func (a *App) Login(ctx context.Context, username, credential string) (ledger.ActingUser, error) {
	return a.service.Login(ctx, username, credential)
}

// Capacity reports the role caps.
func (a *App) Capacity(ctx context.Context) (ledger.Capacity, error) {
	return a.service.RoleCapacity(ctx)
}

// Ledgers

// CreateLedger creates a ledger.
func (a *App) CreateLedger(ctx context.Context, actor ledger.ActingUser, name, secret string) (*model.Ledger, error) {
	return a.service.CreateLedger(ctx, actor, name, secret)
}

// ListLedgers lists ledgers without their secrets.
func (a *App) ListLedgers(ctx context.Context, actor ledger.ActingUser) ([]ledger.LedgerInfo, error) {
	return a.service.ListLedgers(ctx, actor)
}

// ResolveLedger maps a ledger ID or unique name to its ID.
func (a *App) ResolveLedger(ctx context.Context, actor ledger.ActingUser, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("no ledger given")
	}
	infos, err := a.service.ListLedgers(ctx, actor)
	if err != nil {
		return "", err
	}

	var byName []string
	for _, l := range infos {
		if l.ID == ref {
			return l.ID, nil
		}
		if strings.EqualFold(l.Name, ref) {
			byName = append(byName, l.ID)
		}
	}
	switch len(byName) {
	case 0:
		return "", fmt.Errorf("no ledger %q", ref)
	case 1:
		return byName[0], nil
	default:
		return "", fmt.Errorf("ledger name %q is ambiguous; use its id", ref)
	}
}

// Open selects a ledger by ID or name.
func (a *App) Open(ctx context.Context, actor ledger.ActingUser, ref, secret string) (*ledger.Session, error) {
	id, err := a.ResolveLedger(ctx, actor, ref)
	if err != nil {
		return nil, err
	}
	return a.service.SelectLedger(ctx, actor, id, secret)
}

// DeleteLedger deletes a ledger by ID or name.
func (a *App) DeleteLedger(ctx context.Context, actor ledger.ActingUser, ref string) error {
	id, err := a.ResolveLedger(ctx, actor, ref)
	if err != nil {
		return err
	}
	return a.service.DeleteLedger(ctx, actor, id)
}

// Transactions

// AddTransaction parses CLI arguments and records a transaction.
func (a *App) AddTransaction(ctx context.Context, sess *ledger.Session, txType, price, quantity, at string) (*model.Transaction, error) {
	in, err := ParseTransactionInput(txType, price, quantity, at, a.zone, a.clock.Now())
	if err != nil {
		return nil, err
	}
	return a.service.CreateTransaction(ctx, sess, in)
}

// EditTransaction parses CLI arguments and overwrites a transaction. Empty
// arguments keep the current value.
func (a *App) EditTransaction(ctx context.Context, sess *ledger.Session, id, txType, price, quantity, at string) (*model.Transaction, error) {
	current, err := a.service.GetTransaction(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	if txType == "" {
		txType = string(current.Type)
	}
	if price == "" {
		price = current.Price.String()
	}
	if quantity == "" {
		quantity = current.Quantity.String()
	}
	in, err := ParseTransactionInput(txType, price, quantity, at, a.zone, current.Timestamp)
	if err != nil {
		return nil, err
	}
	return a.service.EditTransaction(ctx, sess, id, in)
}

// DeleteTransaction removes a transaction.
func (a *App) DeleteTransaction(ctx context.Context, sess *ledger.Session, id string) error {
	return a.service.DeleteTransaction(ctx, sess, id)
}

// ClearTransactions removes every transaction of the ledger.
func (a *App) ClearTransactions(ctx context.Context, sess *ledger.Session) error {
	return a.service.DeleteAllTransactions(ctx, sess)
}

// ListTransactions lists the ledger's transactions, newest first.
func (a *App) ListTransactions(ctx context.Context, sess *ledger.Session) ([]*model.Transaction, error) {
	return a.service.ListTransactions(ctx, sess)
}

// Report computes the daily and weekly views. An empty date means today.
func (a *App) Report(ctx context.Context, sess *ledger.Session, date string) (*ledger.Snapshot, error) {
	if date == "" {
		date = a.Today()
	}
	return a.service.Snapshot(ctx, sess, date)
}

// Watch streams snapshots until ctx is cancelled. Writes made by other
// processes reach the watcher through a PostgreSQL listener, or through a
// data_version poller on a shared SQLite file.
func (a *App) Watch(ctx context.Context, sess *ledger.Session, date string, onUpdate func(*ledger.Snapshot)) error {
	if date == "" {
		date = a.Today()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := a.relayRemoteChanges(ctx)
	err := a.service.Watch(ctx, sess, date, onUpdate)
	cancel()
	<-stopped
	return err
}

// relayRemoteChanges starts the change source for the configured store.
// The returned channel is closed once the source has stopped. In-memory
// stores have no other writers and get none.
func (a *App) relayRemoteChanges(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})

	var run func(context.Context) error
	switch db := a.db.(type) {
	case *database.PostgresDatabase:
		run = feed.NewPostgresListener(db.Pool, a.feed, a.logger).Run
	case *database.SQLiteDatabase:
		if db.Path() == "" || db.Path() == ":memory:" {
			break
		}
		conn, err := database.OpenConnection(db.Path())
		if err != nil {
			a.logger.Warn("cannot poll for changes; only local changes are shown", "error", err)
			break
		}
		// Listen before the first snapshot so no commit falls in between.
		poller := feed.NewSQLitePoller(conn, a.feed, a.logger, PollInterval)
		if err := poller.Listen(ctx); err != nil {
			conn.Close()
			a.logger.Warn("cannot poll for changes; only local changes are shown", "error", err)
			break
		}
		run = func(ctx context.Context) error {
			defer conn.Close()
			return poller.Run(ctx)
		}
	}

	if run == nil {
		close(stopped)
		return stopped
	}
	go func() {
		defer close(stopped)
		if err := run(ctx); err != nil {
			a.logger.Warn("change listener stopped; only local changes are shown", "error", err)
		}
	}()
	return stopped
}

// Attachments

// Attach uploads the file at path as evidence for a transaction.
func (a *App) Attach(ctx context.Context, sess *ledger.Session, txID, path string) (*model.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return a.service.AttachFile(ctx, sess, txID, info.Name(), f, info.Size())
}

// ListAttachments lists a transaction's attachments.
func (a *App) ListAttachments(ctx context.Context, sess *ledger.Session, txID string) ([]*model.Attachment, error) {
	return a.service.ListAttachments(ctx, sess, txID)
}

// NeedsPassphrase reports whether fetching evidence requires unlocking the
// private key.
func (a *App) NeedsPassphrase() bool {
	return a.encryptor != nil
}

// FetchAttachment writes an attachment's plaintext to w. passphrase
// unlocks the private key for encrypted attachments.
func (a *App) FetchAttachment(ctx context.Context, sess *ledger.Session, id string, w io.Writer, passphrase string) (*model.Attachment, error) {
	var dc ledger.DecryptionContext
	if a.encryptor != nil && passphrase != "" {
		var err error
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.service.FetchAttachment(ctx, sess, id, w, dc)
}

// DeleteAttachment removes an attachment.
func (a *App) DeleteAttachment(ctx context.Context, sess *ledger.Session, id string) error {
	return a.service.DeleteAttachment(ctx, sess, id)
}

// Maintenance

// Backup uploads a copy of the database to the vault.
func (a *App) Backup(ctx context.Context, actor ledger.ActingUser) (string, error) {
	return a.service.BackupDatabase(ctx, actor)
}

// ValidateVault checks the configured vault is reachable.
func (a *App) ValidateVault(ctx context.Context) error {
	if a.vault == nil {
		return errors.New("no vault configured")
	}
	return a.vault.ValidateSetup(ctx)
}

// Close logs the outcome of the operation and closes all resources.
func (a *App) Close() error {
	var firstErr error

	a.logger.Info("operation finished", "status", a.op.Status, "duration", a.clock.Now().Sub(a.op.Started).Round(time.Millisecond))

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// SetupKeys generates the evidence encryption key pair.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	if enc == nil {
		return errors.New(`encryption type is "none"; set [encryption] type = "age" first`)
	}
	return enc.Setup(passphrase)
}
