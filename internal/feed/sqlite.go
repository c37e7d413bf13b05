package feed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"usdt-ledger/internal/ledger"
)

// DefaultPollInterval is how often a SQLitePoller checks for commits.
const DefaultPollInterval = 500 * time.Millisecond

// SQLitePoller relays commits made through other connections to a SQLite
// file into a Broadcaster. SQLite has no notification channel, so it polls
// PRAGMA data_version on one pinned connection; the value moves whenever
// any other connection commits. The commit's ledger is unknown, so every
// change is published unscoped.
type SQLitePoller struct {
	db       *sql.DB
	target   ledger.ChangeFeed
	logger   ledger.Logger
	interval time.Duration

	conn *sql.Conn
	last int64
}

// NewSQLitePoller creates a poller on db that republishes into target.
// db should be a connection pool of its own, since one connection stays
// pinned while the poller runs.
func NewSQLitePoller(db *sql.DB, target ledger.ChangeFeed, logger ledger.Logger, interval time.Duration) *SQLitePoller {
	if logger == nil {
		logger = ledger.NewNopLogger()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &SQLitePoller{db: db, target: target, logger: logger, interval: interval}
}

// Listen pins a connection and records the current data version. Commits
// after Listen returns are reported by Run.
func (p *SQLitePoller) Listen(ctx context.Context) error {
	if p.conn != nil {
		return nil
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pinning poll connection: %w", err)
	}
	v, err := dataVersion(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}
	p.conn, p.last = conn, v
	return nil
}

// Run polls until ctx is cancelled, calling Listen first if needed. It
// returns nil on cancellation and the query error otherwise. The pinned
// connection is released on return.
func (p *SQLitePoller) Run(ctx context.Context) error {
	if err := p.Listen(ctx); err != nil {
		return err
	}
	defer func() {
		p.conn.Close()
		p.conn = nil
	}()

	p.logger.Info("polling for changes", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		v, err := dataVersion(ctx, p.conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if v == p.last {
			continue
		}
		p.last = v
		p.logger.Debug("database changed", "data_version", v)
		for _, kind := range []ledger.EntityKind{ledger.KindUsers, ledger.KindLedgers, ledger.KindTransactions, ledger.KindAttachments} {
			p.target.Publish(ledger.Change{Kind: kind})
		}
	}
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading data_version: %w", err)
	}
	return v, nil
}
