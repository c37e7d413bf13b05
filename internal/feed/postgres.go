package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"usdt-ledger/internal/ledger"
)

// Channel is the PostgreSQL notification channel the schema triggers
// publish on.
const Channel = "ledger_changes"

// PostgresListener relays PostgreSQL change notifications into a
// Broadcaster, so writes made by other instances reach local subscribers.
type PostgresListener struct {
	pool   *pgxpool.Pool
	target ledger.ChangeFeed
	logger ledger.Logger
}

// NewPostgresListener creates a listener that republishes into target.
func NewPostgresListener(pool *pgxpool.Pool, target ledger.ChangeFeed, logger ledger.Logger) *PostgresListener {
	if logger == nil {
		logger = ledger.NewNopLogger()
	}
	return &PostgresListener{pool: pool, target: target, logger: logger}
}

// Run holds one pooled connection in LISTEN mode until ctx is cancelled.
// It returns nil on cancellation and the connection error otherwise.
func (l *PostgresListener) Run(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listening on %s: %w", Channel, err)
	}
	l.logger.Info("listening for changes", "channel", Channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("waiting for notification: %w", err)
		}
		change, ok := ParsePayload(n.Payload)
		if !ok {
			l.logger.Warn("ignoring malformed notification", "payload", n.Payload)
			continue
		}
		l.target.Publish(change)
	}
}

// ParsePayload decodes a '<kind>:<ledger id>' notification payload. The
// ledger part may be empty for unscoped kinds.
func ParsePayload(payload string) (ledger.Change, bool) {
	kind, ledgerID, found := strings.Cut(payload, ":")
	if !found {
		return ledger.Change{}, false
	}
	switch k := ledger.EntityKind(kind); k {
	case ledger.KindUsers, ledger.KindLedgers, ledger.KindTransactions, ledger.KindAttachments:
		return ledger.Change{Kind: k, LedgerID: ledgerID}, true
	default:
		return ledger.Change{}, false
	}
}
