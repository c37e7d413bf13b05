package ledger

import (
	"context"
	"time"

	"usdt-ledger/internal/accounting"
	"usdt-ledger/internal/model"
)

// Snapshot is a full recomputation of a ledger's views from one fetch.
type Snapshot struct {
	Transactions []*model.Transaction // newest first
	Daily        accounting.DailySummary
	Weekly       []accounting.WeeklySummary // most recent week first
	FetchedAt    time.Time
}

// Snapshot fetches every transaction of the session's ledger and refolds
// the daily view for dateKey and the weekly view.
func (s *Service) Snapshot(ctx context.Context, sess *Session, dateKey string) (*Snapshot, error) {
	const op = "Snapshot"

	if _, err := accounting.ParseDateKey(dateKey); err != nil {
		return nil, validationError(op, "%v", err)
	}
	txs, err := s.ListTransactions(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Transactions: txs,
		Daily:        accounting.Daily(txs, dateKey),
		Weekly:       accounting.Weekly(txs, s.zone),
		FetchedAt:    s.clock.Now(),
	}, nil
}

// Watch calls onUpdate with a fresh snapshot now and after every change to
// the session ledger's transactions, until ctx is cancelled. Bursts of
// notifications collapse into one refetch. A failed refetch is logged and
// the previous snapshot stays current.
func (s *Service) Watch(ctx context.Context, sess *Session, dateKey string, onUpdate func(*Snapshot)) error {
	const op = "Watch"

	if err := checkSession(op, sess); err != nil {
		return err
	}
	if _, err := accounting.ParseDateKey(dateKey); err != nil {
		return validationError(op, "%v", err)
	}

	changed := make(chan struct{}, 1)
	unsubscribe := s.feed.Subscribe(KindTransactions, sess.LedgerID(), func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	refresh := func() {
		snap, err := s.Snapshot(ctx, sess, dateKey)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("refetch failed, keeping last snapshot", "ledger", sess.LedgerID(), "error", err)
			}
			return
		}
		onUpdate(snap)
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			refresh()
		}
	}
}
