package ledger

import (
	"context"
	"strings"
	"time"

	"usdt-ledger/internal/model"
)

// LedgerInfo is the public view of a ledger; it never carries the secret.
type LedgerInfo struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// CreateLedger creates a ledger guarded by secret. Only admins can.
func (s *Service) CreateLedger(ctx context.Context, actor ActingUser, name, secret string) (*model.Ledger, error) {
	const op = "CreateLedger"

	if !actor.IsAdmin() {
		return nil, permissionError(op, "only an admin can create ledgers")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError(op, "name is required")
	}
	if secret == "" {
		return nil, validationError(op, "secret is required")
	}

	l, err := s.database.InsertLedger(ctx, &model.Ledger{
		ID:        s.idgen.New(),
		Name:      name,
		Secret:    secret,
		CreatedBy: actor.Username,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, collaboratorError(op, "inserting ledger", err)
	}

	s.publish(KindLedgers, "")
	s.logger.Info("ledger created", "ledger", l.ID, "name", l.Name, "by", actor.Username)
	return l, nil
}

// ListLedgers returns every ledger without secrets.
func (s *Service) ListLedgers(ctx context.Context, actor ActingUser) ([]LedgerInfo, error) {
	const op = "ListLedgers"

	if !actor.authenticated() {
		return nil, permissionError(op, "not authenticated")
	}
	ledgers, err := s.database.ListLedgers(ctx)
	if err != nil {
		return nil, collaboratorError(op, "listing ledgers", err)
	}

	infos := make([]LedgerInfo, len(ledgers))
	for i, l := range ledgers {
		infos[i] = LedgerInfo{ID: l.ID, Name: l.Name, CreatedBy: l.CreatedBy, CreatedAt: l.CreatedAt}
	}
	return infos, nil
}

// SelectLedger opens a session on a ledger when secret matches exactly.
// Any authenticated user may select any ledger whose secret they know.
func (s *Service) SelectLedger(ctx context.Context, actor ActingUser, ledgerID, secret string) (*Session, error) {
	const op = "SelectLedger"

	if !actor.authenticated() {
		return nil, permissionError(op, "not authenticated")
	}
	l, err := s.database.FindLedger(ctx, ledgerID)
	if err != nil {
		return nil, collaboratorError(op, "finding ledger", err)
	}
	if l == nil {
		return nil, notFoundError(op, "ledger %s", ledgerID)
	}
	if l.Secret != secret {
		return nil, permissionError(op, "wrong ledger secret")
	}

	s.logger.Debug("ledger selected", "ledger", l.ID, "by", actor.Username)
	return &Session{Actor: actor, Ledger: l}, nil
}

// DeleteLedger irreversibly deletes a ledger with all its transactions and
// evidence files. Only admins can. Rows go first; blobs that then fail to
// delete are logged as orphans.
func (s *Service) DeleteLedger(ctx context.Context, actor ActingUser, ledgerID string) error {
	const op = "DeleteLedger"

	if !actor.IsAdmin() {
		return permissionError(op, "only an admin can delete ledgers")
	}
	l, err := s.database.FindLedger(ctx, ledgerID)
	if err != nil {
		return collaboratorError(op, "finding ledger", err)
	}
	if l == nil {
		return notFoundError(op, "ledger %s", ledgerID)
	}

	attachments, err := s.attachmentsIn(ctx, op, AttachmentScope{LedgerID: ledgerID})
	if err != nil {
		return err
	}
	if err := s.database.DeleteLedger(ctx, ledgerID); err != nil {
		return collaboratorError(op, "deleting ledger", err)
	}
	s.removeBlobs(ctx, attachments)

	s.publish(KindLedgers, "")
	s.publish(KindTransactions, ledgerID)
	s.publish(KindAttachments, ledgerID)
	s.logger.Info("ledger deleted", "ledger", ledgerID, "by", actor.Username)
	return nil
}
