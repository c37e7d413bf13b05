package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"usdt-ledger/internal/accounting"
	"usdt-ledger/internal/model"
)

// TransactionInput is the user supplied part of a transaction.
type TransactionInput struct {
	// ID is optional. When set it is used as the record ID so a retried
	// create does not produce a duplicate.
	ID        string
	Type      model.TxType
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp time.Time
}

func validateInput(op string, in TransactionInput) error {
	if !in.Type.Valid() {
		return validationError(op, "unknown transaction type %q", in.Type)
	}
	if !in.Price.IsPositive() {
		return validationError(op, "price must be positive, got %s", in.Price)
	}
	if !in.Quantity.IsPositive() {
		return validationError(op, "quantity must be positive, got %s", in.Quantity)
	}
	if in.Timestamp.IsZero() {
		return validationError(op, "timestamp is required")
	}
	return nil
}

// CreateTransaction records a buy or sell in the session's ledger.
// Total and DateKey are derived; the edit count starts at zero.
func (s *Service) CreateTransaction(ctx context.Context, sess *Session, in TransactionInput) (*model.Transaction, error) {
	const op = "CreateTransaction"

	if err := checkSession(op, sess); err != nil {
		return nil, err
	}
	if err := AuthorizeCreate(sess.Actor); err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = s.idgen.New()
	}
	tx, err := s.database.InsertTransaction(ctx, &model.Transaction{
		ID:             id,
		LedgerID:       sess.LedgerID(),
		Type:           in.Type,
		Price:          in.Price,
		Quantity:       in.Quantity,
		Total:          in.Price.Mul(in.Quantity),
		Timestamp:      in.Timestamp,
		DateKey:        accounting.DateKeyOf(in.Timestamp, s.zone),
		EditCount:      0,
		AuthorUsername: sess.Actor.Username,
	})
	if err != nil {
		return nil, collaboratorError(op, "inserting transaction", err)
	}

	s.publish(KindTransactions, sess.LedgerID())
	s.logger.Info("transaction created", "ledger", tx.LedgerID, "id", tx.ID, "type", string(tx.Type), "by", sess.Actor.Username)
	return tx, nil
}

// EditTransaction overwrites a transaction's type, price, quantity and
// timestamp, re-deriving total and date key. Operators may edit a record
// once; admins without limit and without consuming the count.
func (s *Service) EditTransaction(ctx context.Context, sess *Session, id string, in TransactionInput) (*model.Transaction, error) {
	const op = "EditTransaction"

	if err := checkSession(op, sess); err != nil {
		return nil, err
	}
	current, err := s.findTransaction(ctx, op, sess, id)
	if err != nil {
		return nil, err
	}
	editCount, err := AuthorizeEdit(sess.Actor, current)
	if err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	tx, err := s.database.UpdateTransaction(ctx, id, model.TransactionFields{
		Type:      in.Type,
		Price:     in.Price,
		Quantity:  in.Quantity,
		Total:     in.Price.Mul(in.Quantity),
		Timestamp: in.Timestamp,
		DateKey:   accounting.DateKeyOf(in.Timestamp, s.zone),
		EditCount: editCount,
	})
	if err != nil {
		return nil, collaboratorError(op, "updating transaction", err)
	}

	s.publish(KindTransactions, sess.LedgerID())
	s.logger.Info("transaction edited", "ledger", tx.LedgerID, "id", tx.ID, "edits", tx.EditCount, "by", sess.Actor.Username)
	return tx, nil
}

// CanEdit reports whether actor may still edit tx. Used to grey out edit
// affordances; EditTransaction enforces the same rule.
func CanEdit(actor ActingUser, tx *model.Transaction) bool {
	_, err := AuthorizeEdit(actor, tx)
	return err == nil
}

// DeleteTransaction removes a transaction and its evidence files. Only
// admins can.
func (s *Service) DeleteTransaction(ctx context.Context, sess *Session, id string) error {
	const op = "DeleteTransaction"

	if err := checkSession(op, sess); err != nil {
		return err
	}
	if err := AuthorizeDelete(sess.Actor); err != nil {
		return err
	}
	if _, err := s.findTransaction(ctx, op, sess, id); err != nil {
		return err
	}

	attachments, err := s.attachmentsIn(ctx, op, AttachmentScope{LedgerID: sess.LedgerID(), TransactionID: id})
	if err != nil {
		return err
	}
	if err := s.database.DeleteTransaction(ctx, id); err != nil {
		return collaboratorError(op, "deleting transaction", err)
	}
	s.removeBlobs(ctx, attachments)

	s.publish(KindTransactions, sess.LedgerID())
	s.publish(KindAttachments, sess.LedgerID())
	s.logger.Info("transaction deleted", "ledger", sess.LedgerID(), "id", id, "by", sess.Actor.Username)
	return nil
}

// DeleteAllTransactions clears the session's ledger. Only admins can.
func (s *Service) DeleteAllTransactions(ctx context.Context, sess *Session) error {
	const op = "DeleteAllTransactions"

	if err := checkSession(op, sess); err != nil {
		return err
	}
	if !sess.Actor.IsAdmin() {
		return permissionError(op, "only an admin can clear a ledger")
	}

	attachments, err := s.attachmentsIn(ctx, op, AttachmentScope{LedgerID: sess.LedgerID()})
	if err != nil {
		return err
	}
	if err := s.database.DeleteAllTransactions(ctx, sess.LedgerID()); err != nil {
		return collaboratorError(op, "deleting transactions", err)
	}
	s.removeBlobs(ctx, attachments)

	s.publish(KindTransactions, sess.LedgerID())
	s.publish(KindAttachments, sess.LedgerID())
	s.logger.Warn("ledger cleared", "ledger", sess.LedgerID(), "by", sess.Actor.Username)
	return nil
}

// ListTransactions returns the session ledger's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, sess *Session) ([]*model.Transaction, error) {
	const op = "ListTransactions"

	if err := checkSession(op, sess); err != nil {
		return nil, err
	}
	txs, err := s.database.ListTransactions(ctx, sess.LedgerID())
	if err != nil {
		return nil, collaboratorError(op, "listing transactions", err)
	}
	return txs, nil
}

// GetTransaction returns one transaction of the session's ledger.
func (s *Service) GetTransaction(ctx context.Context, sess *Session, id string) (*model.Transaction, error) {
	const op = "GetTransaction"

	if err := checkSession(op, sess); err != nil {
		return nil, err
	}
	return s.findTransaction(ctx, op, sess, id)
}

// findTransaction loads a transaction and checks it belongs to the
// session's ledger. Records of other ledgers are reported as not found.
func (s *Service) findTransaction(ctx context.Context, op string, sess *Session, id string) (*model.Transaction, error) {
	tx, err := s.database.FindTransaction(ctx, id)
	if err != nil {
		return nil, collaboratorError(op, "finding transaction", err)
	}
	if tx == nil || tx.LedgerID != sess.LedgerID() {
		return nil, notFoundError(op, "transaction %s", id)
	}
	return tx, nil
}
