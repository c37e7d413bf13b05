package ledger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"usdt-ledger/internal/counting"
	"usdt-ledger/internal/model"
)

// Attachment limits.
const (
	MaxAttachmentsPerTransaction = 10
	MaxAttachmentSize            = 200 << 20 // 200 MiB
)

// AttachFile stores an evidence file for a transaction of the session's
// ledger. The blob is written to the vault first and the metadata record
// second. If recording the metadata fails the blob is left behind and the
// failure is reported; nothing is rolled back.
func (s *Service) AttachFile(ctx context.Context, sess *Session, txID, fileName string, r io.Reader, size int64) (*model.Attachment, error) {
	const op = "AttachFile"

	if err := checkSession(op, sess); err != nil {
		return nil, err
	}
	if s.vault == nil {
		return nil, validationError(op, "no vault configured")
	}
	fileName = strings.TrimSpace(filepath.Base(fileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return nil, validationError(op, "file name is required")
	}
	if size <= 0 {
		return nil, validationError(op, "file is empty")
	}
	if size > MaxAttachmentSize {
		return nil, validationError(op, "file is %d bytes, limit is %d", size, MaxAttachmentSize)
	}

	tx, err := s.findTransaction(ctx, op, sess, txID)
	if err != nil {
		return nil, err
	}
	existing, err := s.database.ListAttachments(ctx, AttachmentScope{LedgerID: tx.LedgerID, TransactionID: tx.ID})
	if err != nil {
		return nil, collaboratorError(op, "listing attachments", err)
	}
	if len(existing) >= MaxAttachmentsPerTransaction {
		return nil, validationError(op, "transaction %s already has %d attachments", tx.ID, len(existing))
	}

	id := s.idgen.New()
	key := path.Join(tx.LedgerID, tx.ID, id+strings.ToLower(filepath.Ext(fileName)))

	encrypted := s.encryptor != nil
	if encrypted {
		err = s.putEncrypted(ctx, key, r, size)
	} else {
		err = s.vault.Put(ctx, key, io.LimitReader(r, size), size)
	}
	if err != nil {
		return nil, collaboratorError(op, "storing blob", err)
	}

	a, err := s.database.InsertAttachment(ctx, &model.Attachment{
		ID:            id,
		TransactionID: tx.ID,
		LedgerID:      tx.LedgerID,
		StorageKey:    key,
		PublicLocator: s.vault.Locator(key),
		FileName:      fileName,
		FileSize:      size,
		MediaKind:     model.MediaKindOf(fileName),
		Encrypted:     encrypted,
		CreatedAt:     s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn("orphaned blob", "key", key, "error", err)
		return nil, collaboratorError(op, "recording attachment", err)
	}

	s.publish(KindAttachments, tx.LedgerID)
	s.logger.Info("file attached", "ledger", tx.LedgerID, "transaction", tx.ID, "file", fileName, "size", size)
	return a, nil
}

// putEncrypted encrypts r into a temporary file and uploads the ciphertext.
// The ciphertext size is only known after encryption, so it cannot be
// streamed straight into the vault.
func (s *Service) putEncrypted(ctx context.Context, key string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp("", "usdt-attachment-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	counter := counting.NewReader(io.LimitReader(r, size))
	if err := s.encryptor.Encrypt(counter, tmp); err != nil {
		return fmt.Errorf("encrypting: %w", err)
	}
	if counter.N() != size {
		return fmt.Errorf("read %d bytes, expected %d", counter.N(), size)
	}

	encSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("sizing ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding temp file: %w", err)
	}
	return s.vault.Put(ctx, key, tmp, encSize)
}

// ListAttachments returns the attachments of a transaction, oldest first.
func (s *Service) ListAttachments(ctx context.Context, sess *Session, txID string) ([]*model.Attachment, error) {
	const op = "ListAttachments"

	if err := checkSession(op, sess); err != nil {
		return nil, err
	}
	if _, err := s.findTransaction(ctx, op, sess, txID); err != nil {
		return nil, err
	}
	as, err := s.database.ListAttachments(ctx, AttachmentScope{LedgerID: sess.LedgerID(), TransactionID: txID})
	if err != nil {
		return nil, collaboratorError(op, "listing attachments", err)
	}
	return as, nil
}

// FetchAttachment writes the plaintext of an attachment to w. decrypt is
// required when the attachment was stored encrypted.
func (s *Service) FetchAttachment(ctx context.Context, sess *Session, id string, w io.Writer, decrypt DecryptionContext) (*model.Attachment, error) {
	const op = "FetchAttachment"

	if err := checkSession(op, sess); err != nil {
		return nil, err
	}
	if s.vault == nil {
		return nil, validationError(op, "no vault configured")
	}
	a, err := s.findAttachment(ctx, op, sess, id)
	if err != nil {
		return nil, err
	}

	if !a.Encrypted {
		if err := s.vault.Get(ctx, a.StorageKey, w); err != nil {
			return nil, collaboratorError(op, "retrieving blob", err)
		}
		return a, nil
	}
	if decrypt == nil {
		return nil, validationError(op, "attachment %s is encrypted; unlock the private key first", a.ID)
	}

	// Stream vault -> decrypt -> w.
	pr, pw := io.Pipe()
	vaultErrCh := make(chan error, 1)
	go func() {
		err := s.vault.Get(ctx, a.StorageKey, pw)
		pw.CloseWithError(err)
		vaultErrCh <- err
	}()

	decryptErr := decrypt.Decrypt(pr, w)
	pr.CloseWithError(decryptErr)
	vaultErr := <-vaultErrCh

	if vaultErr != nil {
		return nil, collaboratorError(op, "retrieving blob", vaultErr)
	}
	if decryptErr != nil {
		return nil, collaboratorError(op, "decrypting blob", decryptErr)
	}
	return a, nil
}

// DeleteAttachment removes an attachment's record, then its blob. Only
// admins can: removing evidence is a delete and falls under the same rule
// as deleting transactions. A blob that cannot be removed is logged as an
// orphan; the delete still succeeds.
func (s *Service) DeleteAttachment(ctx context.Context, sess *Session, id string) error {
	const op = "DeleteAttachment"

	if err := checkSession(op, sess); err != nil {
		return err
	}
	if !sess.Actor.IsAdmin() {
		return permissionError(op, "only an admin can delete attachments")
	}
	a, err := s.findAttachment(ctx, op, sess, id)
	if err != nil {
		return err
	}

	if err := s.database.DeleteAttachment(ctx, id); err != nil {
		return collaboratorError(op, "deleting attachment record", err)
	}
	s.removeBlobs(ctx, []*model.Attachment{a})

	s.publish(KindAttachments, sess.LedgerID())
	s.logger.Info("attachment deleted", "ledger", sess.LedgerID(), "id", id, "by", sess.Actor.Username)
	return nil
}

func (s *Service) findAttachment(ctx context.Context, op string, sess *Session, id string) (*model.Attachment, error) {
	a, err := s.database.FindAttachment(ctx, id)
	if err != nil {
		return nil, collaboratorError(op, "finding attachment", err)
	}
	if a == nil || a.LedgerID != sess.LedgerID() {
		return nil, notFoundError(op, "attachment %s", id)
	}
	return a, nil
}

// attachmentsIn lists the attachments in scope so their blobs can be
// removed once the rows are gone.
func (s *Service) attachmentsIn(ctx context.Context, op string, scope AttachmentScope) ([]*model.Attachment, error) {
	if s.vault == nil {
		return nil, nil
	}
	as, err := s.database.ListAttachments(ctx, scope)
	if err != nil {
		return nil, collaboratorError(op, "listing attachments", err)
	}
	return as, nil
}

// removeBlobs deletes the blobs of attachments whose records are already
// gone. Failures leave orphaned blobs behind and are only logged.
func (s *Service) removeBlobs(ctx context.Context, as []*model.Attachment) {
	if s.vault == nil {
		return
	}
	for _, a := range as {
		if err := s.vault.Delete(ctx, a.StorageKey); err != nil {
			s.logger.Warn("orphaned blob", "key", a.StorageKey, "error", err)
		}
	}
}
