package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdt-ledger/internal/encryption"
	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"
	"usdt-ledger/internal/testutil"
)

func stringReader(s string) io.Reader { return strings.NewReader(s) }

func TestService_AttachFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")

	tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)

	a, err := env.svc.AttachFile(ctx, sess, tx.ID, "../../Receipt.PNG", stringReader("png-bytes"), 9)
	require.NoError(t, err)
	assert.Equal(t, "Receipt.PNG", a.FileName)
	assert.Equal(t, model.MediaImage, a.MediaKind)
	assert.Equal(t, int64(9), a.FileSize)
	assert.False(t, a.Encrypted)
	assert.Equal(t, sess.LedgerID()+"/"+tx.ID+"/"+a.ID+".png", a.StorageKey)
	assert.Equal(t, "memory://test-vault/"+a.StorageKey, a.PublicLocator)
	assert.Equal(t, []string{a.StorageKey}, env.vault.Keys())

	list, err := env.svc.ListAttachments(ctx, sess, tx.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	var out bytes.Buffer
	got, err := env.svc.FetchAttachment(ctx, sess, a.ID, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "png-bytes", out.String())
}

func TestService_AttachFile_Limits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")

	tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)

	_, err = env.svc.AttachFile(ctx, sess, tx.ID, "empty.png", stringReader(""), 0)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = env.svc.AttachFile(ctx, sess, tx.ID, "huge.mp4", stringReader("x"), ledger.MaxAttachmentSize+1)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = env.svc.AttachFile(ctx, sess, tx.ID, "", stringReader("x"), 1)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = env.svc.AttachFile(ctx, sess, "missing", "a.png", stringReader("x"), 1)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	for i := 0; i < ledger.MaxAttachmentsPerTransaction; i++ {
		_, err := env.svc.AttachFile(ctx, sess, tx.ID, "page.jpg", stringReader("jpg"), 3)
		require.NoError(t, err)
	}
	_, err = env.svc.AttachFile(ctx, sess, tx.ID, "one-too-many.jpg", stringReader("jpg"), 3)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Len(t, env.vault.Keys(), ledger.MaxAttachmentsPerTransaction)
}

func TestService_AttachFile_WithoutVault(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withoutVault())
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Admin, "main")

	tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)
	_, err = env.svc.AttachFile(ctx, sess, tx.ID, "a.png", stringReader("x"), 1)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	// Deletes still work without a vault.
	require.NoError(t, env.svc.DeleteTransaction(ctx, sess, tx.ID))
}

func TestService_AttachFile_Encrypted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withEncryption())
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")

	tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)

	plaintext := strings.Repeat("bank slip ", 1000)
	a, err := env.svc.AttachFile(ctx, sess, tx.ID, "slip.pdf", stringReader(plaintext), int64(len(plaintext)))
	require.NoError(t, err)
	assert.True(t, a.Encrypted)
	assert.Equal(t, int64(len(plaintext)), a.FileSize)
	assert.Equal(t, model.MediaOther, a.MediaKind)

	var raw bytes.Buffer
	require.NoError(t, env.vault.Get(ctx, a.StorageKey, &raw))
	assert.NotEqual(t, plaintext, raw.String(), "vault holds ciphertext")

	var out bytes.Buffer
	_, err = env.svc.FetchAttachment(ctx, sess, a.ID, &out, nil)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	dc, err := env.encryptor.Unlock("passphrase")
	require.NoError(t, err)
	out.Reset()
	_, err = env.svc.FetchAttachment(ctx, sess, a.ID, &out, dc)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out.String())
}

func TestService_AttachFile_ShortRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withEncryption())
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")

	tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)

	_, err = env.svc.AttachFile(ctx, sess, tx.ID, "slip.pdf", stringReader("short"), 100)
	assert.ErrorIs(t, err, ledger.ErrCollaborator)
	assert.Empty(t, env.vault.Keys())

	list, err := env.svc.ListAttachments(ctx, sess, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_FetchAttachment_Garbage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withEncryption())
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")

	tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)
	a, err := env.svc.AttachFile(ctx, sess, tx.ID, "slip.pdf", stringReader("content"), 7)
	require.NoError(t, err)

	// Overwrite the ciphertext behind the record's back.
	require.NoError(t, env.vault.Put(ctx, a.StorageKey, stringReader("tampered"), 8))

	var out bytes.Buffer
	_, err = env.svc.FetchAttachment(ctx, sess, a.ID, &out, &encryption.TestDecryptionContext{})
	assert.ErrorIs(t, err, ledger.ErrCollaborator)
}

func TestService_DeleteAttachment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.SeedUsers(t, env.svc)
	opSess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")
	adminSess, err := env.svc.SelectLedger(ctx, testutil.Admin, opSess.LedgerID(), "secret-main")
	require.NoError(t, err)

	tx, err := env.svc.CreateTransaction(ctx, opSess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)
	keep, err := env.svc.AttachFile(ctx, opSess, tx.ID, "keep.png", stringReader("k"), 1)
	require.NoError(t, err)
	drop, err := env.svc.AttachFile(ctx, opSess, tx.ID, "drop.png", stringReader("d"), 1)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.DeleteAttachment(ctx, opSess, drop.ID), ledger.ErrPermission)
	require.NoError(t, env.svc.DeleteAttachment(ctx, adminSess, drop.ID))
	assert.ErrorIs(t, env.svc.DeleteAttachment(ctx, adminSess, drop.ID), ledger.ErrNotFound)

	assert.Equal(t, []string{keep.StorageKey}, env.vault.Keys())
	list, err := env.svc.ListAttachments(ctx, opSess, tx.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

func TestService_DeleteAttachment_VaultFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withFailingDeletes(0))
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Admin, "main")

	tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)
	a, err := env.svc.AttachFile(ctx, sess, tx.ID, "slip.png", stringReader("s"), 1)
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteAttachment(ctx, sess, a.ID))

	got, err := env.db.FindAttachment(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "record removed")
	assert.Equal(t, []string{a.StorageKey}, env.vault.Keys(), "blob left as an orphan")
}

func TestService_Deletes_VaultFailureRemovesRecords(t *testing.T) {
	ctx := context.Background()

	// Each case deletes a scope holding three blobs; the vault fails from
	// the second delete on.
	tests := []struct {
		name   string
		delete func(env *testEnv, sess *ledger.Session, txID string) error
	}{
		{"ledger", func(env *testEnv, sess *ledger.Session, _ string) error {
			return env.svc.DeleteLedger(ctx, testutil.Admin, sess.LedgerID())
		}},
		{"transaction", func(env *testEnv, sess *ledger.Session, txID string) error {
			return env.svc.DeleteTransaction(ctx, sess, txID)
		}},
		{"all transactions", func(env *testEnv, sess *ledger.Session, _ string) error {
			return env.svc.DeleteAllTransactions(ctx, sess)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, withFailingDeletes(1))
			testutil.SeedUsers(t, env.svc)
			sess := testutil.OpenLedger(t, env.svc, testutil.Admin, "main")

			tx, err := env.svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
			require.NoError(t, err)
			for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
				_, err := env.svc.AttachFile(ctx, sess, tx.ID, name, stringReader("jpg"), 3)
				require.NoError(t, err)
			}

			require.NoError(t, tt.delete(env, sess, tx.ID))

			gotTx, err := env.db.FindTransaction(ctx, tx.ID)
			require.NoError(t, err)
			assert.Nil(t, gotTx)
			as, err := env.db.ListAttachments(ctx, ledger.AttachmentScope{LedgerID: sess.LedgerID()})
			require.NoError(t, err)
			assert.Empty(t, as, "no record may point at a removed blob")
			assert.Len(t, env.vault.Keys(), 2, "undeletable blobs stay behind")
		})
	}
}

// failingAttachmentInserts is a store whose attachment inserts always fail.
type failingAttachmentInserts struct {
	ledger.Database
}

func (failingAttachmentInserts) InsertAttachment(context.Context, *model.Attachment) (*model.Attachment, error) {
	return nil, errors.New("disk full")
}

func TestService_AttachFile_MetadataFailureKeepsBlob(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := ledger.NewService(failingAttachmentInserts{env.db}, env.vault, env.feed, nil,
		ledger.NewNopLogger(), env.clock, testutil.NewStubIDGenerator(), ledger.Settings{Zone: shanghai})
	testutil.SeedUsers(t, svc)
	sess := testutil.OpenLedger(t, svc, testutil.Operator, "main")

	tx, err := svc.CreateTransaction(ctx, sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)

	_, err = svc.AttachFile(ctx, sess, tx.ID, "slip.png", stringReader("png"), 3)
	require.ErrorIs(t, err, ledger.ErrCollaborator)
	assert.Contains(t, err.Error(), "disk full")

	assert.Len(t, env.vault.Keys(), 1, "stored blob is not rolled back")
	list, err := env.svc.ListAttachments(ctx, sess, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
