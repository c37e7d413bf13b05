package ledger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/testutil"
)

func TestService_BackupDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads a copy of the store", func(t *testing.T) {
		env := newTestEnv(t)
		testutil.SeedUsers(t, env.svc)

		key, err := env.svc.BackupDatabase(ctx, testutil.Admin)
		require.NoError(t, err)
		assert.Equal(t, "backups/20250303T090000Z.db", key)

		var buf bytes.Buffer
		require.NoError(t, env.vault.Get(ctx, key, &buf))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("SQLite format 3\x00")))
	})

	t.Run("admin only", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.BackupDatabase(ctx, testutil.Operator)
		assert.ErrorIs(t, err, ledger.ErrPermission)
		assert.Empty(t, env.vault.Keys())
	})

	t.Run("requires a vault", func(t *testing.T) {
		env := newTestEnv(t, withoutVault())
		_, err := env.svc.BackupDatabase(ctx, testutil.Admin)
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}
