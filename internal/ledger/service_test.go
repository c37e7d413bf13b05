package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdt-ledger/internal/feed"
	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"
	"usdt-ledger/internal/testutil"
	"usdt-ledger/internal/vault"
)

var shanghai = time.FixedZone("CST", 8*3600)

type testEnv struct {
	svc       *ledger.Service
	db        ledger.Database
	vault     *vault.MemoryVault
	feed      *feed.Broadcaster
	clock     *testutil.StubClock
	encryptor ledger.Encryptor
}

type envOption func(*envConfig)

type envConfig struct {
	settings     ledger.Settings
	encrypted    bool
	noVault      bool
	deletesAllow int
	deletesFail  bool
}

func withRegistrationCode(code string) envOption {
	return func(c *envConfig) { c.settings.RegistrationCode = code }
}

func withEncryption() envOption {
	return func(c *envConfig) { c.encrypted = true }
}

func withoutVault() envOption {
	return func(c *envConfig) { c.noVault = true }
}

// withFailingDeletes makes vault deletes fail after the first allow calls.
// env.vault still exposes the underlying blobs.
func withFailingDeletes(allow int) envOption {
	return func(c *envConfig) {
		c.deletesFail = true
		c.deletesAllow = allow
	}
}

type failingDeleteVault struct {
	*vault.MemoryVault
	allow   int
	deletes int
}

func (v *failingDeleteVault) Delete(ctx context.Context, key string) error {
	v.deletes++
	if v.deletes > v.allow {
		return errors.New("vault down")
	}
	return v.MemoryVault.Delete(ctx, key)
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{settings: ledger.Settings{Zone: shanghai}}
	for _, o := range opts {
		o(&cfg)
	}

	env := &testEnv{
		db:    testutil.NewTestDatabase(t),
		feed:  feed.NewBroadcaster(nil),
		clock: testutil.FixedClock(),
	}
	var v ledger.Vault
	if !cfg.noVault {
		env.vault = testutil.NewTestVault()
		v = env.vault
		if cfg.deletesFail {
			v = &failingDeleteVault{MemoryVault: env.vault, allow: cfg.deletesAllow}
		}
	}
	if cfg.encrypted {
		env.encryptor = testutil.NewTestEncryptor()
	}
	env.svc = ledger.NewService(env.db, v, env.feed, env.encryptor, ledger.NewNopLogger(), env.clock, testutil.NewStubIDGenerator(), cfg.settings)
	return env
}

func TestService_Zone(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, shanghai, env.svc.Zone())

	svc := ledger.NewService(env.db, nil, nil, nil, ledger.NewNopLogger(), env.clock, testutil.NewStubIDGenerator(), ledger.Settings{})
	assert.Equal(t, time.UTC, svc.Zone())
}

func TestService_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ListTransactions(ctx, nil)
	assert.ErrorIs(t, err, ledger.ErrPermission)

	_, err = env.svc.CreateTransaction(ctx, &ledger.Session{Actor: testutil.Operator}, ledger.TransactionInput{})
	assert.ErrorIs(t, err, ledger.ErrPermission)

	_, err = env.svc.CreateTransaction(ctx, &ledger.Session{Ledger: &model.Ledger{ID: "l"}}, ledger.TransactionInput{})
	assert.ErrorIs(t, err, ledger.ErrPermission)
}

func TestService_WithoutFeed(t *testing.T) {
	env := newTestEnv(t)
	svc := ledger.NewService(env.db, nil, nil, nil, ledger.NewNopLogger(), env.clock, testutil.NewStubIDGenerator(), ledger.Settings{})
	testutil.SeedUsers(t, svc)

	sess := testutil.OpenLedger(t, svc, testutil.Admin, "main")
	_, err := svc.CreateTransaction(context.Background(), sess, buy("7.1", "10", env.clock.Now()))
	require.NoError(t, err)
}

func buy(price, qty string, ts time.Time) ledger.TransactionInput {
	return ledger.TransactionInput{Type: model.Buy, Price: testutil.Dec(price), Quantity: testutil.Dec(qty), Timestamp: ts}
}

func sell(price, qty string, ts time.Time) ledger.TransactionInput {
	return ledger.TransactionInput{Type: model.Sell, Price: testutil.Dec(price), Quantity: testutil.Dec(qty), Timestamp: ts}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}
