package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/testutil"
)

func TestService_Snapshot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")

	// Monday 3 March and Monday 10 March 2025, Shanghai afternoon.
	mon := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	nextMon := mon.AddDate(0, 0, 7)

	for _, in := range []ledger.TransactionInput{
		buy("7.0", "100", mon),
		buy("7.2", "100", mon.Add(time.Hour)),
		sell("7.3", "50", mon.Add(2*time.Hour)),
		sell("7.0", "50", nextMon),
	} {
		_, err := env.svc.CreateTransaction(ctx, sess, in)
		require.NoError(t, err)
	}

	snap, err := env.svc.Snapshot(ctx, sess, "2025-03-03")
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 4)
	assert.True(t, snap.FetchedAt.Equal(env.clock.Now()))

	assert.Equal(t, "2025-03-03", snap.Daily.Date)
	assert.True(t, snap.Daily.Profit.Equal(testutil.Dec("10")), "daily profit %s", snap.Daily.Profit)
	assert.True(t, snap.Daily.ClosingQuantity().Equal(testutil.Dec("150")))
	assert.True(t, snap.Daily.ClosingAvgCost().Equal(testutil.Dec("7.1")))

	require.Len(t, snap.Weekly, 2)
	assert.Equal(t, "2025-W11", snap.Weekly[0].WeekKey)
	assert.Equal(t, "2025-W10", snap.Weekly[1].WeekKey)
	assert.True(t, snap.Weekly[0].Profit.Equal(testutil.Dec("-5")), "week 11 profit %s", snap.Weekly[0].Profit)
	assert.True(t, snap.Weekly[0].Closing.Quantity.Equal(testutil.Dec("100")))

	next, err := env.svc.Snapshot(ctx, sess, "2025-03-10")
	require.NoError(t, err)
	assert.True(t, next.Daily.OpeningQuantity().Equal(testutil.Dec("150")))

	_, err = env.svc.Snapshot(ctx, sess, "03/03/2025")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestService_Watch(t *testing.T) {
	env := newTestEnv(t)
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")
	other := testutil.OpenLedger(t, env.svc, testutil.Operator, "other")
	now := env.clock.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps := make(chan *ledger.Snapshot, 16)
	done := make(chan error, 1)
	go func() {
		done <- env.svc.Watch(ctx, sess, "2025-03-03", func(s *ledger.Snapshot) { snaps <- s })
	}()

	next := func() *ledger.Snapshot {
		t.Helper()
		select {
		case s := <-snaps:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
	waitLen := func(n int) *ledger.Snapshot {
		t.Helper()
		for {
			s := next()
			if len(s.Transactions) == n {
				return s
			}
		}
	}

	assert.Empty(t, next().Transactions)

	_, err := env.svc.CreateTransaction(context.Background(), sess, buy("7.0", "100", now))
	require.NoError(t, err)
	waitLen(1)

	// Changes in another ledger do not trigger a refetch.
	_, err = env.svc.CreateTransaction(context.Background(), other, buy("9.9", "1", now))
	require.NoError(t, err)
	select {
	case s := <-snaps:
		t.Fatalf("unexpected snapshot with %d transactions", len(s.Transactions))
	case <-time.After(100 * time.Millisecond):
	}

	_, err = env.svc.CreateTransaction(context.Background(), sess, sell("7.5", "40", now.Add(time.Minute)))
	require.NoError(t, err)
	s := waitLen(2)
	assert.True(t, s.Daily.Profit.Equal(testutil.Dec("20")), "profit %s", s.Daily.Profit)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.Equal(t, 0, env.feed.Subscribers())
}

func TestService_Watch_InvalidDate(t *testing.T) {
	env := newTestEnv(t)
	testutil.SeedUsers(t, env.svc)
	sess := testutil.OpenLedger(t, env.svc, testutil.Operator, "main")

	err := env.svc.Watch(context.Background(), sess, "yesterday", func(*ledger.Snapshot) {})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	err = env.svc.Watch(context.Background(), nil, "2025-03-03", func(*ledger.Snapshot) {})
	assert.ErrorIs(t, err, ledger.ErrPermission)
}
