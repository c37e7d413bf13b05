package testutil

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"
)

// Users registered by SeedUsers.
var (
	Admin     = ledger.ActingUser{Username: "alice", Role: model.RoleAdmin}
	Operator  = ledger.ActingUser{Username: "bob", Role: model.RoleOperator}
	Operator2 = ledger.ActingUser{Username: "carol", Role: model.RoleOperator}
)

// SeedUsers registers Admin, Operator and Operator2, each with credential
// "pw-<username>".
func SeedUsers(t *testing.T, svc *ledger.Service) {
	t.Helper()
	for _, u := range []ledger.ActingUser{Admin, Operator, Operator2} {
		_, err := svc.Register(context.Background(), ledger.RegisterInput{
			Username:   u.Username,
			Credential: "pw-" + u.Username,
			Role:       u.Role,
		})
		if err != nil {
			t.Fatalf("registering %s: %v", u.Username, err)
		}
	}
}

// OpenLedger creates a ledger as Admin and returns a session on it for actor.
func OpenLedger(t *testing.T, svc *ledger.Service, actor ledger.ActingUser, name string) *ledger.Session {
	t.Helper()
	ctx := context.Background()
	l, err := svc.CreateLedger(ctx, Admin, name, "secret-"+name)
	if err != nil {
		t.Fatalf("creating ledger %s: %v", name, err)
	}
	sess, err := svc.SelectLedger(ctx, actor, l.ID, "secret-"+name)
	if err != nil {
		t.Fatalf("selecting ledger %s: %v", name, err)
	}
	return sess
}

// Dec parses a decimal literal, failing loudly on typos.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
