package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"
)

// timestampLayouts are tried in order when parsing a user supplied time.
// Layouts without a zone are read in the ledger zone.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses s in zone. An empty s means now.
func ParseTimestamp(s string, zone *time.Location, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use YYYY-MM-DD[ HH:MM[:SS]] or RFC 3339", s)
}

// ParseTransactionInput converts CLI arguments into a transaction input.
// Range checks are left to the service.
func ParseTransactionInput(txType, price, quantity, at string, zone *time.Location, now time.Time) (ledger.TransactionInput, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return ledger.TransactionInput{}, fmt.Errorf("invalid price %q", price)
	}
	q, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil {
		return ledger.TransactionInput{}, fmt.Errorf("invalid quantity %q", quantity)
	}
	ts, err := ParseTimestamp(at, zone, now)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	return ledger.TransactionInput{
		Type:      model.TxType(strings.ToUpper(strings.TrimSpace(txType))),
		Price:     p,
		Quantity:  q,
		Timestamp: ts,
	}, nil
}

// ParseRole maps a CLI role name to a model role.
func ParseRole(s string) (model.Role, error) {
	r := model.Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q: use admin or operator", s)
	}
	return r, nil
}
