// Package accounting folds a ledger's transactions into running position,
// weighted-average cost and realized profit.
//
// Everything here is pure: functions take a snapshot of transactions and
// return derived figures without retaining state between calls. Callers
// refold the full snapshot whenever it changes.
package accounting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"usdt-ledger/internal/model"
)

// Position is the running inventory state: quantity held and its total cost.
type Position struct {
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// AvgCost returns the weighted-average cost per unit, or zero when nothing is held.
func (p Position) AvgCost() decimal.Decimal {
	if !p.Quantity.IsPositive() {
		return decimal.Zero
	}
	return p.Cost.Div(p.Quantity)
}

// Equal reports whether both quantity and cost are numerically equal.
func (p Position) Equal(o Position) bool {
	return p.Quantity.Equal(o.Quantity) && p.Cost.Equal(o.Cost)
}

// Sale is the realized result of one SELL.
type Sale struct {
	TransactionID string
	Timestamp     time.Time
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	AvgCost       decimal.Decimal // average cost immediately before the sale
	Profit        decimal.Decimal // (Price - AvgCost) × Quantity
}

// Apply returns the position after tx. For a SELL it also returns the sale.
//
// A SELL larger than the held quantity floors the position at zero; the
// whole sold quantity still realizes profit against the pre-sale average.
func (p Position) Apply(tx *model.Transaction) (Position, *Sale) {
	if tx.Type == model.Buy {
		return Position{
			Quantity: p.Quantity.Add(tx.Quantity),
			Cost:     p.Cost.Add(tx.Quantity.Mul(tx.Price)),
		}, nil
	}

	avg := p.AvgCost()
	sale := &Sale{
		TransactionID: tx.ID,
		Timestamp:     tx.Timestamp,
		Quantity:      tx.Quantity,
		Price:         tx.Price,
		AvgCost:       avg,
		Profit:        tx.Price.Sub(avg).Mul(tx.Quantity),
	}

	qty := p.Quantity.Sub(tx.Quantity)
	if qty.IsNegative() {
		qty = decimal.Zero
	}
	return Position{Quantity: qty, Cost: qty.Mul(avg)}, sale
}

// FoldResult is the outcome of folding a sequence of transactions.
type FoldResult struct {
	Position Position
	Sales    []Sale // one per SELL, in fold order
}

// RealizedProfit sums the profit of every sale.
func (r FoldResult) RealizedProfit() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Sales {
		total = total.Add(s.Profit)
	}
	return total
}

// Sort returns a copy of txs in fold order: ascending timestamp, ties by ID.
func Sort(txs []*model.Transaction) []*model.Transaction {
	sorted := make([]*model.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return sorted
}

// Fold orders txs and folds them from an empty position.
func Fold(txs []*model.Transaction) FoldResult {
	return FoldFrom(Position{}, txs)
}

// FoldFrom orders txs and folds them starting from start.
func FoldFrom(start Position, txs []*model.Transaction) FoldResult {
	result := FoldResult{Position: start}
	for _, tx := range Sort(txs) {
		var sale *Sale
		result.Position, sale = result.Position.Apply(tx)
		if sale != nil {
			result.Sales = append(result.Sales, *sale)
		}
	}
	return result
}
