package accounting

import (
	"time"

	"github.com/shopspring/decimal"

	"usdt-ledger/internal/model"
)

// Flow accumulates the buy and sell activity of a period.
type Flow struct {
	BuyQuantity  decimal.Decimal
	BuyAmount    decimal.Decimal
	SellQuantity decimal.Decimal
	SellAmount   decimal.Decimal
	Profit       decimal.Decimal
}

func (f *Flow) add(tx *model.Transaction, sale *Sale) {
	if tx.Type == model.Buy {
		f.BuyQuantity = f.BuyQuantity.Add(tx.Quantity)
		f.BuyAmount = f.BuyAmount.Add(tx.Total)
		return
	}
	f.SellQuantity = f.SellQuantity.Add(tx.Quantity)
	f.SellAmount = f.SellAmount.Add(tx.Total)
	if sale != nil {
		f.Profit = f.Profit.Add(sale.Profit)
	}
}

// DailySummary is the activity of one calendar day on top of all prior history.
type DailySummary struct {
	Date    string
	Opening Position
	Flow
	Closing      Position
	Transactions []*model.Transaction // the day's transactions in fold order
	Sales        []Sale
}

// OpeningQuantity is the quantity held at the start of the day.
func (d DailySummary) OpeningQuantity() decimal.Decimal { return d.Opening.Quantity }

// ClosingQuantity is the quantity held at the end of the day.
func (d DailySummary) ClosingQuantity() decimal.Decimal { return d.Closing.Quantity }

// ClosingAvgCost is the average cost per unit at the end of the day.
func (d DailySummary) ClosingAvgCost() decimal.Decimal { return d.Closing.AvgCost() }

// Daily summarizes the day identified by dateKey. Transactions dated before
// the day establish the opening position; the day's own transactions are
// folded on top of it. Each transaction's stored DateKey decides its day.
func Daily(txs []*model.Transaction, dateKey string) DailySummary {
	var before, onDay []*model.Transaction
	for _, tx := range txs {
		switch {
		case tx.DateKey < dateKey:
			before = append(before, tx)
		case tx.DateKey == dateKey:
			onDay = append(onDay, tx)
		}
	}

	opening := Fold(before).Position
	summary := DailySummary{
		Date:         dateKey,
		Opening:      opening,
		Closing:      opening,
		Transactions: Sort(onDay),
	}
	for _, tx := range summary.Transactions {
		var sale *Sale
		summary.Closing, sale = summary.Closing.Apply(tx)
		summary.Flow.add(tx, sale)
		if sale != nil {
			summary.Sales = append(summary.Sales, *sale)
		}
	}
	return summary
}

// WeeklySummary is the activity of one ISO week.
type WeeklySummary struct {
	WeekKey string
	Flow
	Closing Position
}

// ClosingAvgCost is the average cost per unit at the end of the week.
func (w WeeklySummary) ClosingAvgCost() decimal.Decimal { return w.Closing.AvgCost() }

// Weekly groups txs by ISO week of their timestamp in zone. The running
// position is threaded through every week from the first transaction, so a
// week's profit depends on all prior history. The result lists the most
// recent week first.
func Weekly(txs []*model.Transaction, zone *time.Location) []WeeklySummary {
	var weeks []WeeklySummary
	index := make(map[string]int)
	var pos Position

	for _, tx := range Sort(txs) {
		key := ISOWeekKeyOf(tx.Timestamp, zone)
		i, ok := index[key]
		if !ok {
			weeks = append(weeks, WeeklySummary{WeekKey: key})
			i = len(weeks) - 1
			index[key] = i
		}

		var sale *Sale
		pos, sale = pos.Apply(tx)
		weeks[i].Flow.add(tx, sale)
		weeks[i].Closing = pos
	}

	for l, r := 0, len(weeks)-1; l < r; l, r = l+1, r-1 {
		weeks[l], weeks[r] = weeks[r], weeks[l]
	}
	return weeks
}

// TotalProfit sums realized profit across weeks.
func TotalProfit(weeks []WeeklySummary) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weeks {
		total = total.Add(w.Profit)
	}
	return total
}
