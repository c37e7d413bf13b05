package app

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the quote currency of every ledger.
const Currency = money.CNY

// FormatAmount renders a quote currency amount, rounded half away from zero
// to the currency's minor unit, e.g. "1,234.57 元".
func FormatAmount(d decimal.Decimal) string {
	cur := money.GetCurrency(Currency)
	minor := d.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return money.New(minor.IntPart(), Currency).Display()
}

// FormatSignedAmount is FormatAmount with an explicit sign for profits.
func FormatSignedAmount(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + FormatAmount(d)
	}
	return FormatAmount(d)
}

// FormatPrice renders a unit price with four decimals.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(4)
}

// FormatQuantity renders an asset quantity with two decimals.
func FormatQuantity(d decimal.Decimal) string {
	return d.StringFixed(2)
}
