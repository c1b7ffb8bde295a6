// Package money holds the fixed-point arithmetic used by the trade ledger.
// Per-share prices and fee computations keep four fractional digits;
// wallet balances are rounded to the currency's minor unit when written.
package money

import (
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// TradePlaces is the number of fractional digits kept for trade economics.
const TradePlaces int32 = 4

const defaultFraction = 2

// Side selects which fee rule applies.
type Side int

const (
	Buy Side = iota + 1
	Sell
)

// Economics is the computed cost breakdown of one trade.
type Economics struct {
	Gross decimal.Decimal `json:"gross"`
	Fees  decimal.Decimal `json:"fees"`
	Total decimal.Decimal `json:"total"`
}

// Compute returns gross = price x shares, fees = gross x feeRate and
// total = gross + fees for a buy or gross - fees for a sell.
func Compute(side Side, price decimal.Decimal, shares int64, feeRate decimal.Decimal) Economics {
	gross := price.Mul(decimal.NewFromInt(shares)).Round(TradePlaces)
	fees := gross.Mul(feeRate).Round(TradePlaces)
	total := gross.Add(fees)
	if side == Sell {
		total = gross.Sub(fees)
	}
	return Economics{Gross: gross, Fees: fees, Total: total}
}

// ValidFeeRate reports whether rate is a usable broker fee rate: at least
// zero and below one, so a sale never nets less than nothing.
func ValidFeeRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThan(decimal.NewFromInt(1))
}

// Currency looks up an ISO 4217 code. Unknown codes return nil.
func Currency(code string) *gomoney.Currency {
	return gomoney.GetCurrency(strings.ToUpper(code))
}

// IsCurrency reports whether code is a known ISO 4217 currency.
func IsCurrency(code string) bool {
	return Currency(code) != nil
}

// Fraction returns the number of minor-unit digits of the currency.
func Fraction(code string) int32 {
	if cur := Currency(code); cur != nil {
		return int32(cur.Fraction)
	}
	return defaultFraction
}

// Round rounds amount to the currency's minor unit using banker's rounding.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(Fraction(currency))
}

// Format renders amount with the currency's symbol and separators,
// e.g. "₱1,000.00".
func Format(amount decimal.Decimal, currency string) string {
	cur := Currency(currency)
	if cur == nil {
		return amount.StringFixed(defaultFraction)
	}
	minor := Round(amount, currency).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}
