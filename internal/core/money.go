package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BillingFrequency is how often the policyholder pays.
type BillingFrequency string

const (
	FrequencyMonthly    BillingFrequency = "monthly"
	FrequencyQuarterly  BillingFrequency = "quarterly"
	FrequencySemiAnnual BillingFrequency = "semi_annual"
	FrequencyAnnual     BillingFrequency = "annual"
)

// PaymentsPerYear returns how many instalments a year holds for f, or 0 for
// an unknown frequency.
func (f BillingFrequency) PaymentsPerYear() int {
	switch f {
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	case FrequencySemiAnnual:
		return 2
	case FrequencyAnnual:
		return 1
	default:
		return 0
	}
}

func (f BillingFrequency) Valid() bool {
	return f.PaymentsPerYear() > 0
}

var hundred = decimal.NewFromInt(100)

// Round2 rounds to 2 decimal places, half away from zero (currency-correct
// round-half-up for positive amounts).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PercentOf returns pct% of amount, rounded to 2 dp.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(pct).Div(hundred))
}

// Periodize converts an annual premium into one instalment at the given
// billing frequency.
func Periodize(annual decimal.Decimal, freq BillingFrequency) (decimal.Decimal, error) {
	n := freq.PaymentsPerYear()
	if n == 0 {
		return decimal.Zero, fmt.Errorf("%w: unknown billing frequency %q", ErrValidation, freq)
	}
	return Round2(annual.Div(decimal.NewFromInt(int64(n)))), nil
}

// ConvertFrequency converts an instalment amount between two billing
// frequencies, normalizing through monthly.
func ConvertFrequency(amount decimal.Decimal, from, to BillingFrequency) (decimal.Decimal, error) {
	fromN, toN := from.PaymentsPerYear(), to.PaymentsPerYear()
	if fromN == 0 {
		return decimal.Zero, fmt.Errorf("%w: unknown billing frequency %q", ErrValidation, from)
	}
	if toN == 0 {
		return decimal.Zero, fmt.Errorf("%w: unknown billing frequency %q", ErrValidation, to)
	}
	monthly := amount.Mul(decimal.NewFromInt(int64(fromN))).Div(decimal.NewFromInt(12))
	return Round2(monthly.Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(int64(toN)))), nil
}
