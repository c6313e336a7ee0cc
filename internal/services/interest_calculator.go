package services

import "github.com/shopspring/decimal"

var (
	oneHundred  = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
)

// ComputeInterest returns the simple interest earned by principal at
// annualRatePercent over periodDays, rounded to two decimal places:
//
//	interest = principal * (annualRatePercent / 100 / 365) * periodDays
//
// The monthly accrual run always passes a 30-day period, so every month earns
// the same interest regardless of its calendar length. A zero principal or a
// non-positive rate yields zero; the function never returns a negative amount.
func ComputeInterest(principal, annualRatePercent decimal.Decimal, periodDays int) decimal.Decimal {
	if principal.Sign() <= 0 || annualRatePercent.Sign() <= 0 || periodDays <= 0 {
		return decimal.Zero
	}

	dailyRate := annualRatePercent.Div(oneHundred).Div(daysPerYear)
	return principal.Mul(dailyRate).Mul(decimal.NewFromInt(int64(periodDays))).Round(2)
}
