package tax

import (
	"github.com/shopspring/decimal"

	"dmv-service/internal/domain/dmv"
)

var (
	half   = decimal.RequireFromString("0.5")
	twelve = decimal.NewFromInt(12)
)

// Result carries the derived tax fields for one vehicle. Tax and
// AdjustedRate are rounded to two places for presentation; no intermediate
// value is rounded.
type Result struct {
	BaseRate     decimal.Decimal
	AgeMonths    int
	AdjustedRate decimal.Decimal
	MonthsHeld   int
	Tax          decimal.Decimal
	UsedFallback bool
}

// Compute derives the annual tax for one vehicle in the given tax period.
// It is a pure function of the vehicle fields and the year: the same inputs
// always produce the same result.
//
// Composition order is fixed: base rate, then the age coefficient (skipped
// for trailers), then the eco and combined-transport halvings, which stack
// independently, then monthly proration.
func Compute(v dmv.Vehicle, taxYear int) Result {
	base, fallback := ResolveBaseRate(v)
	age := AgeInMonths(v.FirstRegistration, taxYear)
	months := monthsHeld(v)

	res := Result{
		BaseRate:     base,
		AgeMonths:    age,
		MonthsHeld:   months,
		UsedFallback: fallback,
	}

	if base.IsZero() {
		res.AdjustedRate = decimal.Zero
		res.Tax = decimal.Zero
		return res
	}

	adjusted := base
	if !v.Category.IsTrailer() && age > 0 {
		adjusted = base.Mul(AgeCoefficient(age, taxYear))
	}
	if v.EcoDrive {
		adjusted = adjusted.Mul(half)
	}
	if v.CombinedTransport {
		adjusted = adjusted.Mul(half)
	}

	res.AdjustedRate = adjusted.Round(2)
	res.Tax = adjusted.Div(twelve).Mul(decimal.NewFromInt(int64(months))).Round(2)
	return res
}

// Apply recomputes a vehicle's derived fields in place.
func Apply(v *dmv.Vehicle, taxYear int) {
	res := Compute(*v, taxYear)
	v.ComputedAtYear = taxYear
	v.BaseRate = res.BaseRate
	v.AgeMonths = res.AgeMonths
	v.AdjustedRate = res.AdjustedRate
	v.MonthsHeld = res.MonthsHeld
	v.Tax = res.Tax
	v.UsedFallback = res.UsedFallback
}

// monthsHeld resolves the proration count. An explicit value wins; absent
// that, liability starting in month m of the period covers (13 - m) months,
// and with no start date the full year is assumed.
func monthsHeld(v dmv.Vehicle) int {
	if v.MonthsHeld > 0 {
		return v.MonthsHeld
	}
	if _, month, _, ok := parseFormDate(v.TaxStart); ok {
		return 13 - month
	}
	return 12
}
