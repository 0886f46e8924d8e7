package tax

import (
	"math"

	"github.com/shopspring/decimal"

	"dmv-service/internal/domain/dmv"
)

// Annual base rates per the statutory schedule. Brackets are half-open
// above: a value belongs to (over, upTo].
type rateBracket struct {
	over float64
	upTo float64
	rate int64
}

var volumeBrackets = []rateBracket{
	{0, 150, 50},
	{150, 900, 62},
	{900, 1200, 80},
	{1200, 1500, 115},
	{1500, 2000, 148},
	{2000, 3000, 180},
	{3000, math.Inf(1), 218},
}

// Mass brackets are in metric tons.
var massBrackets = []rateBracket{
	{0, 2, 115},
	{2, 4, 148},
	{4, 6, 180},
	{6, 8, 218},
	{8, 10, 253},
	{10, 12, 295},
}

var trailerRates = map[dmv.Category]int64{
	dmv.CategoryO1: 50,
	dmv.CategoryO2: 115,
	dmv.CategoryO3: 180,
	dmv.CategoryO4: 295,
}

const (
	trailerFallbackRate = 50
	massFallbackRate    = 115
)

// ResolveBaseRate returns the annual base rate for a vehicle and whether a
// documented fallback was used because no bracket or category matched.
// Unmatched inputs never fail; they resolve to the fallback and flag it.
func ResolveBaseRate(v dmv.Vehicle) (decimal.Decimal, bool) {
	// Electric vehicles: power but no displacement, zero rate.
	if v.EnginePowerKW > 0 && v.DisplacementCCM == 0 &&
		(v.Category.UsesDisplacement() || v.Category == dmv.CategoryN1) {
		return decimal.Zero, false
	}

	switch {
	case v.Category.UsesDisplacement():
		return volumeRate(v.DisplacementCCM)
	case v.Category == dmv.CategoryN1:
		return massRate(v.MassKG / 1000)
	case v.Category.IsTrailer():
		if rate, ok := trailerRates[v.Category]; ok {
			return decimal.NewFromInt(rate), false
		}
		return decimal.NewFromInt(trailerFallbackRate), true
	}

	if v.DisplacementCCM > 0 {
		rate, _ := volumeRate(v.DisplacementCCM)
		return rate, true
	}
	return decimal.NewFromInt(massFallbackRate), true
}

func volumeRate(ccm float64) (decimal.Decimal, bool) {
	for _, b := range volumeBrackets {
		if ccm > b.over && ccm <= b.upTo {
			return decimal.NewFromInt(b.rate), false
		}
	}
	// Nothing matched (displacement absent or zero): last tier, flagged.
	return decimal.NewFromInt(volumeBrackets[len(volumeBrackets)-1].rate), true
}

func massRate(tons float64) (decimal.Decimal, bool) {
	for _, b := range massBrackets {
		if tons > b.over && tons <= b.upTo {
			return decimal.NewFromInt(b.rate), false
		}
	}
	return decimal.NewFromInt(massFallbackRate), true
}
