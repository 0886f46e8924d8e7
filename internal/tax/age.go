package tax

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The age schedule changed for tax periods from 2025 on.
const ageScheduleCutoverYear = 2025

// Age coefficient brackets over whole months, half-open below: [over, upTo).
type ageBracket struct {
	from int
	to   int // -1 = unbounded
	coef decimal.Decimal
}

var ageBracketsPre2025 = []ageBracket{
	{0, 36, decimal.RequireFromString("0.75")},
	{36, 72, decimal.RequireFromString("0.80")},
	{72, 108, decimal.RequireFromString("0.85")},
	{108, 144, decimal.RequireFromString("1.00")},
	{144, 156, decimal.RequireFromString("1.10")},
	{156, -1, decimal.RequireFromString("1.20")},
}

var ageBracketsFrom2025 = []ageBracket{
	{0, 36, decimal.RequireFromString("1.00")},
	{36, 72, decimal.RequireFromString("1.10")},
	{72, 108, decimal.RequireFromString("1.20")},
	{108, 144, decimal.RequireFromString("1.30")},
	{144, 180, decimal.RequireFromString("1.40")},
	{180, -1, decimal.RequireFromString("1.50")},
}

// AgeInMonths measures whole elapsed months between the first-registration
// date and December 31 of the tax year. A missing or malformed date counts
// as age 0 rather than an error.
func AgeInMonths(firstRegistration string, taxYear int) int {
	_, month, year, ok := parseFormDate(firstRegistration)
	if !ok {
		return 0
	}
	months := (taxYear-year)*12 + (12 - month)
	if months < 0 {
		return 0
	}
	return months
}

// AgeCoefficient resolves the rate multiplier for a vehicle age. Ages at or
// beyond the top bracket use the last tier.
func AgeCoefficient(ageMonths, taxYear int) decimal.Decimal {
	brackets := ageBracketsPre2025
	if taxYear >= ageScheduleCutoverYear {
		brackets = ageBracketsFrom2025
	}
	for _, b := range brackets {
		if ageMonths >= b.from && (b.to < 0 || ageMonths < b.to) {
			return b.coef
		}
	}
	return brackets[len(brackets)-1].coef
}

// parseFormDate reads the d.m.yyyy date format used on the declaration
// form, accepting '/' as an alternate separator.
func parseFormDate(s string) (day, month, year int, ok bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "/", "."))
	if s == "" {
		return 0, 0, 0, false
	}
	parts := strings.Split(s, ".")
	if len(parts) < 3 {
		return 0, 0, 0, false
	}
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1 {
		return 0, 0, 0, false
	}
	return day, month, year, true
}
