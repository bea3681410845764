package leasing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultRateTableID identifies the built-in rate table.
const DefaultRateTableID = "default"

// RateBracket maps an inclusive financed-amount range to a monthly coefficient
// expressed as a percentage of the financed amount.
type RateBracket struct {
	Min         decimal.Decimal `json:"min"`
	Max         decimal.Decimal `json:"max"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

// Contains reports whether amount falls within [Min, Max].
func (b RateBracket) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(b.Min) && amount.LessThanOrEqual(b.Max)
}

// RateTable is a leasing partner's bracket list. Ranges are ordered by Min and
// do not overlap.
type RateTable struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Ranges []RateBracket `json:"ranges"`
}

// DefaultRateTable returns the built-in table used when no partner table is
// selected or a lookup finds nothing.
func DefaultRateTable() RateTable {
	return RateTable{
		ID:   DefaultRateTableID,
		Name: "Barème par défaut",
		Ranges: []RateBracket{
			bracket("500", "2500", "3.53"),
			bracket("2500.01", "5000", "3.36"),
			bracket("5000.01", "12500", "3.19"),
			bracket("12500.01", "25000", "3.16"),
			bracket("25000.01", "50000", "3.10"),
		},
	}
}

func bracket(min, max, coef string) RateBracket {
	return RateBracket{
		Min:         decimal.RequireFromString(min),
		Max:         decimal.RequireFromString(max),
		Coefficient: decimal.RequireFromString(coef),
	}
}

// fallbackCoefficient is the first bracket of the default table.
func fallbackCoefficient() decimal.Decimal {
	return DefaultRateTable().Ranges[0].Coefficient
}

// FindCoefficient returns the coefficient of the first bracket of table that
// contains amount. A nil or empty table, or an amount no bracket covers,
// yields the first coefficient of the default table.
func FindCoefficient(amount decimal.Decimal, table *RateTable) decimal.Decimal {
	if table == nil || len(table.Ranges) == 0 {
		return fallbackCoefficient()
	}
	for _, r := range table.Ranges {
		if r.Contains(amount) {
			return r.Coefficient
		}
	}
	return fallbackCoefficient()
}

// ValidateRanges checks that brackets have positive coefficients, are
// ordered by Min and do not overlap.
func ValidateRanges(ranges []RateBracket) error {
	for i, r := range ranges {
		if r.Min.IsNegative() {
			return fmt.Errorf("range %d: min must not be negative", i)
		}
		if r.Max.LessThan(r.Min) {
			return fmt.Errorf("range %d: max must be greater than or equal to min", i)
		}
		if !r.Coefficient.IsPositive() {
			return fmt.Errorf("range %d: coefficient must be positive", i)
		}
		if i > 0 && !r.Min.GreaterThan(ranges[i-1].Max) {
			return fmt.Errorf("range %d overlaps range %d", i, i-1)
		}
	}
	return nil
}
