// Package money holds the fixed-point helpers used for every monetary field (two decimal places).
package money

import "github.com/shopspring/decimal"

const Places = 2

func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Add returns a+b rounded; accumulating through Add keeps totals free of drift.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Add(b))
}

// Equal compares two amounts after rounding both to cents.
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}
