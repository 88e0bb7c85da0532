// Package core provides money parsing and handling utilities.
//
// Prices travel through the application as integer cents. The decimal
// library is used at the edges: parsing user input and converting to and
// from the REAL column of the expenses table.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxPrice keeps cents within int64 with plenty of headroom.
var maxPrice = decimal.New(1, 15)

// ParsePrice converts a decimal string to Money with half-up rounding to cents.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Zero is a
// valid price; negative values are rejected.
//
// Examples:
//
//	ParsePrice("12.34")  -> 1234 cents
//	ParsePrice("12,34")  -> 1234 cents
//	ParsePrice("12.345") -> 1235 cents
//	ParsePrice("-1")     -> ErrNegativePrice
//	ParsePrice("abc")    -> ErrInvalidPrice
func ParsePrice(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrEmptyPrice
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidPrice
	}
	if d.IsNegative() {
		return Money{}, ErrNegativePrice
	}
	if d.GreaterThanOrEqual(maxPrice) {
		return Money{}, ErrInvalidPrice
	}
	return Money{Cents: d.Round(2).Shift(2).IntPart()}, nil
}

// MoneyFromFloat converts a stored REAL price back to cents.
func MoneyFromFloat(f float64) Money {
	return Money{Cents: decimal.NewFromFloat(f).Round(2).Shift(2).IntPart()}
}

// Float64 returns the price as stored in the REAL column.
func (m Money) Float64() float64 {
	return decimal.New(m.Cents, -2).InexactFloat64()
}

// String formats the price with two fraction digits, e.g. "40.00".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sum adds up the prices of the given expenses.
func Sum(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Price)
	}
	return total
}
