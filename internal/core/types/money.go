// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromInt creates a Money value from an integer.
func NewMoneyFromInt(n int64) Money {
	return decimal.NewFromInt(n)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Percent applies a percentage rate to an amount: amount * rate / 100.
// Tax math across the platform goes through this single helper.
func Percent(amount, rate Money) Money {
	return amount.Mul(rate).Div(decimal.NewFromInt(100))
}
