package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxBalance is the ledger ceiling. A completed deposit may never push
// a balance past it.
var MaxBalance = decimal.RequireFromString("99999999.99")

type Account struct {
	ID        string
	UserID    string
	Number    string // human-facing account number
	Balance   decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidAmount reports whether amount is a positive value with at most
// two decimal places, the only shape the ledger accepts.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Exponent() >= -2
}
