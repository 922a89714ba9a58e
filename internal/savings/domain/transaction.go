package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeReversal   TransactionType = "REVERSAL"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusCancelled TransactionStatus = "CANCELLED"
	StatusReversed  TransactionStatus = "REVERSED"
)

// Transaction is one ledger record. Status only ever moves forward:
// PENDING -> COMPLETED | CANCELLED, COMPLETED -> REVERSED. A COMPLETED
// or REVERSED record corresponds to exactly one balance mutation that
// has already happened.
type Transaction struct {
	ID        string
	RefID     string
	AccountID string
	Type      TransactionType
	Amount    decimal.Decimal
	Status    TransactionStatus

	// Reversal metadata, set when an admin reverses the record.
	ReversedBy     string
	ReversedAt     *time.Time
	ReversedReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTransactionRefID generates a customer-facing reference id:
// "TXN" + last 8 digits of the unix-milli timestamp + 3 random digits.
func NewTransactionRefID(now time.Time) string {
	millis := fmt.Sprintf("%d", now.UnixMilli())
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		n = big.NewInt(0)
	}
	return fmt.Sprintf("TXN%s%03d", millis, n.Int64())
}
