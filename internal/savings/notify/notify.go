// Package notify turns queued platform events into outbound mail. The
// services only enqueue typed payloads; everything about formatting
// and delivery lives here, behind the Mailer interface.
package notify

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/acornbank/acorn/internal/savings/domain"
)

// Job types the services enqueue. Each has a registered handler.
const (
	JobWelcomeEmail        = "welcome_email"
	JobOneTimeCode         = "otc_email"
	JobLoginAlert          = "login_notification"
	JobDepositReceipt      = "deposit_confirmation"
	JobWithdrawalAlert     = "withdrawal_alert"
	JobInsufficientBalance = "insufficient_balance"
	JobPendingTransaction  = "pending_transaction"
)

// Message is one piece of outbound mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message. Returning an error makes the queue retry
// the job with backoff.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// WelcomePayload announces a fresh registration.
type WelcomePayload struct {
	Email     string
	FirstName string
}

// CodePayload carries a one-time code to the user.
type CodePayload struct {
	Email   string
	Code    string
	Purpose domain.CodePurpose
	Minutes int
}

// LoginPayload reports a successful login.
type LoginPayload struct {
	Email      string
	FirstName  string
	DeviceName string
	Platform   string
}

// LedgerPayload covers the transaction-related mails: receipts,
// alerts, and pending-confirmation notices.
type LedgerPayload struct {
	Email   string
	RefID   string
	Type    domain.TransactionType
	Amount  decimal.Decimal
	Balance decimal.Decimal
}
