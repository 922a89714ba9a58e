package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/notify"
	"github.com/acornbank/acorn/internal/savings/queue"
	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/pkg/cryptox"
	"github.com/acornbank/acorn/pkg/idx"
)

// DefaultConfirmWindow is how long a pending transaction waits for its
// PIN confirmation before the sweeper cancels it.
const DefaultConfirmWindow = 20 * time.Minute

// DefaultPendingThreshold is the amount at or above which a user with
// a transaction PIN goes through the pending confirmation flow.
var DefaultPendingThreshold = decimal.RequireFromString("1000.00")

// LedgerService is the transaction engine. Every balance mutation goes
// through a conditional store update inside a transaction, so the
// invariants (no overdraft, no balance over the ceiling, one mutation
// per completed record) hold under any interleaving.
type LedgerService struct {
	Store store.Store
	Queue *queue.Dispatcher

	MaxBalance       decimal.Decimal
	PendingThreshold decimal.Decimal
	ConfirmWindow    time.Duration
}

func (s *LedgerService) maxBalance() decimal.Decimal {
	if s.MaxBalance.IsZero() {
		return domain.MaxBalance
	}
	return s.MaxBalance
}

func (s *LedgerService) threshold() decimal.Decimal {
	if s.PendingThreshold.IsZero() {
		return DefaultPendingThreshold
	}
	return s.PendingThreshold
}

func (s *LedgerService) confirmWindow() time.Duration {
	if s.ConfirmWindow > 0 {
		return s.ConfirmWindow
	}
	return DefaultConfirmWindow
}

// Deposit credits the user's account, or parks the transaction as
// PENDING when the user has a PIN and the amount meets the threshold.
func (s *LedgerService) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (domain.Transaction, error) {
	return s.submit(ctx, userID, domain.TypeDeposit, amount)
}

// Withdraw debits the user's account under the same pending rules.
func (s *LedgerService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (domain.Transaction, error) {
	return s.submit(ctx, userID, domain.TypeWithdrawal, amount)
}

func (s *LedgerService) submit(ctx context.Context, userID string, txType domain.TransactionType, amount decimal.Decimal) (domain.Transaction, error) {
	if !domain.ValidAmount(amount) {
		return domain.Transaction{}, ErrInvalidAmount
	}
	account, user, err := s.accountAndOwner(ctx, userID)
	if err != nil {
		return domain.Transaction{}, err
	}

	if user.HasPIN() && amount.GreaterThanOrEqual(s.threshold()) {
		rec := s.newTransaction(account.ID, txType, amount, domain.StatusPending)
		if err := s.Store.Transactions().CreateTransaction(ctx, rec); err != nil {
			return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
		}
		s.Queue.Enqueue(notify.JobPendingTransaction, notify.LedgerPayload{
			Email: user.Email, RefID: rec.RefID, Type: txType,
			Amount: amount, Balance: account.Balance,
		})
		return rec, nil
	}

	rec := s.newTransaction(account.ID, txType, amount, domain.StatusCompleted)
	var after decimal.Decimal
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.applyDelta(ctx, tx, account.ID, txType, amount); err != nil {
			return err
		}
		if err := tx.Transactions().CreateTransaction(ctx, rec); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		after, err = s.committedBalance(ctx, tx, account.ID)
		return err
	})
	if errors.Is(err, ErrInsufficientBalance) {
		s.Queue.Enqueue(notify.JobInsufficientBalance, notify.LedgerPayload{
			Email: user.Email, RefID: rec.RefID, Type: txType,
			Amount: amount, Balance: account.Balance,
		})
	}
	if err != nil {
		return domain.Transaction{}, err
	}

	s.notifyCompleted(user.Email, rec, after)
	return rec, nil
}

// Confirm completes a pending transaction after checking ownership,
// the confirmation window, and the transaction PIN. The window check
// is strict: exactly at the deadline counts as expired.
func (s *LedgerService) Confirm(ctx context.Context, userID, transactionID, pin string) (domain.Transaction, error) {
	rec, err := s.Store.Transactions().GetTransactionByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Transaction{}, ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}
	account, err := s.Store.Accounts().GetAccountByID(ctx, rec.AccountID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("load account: %w", err)
	}
	if account.UserID != userID {
		return domain.Transaction{}, ErrUnauthorized
	}
	if rec.Status != domain.StatusPending {
		return domain.Transaction{}, ErrTransactionNotPending
	}

	now := time.Now().UTC()
	if now.Sub(rec.CreatedAt) >= s.confirmWindow() {
		// Cancel eagerly rather than waiting for the sweeper.
		if _, err := s.Store.Transactions().MarkTransactionCancelled(ctx, transactionID); err != nil {
			return domain.Transaction{}, fmt.Errorf("cancel expired transaction: %w", err)
		}
		return domain.Transaction{}, ErrTransactionExpired
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("load user: %w", err)
	}
	if !user.HasPIN() {
		return domain.Transaction{}, ErrInvalidPIN
	}
	if err := cryptox.VerifySecret(pin, user.PINHash); err != nil {
		return domain.Transaction{}, ErrInvalidPIN
	}

	var after decimal.Decimal
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.Transactions().MarkTransactionCompleted(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}
		if !ok {
			return ErrTransactionNotPending
		}
		if err := s.applyDelta(ctx, tx, rec.AccountID, rec.Type, rec.Amount); err != nil {
			return err
		}
		after, err = s.committedBalance(ctx, tx, rec.AccountID)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	rec.Status = domain.StatusCompleted
	s.notifyCompleted(user.Email, rec, after)
	return rec, nil
}

// Cancel abandons a pending transaction. Only the account owner can
// cancel, and only while the record is still PENDING.
func (s *LedgerService) Cancel(ctx context.Context, userID, transactionID string) error {
	rec, err := s.Store.Transactions().GetTransactionByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("load transaction: %w", err)
	}
	account, err := s.Store.Accounts().GetAccountByID(ctx, rec.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if account.UserID != userID {
		return ErrUnauthorized
	}

	ok, err := s.Store.Transactions().MarkTransactionCancelled(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("cancel transaction: %w", err)
	}
	if !ok {
		return ErrTransactionNotPending
	}
	return nil
}

// Reverse undoes a completed transaction: the original record is
// marked REVERSED with the audit fields, the inverse delta is applied,
// and a COMPLETED record of type REVERSAL is written, all in one
// store transaction.
func (s *LedgerService) Reverse(ctx context.Context, adminID, transactionID, reason string) (domain.Transaction, error) {
	var reversal domain.Transaction
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.Transactions().GetTransactionByID(ctx, transactionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("load transaction: %w", err)
		}
		switch rec.Status {
		case domain.StatusReversed:
			return ErrAlreadyReversed
		case domain.StatusCompleted:
		default:
			return ErrTransactionNotReversible
		}

		ok, err := tx.Transactions().MarkTransactionReversed(ctx, transactionID, adminID, reason, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("mark reversed: %w", err)
		}
		if !ok {
			return ErrAlreadyReversed
		}

		inverse := domain.TypeWithdrawal
		if rec.Type != domain.TypeDeposit {
			inverse = domain.TypeDeposit
		}
		if err := s.applyDelta(ctx, tx, rec.AccountID, inverse, rec.Amount); err != nil {
			return err
		}

		reversal = s.newTransaction(rec.AccountID, domain.TypeReversal, rec.Amount, domain.StatusCompleted)
		if err := tx.Transactions().CreateTransaction(ctx, reversal); err != nil {
			return fmt.Errorf("create reversal record: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return reversal, nil
}

// Balance returns the current balance of the user's active account.
func (s *LedgerService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return account.Balance, nil
}

// History pages the account's transactions newest-first and returns
// the total count for the pager.
func (s *LedgerService) History(ctx context.Context, userID string, page, limit int) ([]domain.Transaction, int64, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	records, err := s.Store.Transactions().ListAccountTransactions(ctx, account.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	total, err := s.Store.Transactions().CountAccountTransactions(ctx, account.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return records, total, nil
}

// applyDelta runs the conditional balance mutation and translates a
// failed guard into the matching domain error.
func (s *LedgerService) applyDelta(ctx context.Context, tx store.Tx, accountID string, txType domain.TransactionType, amount decimal.Decimal) error {
	switch txType {
	case domain.TypeWithdrawal:
		ok, err := tx.Accounts().DebitBalance(ctx, accountID, amount)
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		if !ok {
			return ErrInsufficientBalance
		}
	default:
		ok, err := tx.Accounts().CreditBalance(ctx, accountID, amount, s.maxBalance())
		if err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
		if !ok {
			return ErrBalanceLimitExceeded
		}
	}
	return nil
}

func (s *LedgerService) newTransaction(accountID string, txType domain.TransactionType, amount decimal.Decimal, status domain.TransactionStatus) domain.Transaction {
	now := time.Now().UTC()
	return domain.Transaction{
		ID:        idx.New().String(),
		RefID:     domain.NewTransactionRefID(now),
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *LedgerService) notifyCompleted(email string, rec domain.Transaction, balance decimal.Decimal) {
	jobType := notify.JobDepositReceipt
	if rec.Type == domain.TypeWithdrawal {
		jobType = notify.JobWithdrawalAlert
	}
	s.Queue.Enqueue(jobType, notify.LedgerPayload{
		Email: email, RefID: rec.RefID, Type: rec.Type,
		Amount: rec.Amount, Balance: balance,
	})
}

// committedBalance re-reads the balance inside the transaction so the
// receipt reflects the state being committed, not the pre-transaction
// read.
func (s *LedgerService) committedBalance(ctx context.Context, tx store.Tx, accountID string) (decimal.Decimal, error) {
	account, err := tx.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reload account: %w", err)
	}
	return account.Balance, nil
}

func (s *LedgerService) account(ctx context.Context, userID string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetActiveAccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

func (s *LedgerService) accountAndOwner(ctx context.Context, userID string) (domain.Account, domain.User, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return domain.Account{}, domain.User{}, err
	}
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.Account{}, domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return account, user, nil
}
