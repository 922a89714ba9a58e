package store

import (
	"context"
	"errors"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep
// concerns tidy and testable.
//
// Contended state is mutated through conditional methods that report
// whether the guard held (CreditBalance, DebitBalance,
// ConsumeOneTimeCode, MarkTransaction*). Callers never read a value
// and write it back; the database executes the check and the write as
// one statement so concurrent process instances cannot race past each
// other.
type Store interface {
	Users() Users
	Accounts() Accounts
	Devices() Devices
	Sessions() Sessions
	OneTimeCodes() OneTimeCodes
	Transactions() Transactions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rollback when fn returns
	// an error, commit otherwise. This is the recommended entry point
	// for multi-step ledger operations.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user. ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// SetUserActive flips the active flag (lockout deactivation and
	// support reactivation).
	SetUserActive(ctx context.Context, userID string, active bool) error

	// MarkUserVerified records a completed email verification.
	MarkUserVerified(ctx context.Context, userID string) error

	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// UpdatePINHash sets or replaces the transaction PIN hash.
	UpdatePINHash(ctx context.Context, userID, hash string) error
}

type Accounts interface {
	CreateAccount(ctx context.Context, a domain.Account) error

	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetActiveAccountByUserID returns the user's active savings account.
	GetActiveAccountByUserID(ctx context.Context, userID string) (domain.Account, error)

	// CreditBalance atomically adds amount to the account balance,
	// applied only while the account is active and the result stays at
	// or under max. Returns whether the guard held.
	CreditBalance(ctx context.Context, accountID string, amount, max decimal.Decimal) (bool, error)

	// DebitBalance atomically subtracts amount, applied only while the
	// account is active and holds at least amount. Returns whether the
	// guard held. This single statement is what makes concurrent
	// over-withdrawal impossible.
	DebitBalance(ctx context.Context, accountID string, amount decimal.Decimal) (bool, error)
}

type Devices interface {
	// UpsertDevice inserts the (userID, deviceID) pair or, on repeat
	// registration, refreshes name/platform/lastUsed. Returns the
	// stored row.
	UpsertDevice(ctx context.Context, d domain.Device) (domain.Device, error)

	// GetDevice looks up by the unique (userID, deviceID) pair.
	GetDevice(ctx context.Context, userID, deviceID string) (domain.Device, error)

	// MarkDeviceVerified flips is_verified. ErrNotFound when no row matches.
	MarkDeviceVerified(ctx context.Context, userID, deviceID string) error

	// TouchDevice bumps last_used_at.
	TouchDevice(ctx context.Context, id string, at time.Time) error

	ListUserDevices(ctx context.Context, userID string) ([]domain.Device, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// UpdateSessionExpiry extends the session windows after a token
	// rotation and bumps last_used_at.
	UpdateSessionExpiry(ctx context.Context, id string, accessExpiresAt, refreshExpiresAt, lastUsedAt time.Time) error

	// RevokeSession flips is_active off.
	RevokeSession(ctx context.Context, id string) error

	// RevokeUserSessions revokes every active session for the user
	// except exceptID (pass "" to revoke all). Returns the revoked
	// session ids so the caller can drop the cache mirrors too.
	RevokeUserSessions(ctx context.Context, userID, exceptID string) ([]string, error)

	// DeleteExpiredSessions removes rows whose refresh window ended
	// before the cutoff. Housekeeping only.
	DeleteExpiredSessions(ctx context.Context, before time.Time) error
}

type OneTimeCodes interface {
	CreateOneTimeCode(ctx context.Context, c domain.OneTimeCode) error

	// ConsumeOneTimeCode marks the matching unused, unexpired code as
	// used in a single conditional update and reports whether exactly
	// one row changed. Two racing calls for the same code: one true.
	ConsumeOneTimeCode(ctx context.Context, userID, code string, purpose domain.CodePurpose, now time.Time) (bool, error)

	// DeleteDeadOneTimeCodes removes used or expired codes.
	DeleteDeadOneTimeCodes(ctx context.Context, now time.Time) (int64, error)
}

type Transactions interface {
	CreateTransaction(ctx context.Context, t domain.Transaction) error

	GetTransactionByID(ctx context.Context, id string) (domain.Transaction, error)

	// MarkTransactionCompleted flips PENDING -> COMPLETED. False when
	// the record was not PENDING.
	MarkTransactionCompleted(ctx context.Context, id string) (bool, error)

	// MarkTransactionCancelled flips PENDING -> CANCELLED. False when
	// the record was not PENDING.
	MarkTransactionCancelled(ctx context.Context, id string) (bool, error)

	// MarkTransactionReversed flips any non-REVERSED record to REVERSED
	// and stores the audit fields. False when already reversed.
	MarkTransactionReversed(ctx context.Context, id, adminID, reason string, at time.Time) (bool, error)

	// CancelExpiredTransactions bulk-cancels PENDING records created
	// before the cutoff. Idempotent; returns the number cancelled.
	CancelExpiredTransactions(ctx context.Context, cutoff time.Time) (int64, error)

	// ListAccountTransactions pages newest-first.
	ListAccountTransactions(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, error)

	CountAccountTransactions(ctx context.Context, accountID string) (int64, error)
}
