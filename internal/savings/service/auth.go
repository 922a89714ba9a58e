package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acornbank/acorn/internal/savings/cache"
	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/notify"
	"github.com/acornbank/acorn/internal/savings/queue"
	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/pkg/cryptox"
	"github.com/acornbank/acorn/pkg/idx"
)

// Lockout policy: this many wrong passwords inside the window
// deactivates the user until support reactivates them.
const (
	DefaultMaxLoginAttempts = 5
	DefaultAttemptWindow    = 15 * time.Minute
)

// AuthService drives the account and session lifecycle: registration,
// the two-phase login, logout, email verification, and the credential
// mutations (password, transaction PIN).
type AuthService struct {
	Store    store.Store
	Cache    cache.Cache
	Sessions *SessionService
	Tokens   *TokenService
	Devices  *DeviceService
	Codes    *CodeService
	Queue    *queue.Dispatcher

	MaxLoginAttempts int
	AttemptWindow    time.Duration
}

func (s *AuthService) maxAttempts() int {
	if s.MaxLoginAttempts > 0 {
		return s.MaxLoginAttempts
	}
	return DefaultMaxLoginAttempts
}

func (s *AuthService) attemptWindow() time.Duration {
	if s.AttemptWindow > 0 {
		return s.AttemptWindow
	}
	return DefaultAttemptWindow
}

func attemptKey(email string) string { return "login_attempts:" + email }

type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
	DeviceID  string
	Device    domain.DeviceMeta
}

type RegisterResult struct {
	User    domain.User
	Account domain.Account
	Tokens  domain.TokenPair
}

// Register creates the user with a zero-balance savings account, trusts
// the registering device, opens a session, and queues the welcome and
// email-verification mails.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (RegisterResult, error) {
	email := normalizeEmail(p.Email)
	hash, err := cryptox.HashSecret(p.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	role := p.Role
	if role == "" {
		role = domain.RoleClient
	}
	number, err := cryptox.GenerateNumericCode(10)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("generate account number: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	account := domain.Account{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Number:    number,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Accounts().CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return RegisterResult{}, err
	}

	// The registering device starts trusted: the user just proved the
	// credentials they created moments ago on this very installation.
	dev, err := s.Store.Devices().UpsertDevice(ctx, domain.Device{
		ID:         idx.New().String(),
		UserID:     user.ID,
		DeviceID:   p.DeviceID,
		Name:       p.Device.Name,
		Platform:   p.Device.Platform,
		IsVerified: true,
		LastUsedAt: now,
		CreatedAt:  now,
	})
	if err != nil {
		return RegisterResult{}, fmt.Errorf("register device: %w", err)
	}

	sess, err := s.Sessions.Create(ctx, user.ID, dev.ID)
	if err != nil {
		return RegisterResult{}, err
	}
	tokens, err := s.Tokens.Issue(ctx, user.ID, dev.ID, sess.ID)
	if err != nil {
		return RegisterResult{}, err
	}

	s.Queue.Enqueue(notify.JobWelcomeEmail, notify.WelcomePayload{
		Email:     user.Email,
		FirstName: user.FirstName,
	})
	if _, err := s.Codes.Issue(ctx, user, domain.PurposeEmailVerification); err != nil {
		return RegisterResult{}, err
	}

	return RegisterResult{User: user, Account: account, Tokens: tokens}, nil
}

type LoginParams struct {
	Email    string
	Password string
	DeviceID string
	Device   domain.DeviceMeta
}

// LoginChallenge is the first-phase login result: the password and
// device checks passed and a login code is on its way.
type LoginChallenge struct {
	UserID string
}

// Login runs the first phase: password check with lockout counting,
// then the device-trust gate, then a fresh login code. Tokens are only
// issued by CompleteLogin.
func (s *AuthService) Login(ctx context.Context, p LoginParams) (LoginChallenge, error) {
	email := normalizeEmail(p.Email)
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginChallenge{}, ErrInvalidCredentials
		}
		return LoginChallenge{}, fmt.Errorf("look up user: %w", err)
	}
	if !user.IsActive {
		return LoginChallenge{}, ErrAccountInactive
	}

	if err := cryptox.VerifySecret(p.Password, user.PasswordHash); err != nil {
		return LoginChallenge{}, s.recordFailedAttempt(ctx, user)
	}
	if err := s.Cache.Delete(ctx, attemptKey(email)); err != nil {
		return LoginChallenge{}, fmt.Errorf("clear attempt counter: %w", err)
	}

	if _, err := s.Devices.Authorize(ctx, user, p.DeviceID, p.Device); err != nil {
		if errors.Is(err, ErrUntrustedDevice) {
			// Give the user a way in: a device code proves they hold the
			// mailbox, which verifies the new installation.
			if _, cerr := s.Codes.Issue(ctx, user, domain.PurposeDeviceVerification); cerr != nil {
				return LoginChallenge{}, cerr
			}
		}
		return LoginChallenge{}, err
	}

	if _, err := s.Codes.Issue(ctx, user, domain.PurposeLogin); err != nil {
		return LoginChallenge{}, err
	}
	return LoginChallenge{UserID: user.ID}, nil
}

// CompleteLogin redeems the login code and opens the session.
func (s *AuthService) CompleteLogin(ctx context.Context, userID, code, deviceID string) (domain.TokenPair, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, fmt.Errorf("look up user: %w", err)
	}
	if !user.IsActive {
		return domain.TokenPair{}, ErrAccountInactive
	}

	if err := s.Codes.Redeem(ctx, userID, code, domain.PurposeLogin); err != nil {
		return domain.TokenPair{}, err
	}

	dev, err := s.Store.Devices().GetDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrUntrustedDevice
		}
		return domain.TokenPair{}, fmt.Errorf("look up device: %w", err)
	}
	if !dev.IsVerified && !s.Devices.autoTrusted(user.Role) {
		return domain.TokenPair{}, ErrUntrustedDevice
	}

	sess, err := s.Sessions.Create(ctx, user.ID, dev.ID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	tokens, err := s.Tokens.Issue(ctx, user.ID, dev.ID, sess.ID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Queue.Enqueue(notify.JobLoginAlert, notify.LoginPayload{
		Email:      user.Email,
		FirstName:  user.FirstName,
		DeviceName: dev.Name,
		Platform:   dev.Platform,
	})
	return tokens, nil
}

// recordFailedAttempt bumps the rolling counter and deactivates the
// user once the limit is hit. The counter lives in the cache; its
// window starts at the first failure and does not slide.
func (s *AuthService) recordFailedAttempt(ctx context.Context, user domain.User) error {
	count, err := s.Cache.Increment(ctx, attemptKey(user.Email), s.attemptWindow())
	if err != nil {
		return fmt.Errorf("count login attempt: %w", err)
	}
	if count < int64(s.maxAttempts()) {
		return ErrInvalidCredentials
	}

	if err := s.Store.Users().SetUserActive(ctx, user.ID, false); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if err := s.Sessions.RevokeAll(ctx, user.ID, ""); err != nil {
		return err
	}
	return ErrAccountLocked
}

// VerifyDevice redeems a device-verification code and trusts the device.
func (s *AuthService) VerifyDevice(ctx context.Context, userID, deviceID, code string) error {
	if err := s.Codes.Redeem(ctx, userID, code, domain.PurposeDeviceVerification); err != nil {
		return err
	}
	return s.Devices.Verify(ctx, userID, deviceID)
}

// VerifyEmail redeems an email-verification code and marks the user
// verified.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user.IsVerified {
		return ErrEmailAlreadyVerified
	}
	if err := s.Codes.Redeem(ctx, userID, code, domain.PurposeEmailVerification); err != nil {
		return err
	}
	if err := s.Store.Users().MarkUserVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// ResendVerification issues a fresh email-verification code.
func (s *AuthService) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user.IsVerified {
		return ErrEmailAlreadyVerified
	}
	_, err = s.Codes.Issue(ctx, user, domain.PurposeEmailVerification)
	return err
}

// Logout revokes the calling session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.Revoke(ctx, sessionID)
}

// LogoutAll revokes every session the user holds.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.Sessions.RevokeAll(ctx, userID, "")
}

// ChangePassword verifies the current password, swaps the hash, and
// revokes every other session so stolen tokens die with the old
// password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next, keepSessionID string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if err := cryptox.VerifySecret(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashSecret(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.Sessions.RevokeAll(ctx, userID, keepSessionID)
}

// SetTransactionPIN installs or replaces the PIN that gates large
// transactions. Replacing an existing PIN requires the current one.
func (s *AuthService) SetTransactionPIN(ctx context.Context, userID, currentPIN, pin string) error {
	if !validPIN(pin) {
		return ErrInvalidPIN
	}
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user.HasPIN() {
		if err := cryptox.VerifySecret(currentPIN, user.PINHash); err != nil {
			return ErrInvalidPIN
		}
	}

	hash, err := cryptox.HashSecret(pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	if err := s.Store.Users().UpdatePINHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update pin: %w", err)
	}
	return nil
}

// VerifyTransactionPIN checks the user's transaction PIN. A user with
// no PIN set fails the check.
func (s *AuthService) VerifyTransactionPIN(ctx context.Context, userID, pin string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if !user.HasPIN() {
		return ErrInvalidPIN
	}
	if err := cryptox.VerifySecret(pin, user.PINHash); err != nil {
		return ErrInvalidPIN
	}
	return nil
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
