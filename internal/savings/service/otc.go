package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/notify"
	"github.com/acornbank/acorn/internal/savings/queue"
	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/pkg/cryptox"
	"github.com/acornbank/acorn/pkg/idx"
)

// Defaults for one-time codes: six digits, ten minutes.
const (
	DefaultCodeLength = 6
	DefaultCodeTTL    = 10 * time.Minute
)

// CodeService issues and redeems the numeric step-up codes used for
// login, device verification, and email verification. Redemption is a
// single conditional update in the store, so a code can never be
// consumed twice even under concurrent attempts.
type CodeService struct {
	Store store.Store
	Queue *queue.Dispatcher

	CodeLength int
	CodeTTL    time.Duration
}

func (s *CodeService) length() int {
	if s.CodeLength > 0 {
		return s.CodeLength
	}
	return DefaultCodeLength
}

func (s *CodeService) ttl() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

// Issue generates a fresh code for the user and purpose and queues its
// delivery mail. The code is returned so tests (and trusted internal
// callers) can use it; the HTTP layer never exposes it.
func (s *CodeService) Issue(ctx context.Context, user domain.User, purpose domain.CodePurpose) (string, error) {
	code, err := cryptox.GenerateNumericCode(s.length())
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := time.Now().UTC()
	rec := domain.OneTimeCode{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := s.Store.OneTimeCodes().CreateOneTimeCode(ctx, rec); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	s.Queue.Enqueue(notify.JobOneTimeCode, notify.CodePayload{
		Email:   user.Email,
		Code:    code,
		Purpose: purpose,
		Minutes: int(s.ttl().Minutes()),
	})
	return code, nil
}

// Redeem consumes the code or fails with ErrInvalidOrExpiredCode. A
// wrong code, an expired code, and a replayed code are indistinguishable
// to the caller.
func (s *CodeService) Redeem(ctx context.Context, userID, code string, purpose domain.CodePurpose) error {
	ok, err := s.Store.OneTimeCodes().ConsumeOneTimeCode(ctx, userID, code, purpose, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("consume code: %w", err)
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}
	return nil
}
