package service

import (
	"context"
	"fmt"
	"time"

	"github.com/acornbank/acorn/internal/savings/cache"
	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/pkg/cryptox"
	"github.com/acornbank/acorn/pkg/jwtx"
)

// TokenService mints and rotates the access/refresh token pair. Raw
// refresh tokens are never stored anywhere: only a SHA-256 fingerprint
// goes into the cache, so a cache dump cannot replay a login.
type TokenService struct {
	Codec    *jwtx.Codec
	Cache    cache.Cache
	Sessions *SessionService
}

func refreshKey(userID, fingerprint string) string {
	return "refresh:" + userID + ":" + fingerprint
}

// Issue mints a token pair for an open session and registers the
// refresh fingerprint.
func (s *TokenService) Issue(ctx context.Context, userID, deviceID, sessionID string) (domain.TokenPair, error) {
	now := time.Now().UTC()

	access, err := s.Codec.SignAccess(userID, deviceID, sessionID, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.Codec.SignRefresh(userID, sessionID, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	fp := cryptox.FingerprintToken(refresh)
	if err := s.Cache.Set(ctx, refreshKey(userID, fp), []byte(sessionID), s.Codec.RefreshTTL); err != nil {
		return domain.TokenPair{}, fmt.Errorf("register refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}, nil
}

// Authenticate validates an access token and confirms the session
// behind it is still alive. This is the per-request check.
func (s *TokenService) Authenticate(ctx context.Context, accessToken string) (jwtx.AccessClaims, error) {
	claims, err := s.Codec.VerifyAccess(accessToken)
	if err != nil {
		return jwtx.AccessClaims{}, ErrInvalidOrExpiredToken
	}
	ok, err := s.Sessions.IsValid(ctx, claims.SessionID)
	if err != nil {
		return jwtx.AccessClaims{}, err
	}
	if !ok {
		return jwtx.AccessClaims{}, ErrSessionInvalid
	}
	return claims, nil
}

// Rotate exchanges a valid refresh token for a fresh pair. The old
// fingerprint is removed first, so each refresh token works exactly
// once; a replay of a superseded token fails the registry check.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.Codec.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidOrExpiredToken
	}
	userID := claims.Subject

	fp := cryptox.FingerprintToken(refreshToken)
	_, ok, err := s.Cache.Get(ctx, refreshKey(userID, fp))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("check refresh registry: %w", err)
	}
	if !ok {
		return domain.TokenPair{}, ErrInvalidOrExpiredToken
	}

	// The durable session decides; a revoked session kills rotation even
	// while the fingerprint is still registered.
	sess, err := s.Sessions.Extend(ctx, claims.SessionID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Cache.Delete(ctx, refreshKey(userID, fp)); err != nil {
		return domain.TokenPair{}, fmt.Errorf("retire refresh token: %w", err)
	}
	return s.Issue(ctx, userID, sess.DeviceID, sess.ID)
}
