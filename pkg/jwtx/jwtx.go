// Package jwtx signs and verifies the two bearer-token classes used by
// the savings core: short-lived access tokens bound to a session and
// device, and longer-lived refresh tokens bound to a session only.
//
// Each class is signed with its own HMAC secret so that a leaked
// refresh secret cannot be used to forge access tokens.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/acornbank/acorn/pkg/idx"
)

// Default token lifetimes. Access tokens stay short for security;
// refresh tokens carry the login across access expiries.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken reports a token that failed signature, issuer, or
// expiry validation. Callers get no further detail on purpose.
var ErrInvalidToken = errors.New("jwtx: invalid or expired token")

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	jwt.RegisteredClaims

	// SessionID ties the token to one login session.
	SessionID string `json:"sid"`

	// DeviceID identifies the installation the session was opened from.
	DeviceID string `json:"did"`
}

// RefreshClaims are the claims carried by a refresh token. Device
// binding is re-derived from the session on rotation, so the refresh
// token only names the user and session.
type RefreshClaims struct {
	jwt.RegisteredClaims

	SessionID string `json:"sid"`
}

// Codec signs and verifies both token classes.
type Codec struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// NewCodec builds a Codec with the default lifetimes.
func NewCodec(issuer string, accessSecret, refreshSecret []byte) *Codec {
	return &Codec{
		Issuer:        issuer,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     DefaultAccessTokenTTL,
		RefreshTTL:    DefaultRefreshTokenTTL,
	}
}

// SignAccess mints an access token for (user, device, session).
func (c *Codec) SignAccess(userID, deviceID, sessionID string, now time.Time) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: c.registered(userID, now, c.AccessTTL),
		SessionID:        sessionID,
		DeviceID:         deviceID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.AccessSecret)
}

// SignRefresh mints a refresh token for (user, session).
func (c *Codec) SignRefresh(userID, sessionID string, now time.Time) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: c.registered(userID, now, c.RefreshTTL),
		SessionID:        sessionID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.RefreshSecret)
}

// VerifyAccess validates an access token and returns its claims.
func (c *Codec) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := c.verify(token, &claims, c.AccessSecret); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims.
func (c *Codec) VerifyRefresh(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.verify(token, &claims, c.RefreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	return claims, nil
}

// registered builds the shared claim set. The jti makes every mint
// unique: timestamps are second-granularity, so without it two tokens
// for the same subject signed in the same second would be
// byte-identical and a rotated-out refresh token would survive its own
// replacement.
func (c *Codec) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        idx.New().String(),
		Issuer:    c.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.Issuer),
		jwt.WithIssuedAt(),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
