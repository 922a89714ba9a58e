package jwtx_test

import (
	"testing"
	"time"

	"github.com/acornbank/acorn/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *jwtx.Codec {
	return jwtx.NewCodec("acorn-test", []byte("access-secret"), []byte("refresh-secret"))
}

func TestAccessRoundTrip(t *testing.T) {
	c := newTestCodec()

	token, err := c.SignAccess("user-1", "device-1", "session-1", time.Now())
	require.NoError(t, err)

	claims, err := c.VerifyAccess(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "device-1", claims.DeviceID)
	require.Equal(t, "session-1", claims.SessionID)
}

func TestRefreshRoundTrip(t *testing.T) {
	c := newTestCodec()

	token, err := c.SignRefresh("user-1", "session-1", time.Now())
	require.NoError(t, err)

	claims, err := c.VerifyRefresh(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "session-1", claims.SessionID)
}

func TestSecretsAreIndependent(t *testing.T) {
	c := newTestCodec()

	// A refresh token must never validate as an access token, and
	// vice versa.
	refresh, err := c.SignRefresh("user-1", "session-1", time.Now())
	require.NoError(t, err)
	_, err = c.VerifyAccess(refresh)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)

	access, err := c.SignAccess("user-1", "device-1", "session-1", time.Now())
	require.NoError(t, err)
	_, err = c.VerifyRefresh(access)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestRepeatedMintsAreDistinct(t *testing.T) {
	c := newTestCodec()
	now := time.Now()

	// Timestamps are second-granularity, so distinctness has to come
	// from the jti, not the clock.
	a1, err := c.SignAccess("user-1", "device-1", "session-1", now)
	require.NoError(t, err)
	a2, err := c.SignAccess("user-1", "device-1", "session-1", now)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)

	r1, err := c.SignRefresh("user-1", "session-1", now)
	require.NoError(t, err)
	r2, err := c.SignRefresh("user-1", "session-1", now)
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)

	claims, err := c.VerifyRefresh(r1)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)
}

func TestExpiredTokenRejected(t *testing.T) {
	c := newTestCodec()

	token, err := c.SignAccess("user-1", "device-1", "session-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = c.VerifyAccess(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestWrongIssuerRejected(t *testing.T) {
	other := jwtx.NewCodec("someone-else", []byte("access-secret"), []byte("refresh-secret"))
	token, err := other.SignAccess("user-1", "device-1", "session-1", time.Now())
	require.NoError(t, err)

	_, err = newTestCodec().VerifyAccess(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestTamperedTokenRejected(t *testing.T) {
	c := newTestCodec()
	token, err := c.SignAccess("user-1", "device-1", "session-1", time.Now())
	require.NoError(t, err)

	_, err = c.VerifyAccess(token + "x")
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}
