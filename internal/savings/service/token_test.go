package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acornbank/acorn/internal/savings/service"
)

func TestRotate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ada@example.com")

	fresh, err := e.tokens.Rotate(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, res.Tokens.RefreshToken, fresh.RefreshToken)
	require.NotEqual(t, res.Tokens.AccessToken, fresh.AccessToken)

	t.Run("new pair authenticates", func(t *testing.T) {
		_, err := e.tokens.Authenticate(ctx, fresh.AccessToken)
		require.NoError(t, err)
	})

	t.Run("superseded refresh token is dead", func(t *testing.T) {
		_, err := e.tokens.Rotate(ctx, res.Tokens.RefreshToken)
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})

	t.Run("garbage refresh token", func(t *testing.T) {
		_, err := e.tokens.Rotate(ctx, "not.a.token")
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})

	t.Run("access token cannot rotate", func(t *testing.T) {
		_, err := e.tokens.Rotate(ctx, fresh.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})
}

func TestLogoutKillsSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ada@example.com")

	claims, err := e.tokens.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, claims.SessionID))

	t.Run("access token rejected immediately", func(t *testing.T) {
		_, err := e.tokens.Authenticate(ctx, res.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrSessionInvalid)
	})

	t.Run("refresh token cannot resurrect the session", func(t *testing.T) {
		_, err := e.tokens.Rotate(ctx, res.Tokens.RefreshToken)
		require.ErrorIs(t, err, service.ErrSessionInvalid)
	})
}

func TestLogoutAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ada@example.com")

	claims, err := e.tokens.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	second, err := e.sessions.Create(ctx, res.User.ID, claims.DeviceID)
	require.NoError(t, err)

	require.NoError(t, e.auth.LogoutAll(ctx, res.User.ID))

	for _, id := range []string{claims.SessionID, second.ID} {
		ok, err := e.sessions.IsValid(ctx, id)
		require.NoError(t, err)
		require.False(t, ok)
	}
}
