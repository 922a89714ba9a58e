package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/acornbank/acorn/internal/savings/cache"
	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/pkg/idx"
)

// SessionService owns the durable session records plus their cache
// mirror. The mirror keeps the hot-path validity check off the store;
// the store row remains the source of truth, so a missing mirror
// entry falls through to it rather than failing the session.
type SessionService struct {
	Store store.Store
	Cache cache.Cache

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type sessionMirror struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

func sessionKey(id string) string { return "session:" + id }

// Create opens a session for a user/device pair and mirrors it into
// the cache for the lifetime of the access token.
func (s *SessionService) Create(ctx context.Context, userID, deviceID string) (domain.Session, error) {
	now := time.Now().UTC()
	sess := domain.Session{
		ID:               idx.New().String(),
		UserID:           userID,
		DeviceID:         deviceID,
		IsActive:         true,
		IssuedAt:         now,
		AccessExpiresAt:  now.Add(s.AccessTTL),
		RefreshExpiresAt: now.Add(s.RefreshTTL),
		LastUsedAt:       now,
	}

	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.mirror(ctx, sess)
	return sess, nil
}

// IsValid reports whether a session can still back an access token.
// Cache hits are trusted; on a miss the durable record decides and the
// mirror is repopulated.
func (s *SessionService) IsValid(ctx context.Context, sessionID string) (bool, error) {
	if _, ok, err := s.Cache.Get(ctx, sessionKey(sessionID)); err == nil && ok {
		return true, nil
	}

	sess, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load session: %w", err)
	}

	now := time.Now().UTC()
	if !sess.IsActive || now.After(sess.AccessExpiresAt) {
		return false, nil
	}
	s.mirror(ctx, sess)
	return true, nil
}

// Extend pushes the session's expiry windows forward after a token
// rotation and refreshes the mirror.
func (s *SessionService) Extend(ctx context.Context, sessionID string) (domain.Session, error) {
	now := time.Now().UTC()
	sess, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionInvalid
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !sess.IsActive || now.After(sess.RefreshExpiresAt) {
		return domain.Session{}, ErrSessionInvalid
	}

	sess.AccessExpiresAt = now.Add(s.AccessTTL)
	sess.RefreshExpiresAt = now.Add(s.RefreshTTL)
	sess.LastUsedAt = now
	if err := s.Store.Sessions().UpdateSessionExpiry(ctx, sessionID, sess.AccessExpiresAt, sess.RefreshExpiresAt, now); err != nil {
		return domain.Session{}, fmt.Errorf("extend session: %w", err)
	}
	s.mirror(ctx, sess)
	return sess, nil
}

// Revoke deactivates one session. The cache entry is deleted in the
// same call so the session cannot outlive revocation by a mirror TTL.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.Store.Sessions().RevokeSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}
	if err := s.Cache.Delete(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("drop session mirror: %w", err)
	}
	return nil
}

// RevokeAll deactivates every session a user holds, optionally keeping
// one alive (password changes keep the calling session).
func (s *SessionService) RevokeAll(ctx context.Context, userID, exceptSessionID string) error {
	revoked, err := s.Store.Sessions().RevokeUserSessions(ctx, userID, exceptSessionID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	for _, id := range revoked {
		if err := s.Cache.Delete(ctx, sessionKey(id)); err != nil {
			return fmt.Errorf("drop session mirror: %w", err)
		}
	}
	return nil
}

func (s *SessionService) mirror(ctx context.Context, sess domain.Session) {
	raw, err := json.Marshal(sessionMirror{UserID: sess.UserID, DeviceID: sess.DeviceID})
	if err != nil {
		return
	}
	// Best effort: a failed mirror write only costs a store lookup later.
	_ = s.Cache.Set(ctx, sessionKey(sess.ID), raw, s.AccessTTL)
}
