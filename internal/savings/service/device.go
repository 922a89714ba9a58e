package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/pkg/idx"
)

// DeviceService maintains the per-user trusted-device allow list.
// Clients must verify a new device before it can carry a login; roles
// in AutoTrustRoles (admins by default) skip that step.
type DeviceService struct {
	Store store.Store

	AutoTrustRoles []domain.Role
}

func (s *DeviceService) autoTrusted(role domain.Role) bool {
	if s.AutoTrustRoles == nil {
		return role == domain.RoleAdmin
	}
	return slices.Contains(s.AutoTrustRoles, role)
}

// Register records (or refreshes) a device for the user. Repeat
// registration updates the metadata but never un-verifies the device.
func (s *DeviceService) Register(ctx context.Context, user domain.User, deviceID string, meta domain.DeviceMeta) (domain.Device, error) {
	now := time.Now().UTC()
	dev, err := s.Store.Devices().UpsertDevice(ctx, domain.Device{
		ID:         idx.New().String(),
		UserID:     user.ID,
		DeviceID:   deviceID,
		Name:       meta.Name,
		Platform:   meta.Platform,
		IsVerified: s.autoTrusted(user.Role),
		LastUsedAt: now,
		CreatedAt:  now,
	})
	if err != nil {
		return domain.Device{}, fmt.Errorf("register device: %w", err)
	}
	return dev, nil
}

// Verify marks a registered device as trusted, after the user redeems
// a device-verification code.
func (s *DeviceService) Verify(ctx context.Context, userID, deviceID string) error {
	err := s.Store.Devices().MarkDeviceVerified(ctx, userID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("verify device: %w", err)
	}
	return nil
}

// Authorize gates a login on device trust. Unknown devices are
// registered on the spot; unless the user's role is auto-trusted, an
// unverified device rejects the login with ErrUntrustedDevice.
func (s *DeviceService) Authorize(ctx context.Context, user domain.User, deviceID string, meta domain.DeviceMeta) (domain.Device, error) {
	dev, err := s.Store.Devices().GetDevice(ctx, user.ID, deviceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		dev, err = s.Register(ctx, user, deviceID, meta)
		if err != nil {
			return domain.Device{}, err
		}
	case err != nil:
		return domain.Device{}, fmt.Errorf("look up device: %w", err)
	}

	if !dev.IsVerified && !s.autoTrusted(user.Role) {
		return domain.Device{}, ErrUntrustedDevice
	}
	if err := s.Store.Devices().TouchDevice(ctx, dev.ID, time.Now().UTC()); err != nil {
		return domain.Device{}, fmt.Errorf("touch device: %w", err)
	}
	return dev, nil
}

// List returns the user's registered devices, most recently used first.
func (s *DeviceService) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.Store.Devices().ListUserDevices(ctx, userID)
}
