package domain

import "time"

// Device is one entry in a user's trusted-device allow list. The
// (UserID, DeviceID) pair is unique; DeviceID is chosen by the client
// installation.
type Device struct {
	ID         string
	UserID     string
	DeviceID   string
	Name       string
	Platform   string
	IsVerified bool
	LastUsedAt time.Time
	CreatedAt  time.Time
}

// DeviceMeta is the registration-time metadata captured from the
// excluded HTTP layer.
type DeviceMeta struct {
	Name     string
	Platform string
}
