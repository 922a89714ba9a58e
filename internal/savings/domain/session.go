package domain

import "time"

// Session is a single authenticated login tied to one device. The
// durable row is authoritative; a cache mirror with the access-token
// TTL serves as the fast validity check.
type Session struct {
	ID               string
	UserID           string
	DeviceID         string // Device.ID, not the client-chosen DeviceID
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	IsActive         bool
	LastUsedAt       time.Time
}

// TokenPair is what a successful login, registration, or rotation
// returns to the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // "Bearer"
}
