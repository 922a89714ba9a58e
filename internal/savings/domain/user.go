package domain

import "time"

// Role controls what a user may do and how device trust is applied to
// their logins.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2 encoded
	FirstName    string
	LastName     string
	Role         Role
	IsVerified   bool // email verified
	IsActive     bool // flipped off on lockout; never hard-deleted
	PINHash      string // optional argon2-encoded transaction PIN
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPIN reports whether the user has set a transaction PIN, which
// gates large transactions through the pending confirmation flow.
func (u User) HasPIN() bool { return u.PINHash != "" }
