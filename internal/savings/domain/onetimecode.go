package domain

import "time"

// CodePurpose scopes a one-time code to the operation it steps up.
type CodePurpose string

const (
	PurposeLogin              CodePurpose = "LOGIN"
	PurposeTransaction        CodePurpose = "TRANSACTION"
	PurposeDeviceVerification CodePurpose = "DEVICE_VERIFICATION"
	PurposeEmailVerification  CodePurpose = "EMAIL_VERIFICATION"
)

// OneTimeCode is a short numeric step-up code. Consumption flips
// IsUsed exactly once; expired and used codes are swept periodically.
type OneTimeCode struct {
	ID        string
	UserID    string
	Code      string
	Purpose   CodePurpose
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}
