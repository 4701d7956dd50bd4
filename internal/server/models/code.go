package models

import "time"

// CodePurpose scopes a verification code to the flow it belongs to.
type CodePurpose string

const (
	CodePurposeRegister CodePurpose = "register"
	CodePurposeLogin    CodePurpose = "login"
)

// VerificationCode is a short numeric one-time code emailed to the user.
// Several codes may coexist per (email, purpose); only the newest unconsumed,
// unexpired one verifies.
type VerificationCode struct {
	ID         int64
	Email      string
	Purpose    CodePurpose
	Code       string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// RegistrationFlow is the two-step registration handshake: code verified,
// then password set, then profile completed. Single-use, expires.
type RegistrationFlow struct {
	Token          string
	Email          string
	CodeVerifiedAt time.Time
	PasswordHash   *string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// LoginChallenge is the 2FA step created after a successful password check.
type LoginChallenge struct {
	ID         string
	UserID     int64
	Code       string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
