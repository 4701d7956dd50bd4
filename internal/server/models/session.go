package models

import "time"

// Session is one authenticated device. Only the SHA-256 of the current
// refresh token is stored; the raw value exists client-side only.
// Revocation is monotonic: a revoked session is never reactivated.
type Session struct {
	ID          string
	UserID      int64
	RefreshHash string
	UserAgent   *string
	IP          *string
	Fingerprint *string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ConnectionContext carries per-request client metadata captured at session
// creation and consulted by the ban guard.
type ConnectionContext struct {
	UserAgent   string
	IP          string
	Fingerprint string
}
