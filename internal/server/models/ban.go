package models

import "time"

// Ban blocks a user id, an IP, or a device fingerprint (at least one set).
// A ban is active iff it has no expiry or the expiry is in the future;
// the most recent active ban per scope wins. Rows are inserted by the
// external moderation surface; this server only reads them.
type Ban struct {
	ID          int64
	UserID      *int64
	IP          *string
	Fingerprint *string
	Reason      string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}
