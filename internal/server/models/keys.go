package models

import "time"

// KeyBundle is a user's published key material for establishing encrypted
// sessions. Publishing replaces the whole bundle including the one-time
// prekey pool; the pool is drained FIFO, one prekey per requester.
type KeyBundle struct {
	UserID                int64
	IdentityPublicKey     string
	SignedPrekeyPublic    string
	SignedPrekeySignature string
	OneTimePrekeys        []string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PrekeyBundle is the response served to a session initiator. OneTimePrekey
// is nil when the stored pool has run dry, which is a valid response: the
// client falls back to a prekey-less handshake.
type PrekeyBundle struct {
	UserID                int64   `json:"userId"`
	IdentityPublicKey     string  `json:"identityPublicKey"`
	SignedPrekeyPublic    string  `json:"signedPrekeyPublic"`
	SignedPrekeySignature string  `json:"signedPrekeySignature"`
	OneTimePrekey         *string `json:"oneTimePrekey"`
}
