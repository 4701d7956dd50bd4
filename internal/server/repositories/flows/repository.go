// Package flows provides the PostgreSQL-backed repository for the two-step
// registration handshake and for login 2FA challenges.
package flows

import (
	"context"
	"time"

	"github.com/aximilate/ctrl/internal/server/models"
)

type Repository interface {
	CreateRegistration(ctx context.Context, token, email string, ttl time.Duration) error
	// GetRegistration returns the unexpired flow for token, or common.ErrorNotFound.
	GetRegistration(ctx context.Context, token string) (*models.RegistrationFlow, error)
	SetRegistrationPassword(ctx context.Context, token, passwordHash string) error
	DeleteRegistration(ctx context.Context, token string) error

	CreateChallenge(ctx context.Context, id string, userID int64, code string, ttl time.Duration) error
	// GetChallenge returns the unconsumed, unexpired challenge, or
	// common.ErrorNotFound. It does not consume.
	GetChallenge(ctx context.Context, id string) (*models.LoginChallenge, error)
	// ConsumeChallenge atomically consumes the unconsumed, unexpired
	// challenge and returns it; common.ErrorNotFound when no such row.
	ConsumeChallenge(ctx context.Context, id string) (*models.LoginChallenge, error)
}
