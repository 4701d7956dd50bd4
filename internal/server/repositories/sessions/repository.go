// Package sessions provides the PostgreSQL-backed repository for device
// sessions and refresh-token rotation.
package sessions

import (
	"context"
	"time"

	"github.com/aximilate/ctrl/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	// FindActiveByRefreshHash returns the unrevoked, unexpired session whose
	// stored hash matches. common.ErrorNotFound otherwise.
	FindActiveByRefreshHash(ctx context.Context, refreshHash string) (*models.Session, error)
	// Rotate atomically swaps the stored refresh hash and extends the expiry,
	// guarded by the previous hash: of two concurrent replays at most one
	// observes rotated=true.
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (rotated bool, err error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeForUser(ctx context.Context, sessionID string, userID int64) error
	ListByUser(ctx context.Context, userID int64) ([]models.Session, error)
}
