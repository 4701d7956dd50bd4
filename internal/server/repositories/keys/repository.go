// Package keys provides the PostgreSQL-backed repository for published key
// bundles. The one-time prekey pool is stored as a JSONB array and must be
// drained under a row lock so concurrent fetches never hand out the same key.
package keys

import (
	"context"

	"github.com/aximilate/ctrl/internal/server/models"
)

type Repository interface {
	// Upsert replaces the whole bundle including the prekey pool.
	Upsert(ctx context.Context, bundle *models.KeyBundle) error
	Get(ctx context.Context, userID int64) (*models.KeyBundle, error)
	// GetForUpdate reads the bundle with FOR UPDATE. Call inside a
	// transaction, then SetPrekeys with the shrunk pool.
	GetForUpdate(ctx context.Context, userID int64) (*models.KeyBundle, error)
	SetPrekeys(ctx context.Context, userID int64, prekeys []string) error
}
