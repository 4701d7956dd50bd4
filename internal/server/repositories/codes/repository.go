// Package codes provides the PostgreSQL-backed repository for emailed
// verification codes. Issuing never invalidates prior codes; only the newest
// unconsumed, unexpired code for a scope verifies.
package codes

import (
	"context"
	"time"

	"github.com/aximilate/ctrl/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, email string, purpose models.CodePurpose, code string, ttl time.Duration) error
	// FindNewestValid returns the most recently issued unconsumed, unexpired
	// code row for (email, purpose). common.ErrorNotFound when none exists.
	FindNewestValid(ctx context.Context, email string, purpose models.CodePurpose) (*models.VerificationCode, error)
	Consume(ctx context.Context, id int64) error
}
