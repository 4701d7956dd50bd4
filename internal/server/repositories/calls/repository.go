// Package calls provides the PostgreSQL-backed repository for per-user call
// history entries.
package calls

import (
	"context"

	"github.com/aximilate/ctrl/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, log *models.CallLog) error
	// ListForUser returns up to limit of the user's call entries, newest
	// first.
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.CallLog, error)
}
