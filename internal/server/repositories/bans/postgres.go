package bans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindActive(ctx context.Context, scope Scope, value string) (*models.Ban, error) {
	var column string
	switch scope {
	case ScopeUser:
		column = "user_id"
	case ScopeIP:
		column = "ip"
	case ScopeFingerprint:
		column = "fingerprint"
	default:
		return nil, fmt.Errorf("unknown ban scope %q: %w", scope, common.ErrorInternal)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, ip, fingerprint, reason, created_at, expires_at
		FROM bans
		WHERE %s = $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT 1
	`, column)

	b := &models.Ban{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&b.ID, &b.UserID, &b.IP, &b.Fingerprint, &b.Reason, &b.CreatedAt, &b.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}
