package codes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, email string, purpose models.CodePurpose, code string, ttl time.Duration) error {
	query := `
		INSERT INTO verification_codes (email, purpose, code, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, email, purpose, code, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindNewestValid(ctx context.Context, email string, purpose models.CodePurpose) (*models.VerificationCode, error) {
	query := `
		SELECT id, email, purpose, code, expires_at, consumed_at, created_at
		FROM verification_codes
		WHERE email = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
	`
	c := &models.VerificationCode{}
	err := r.db.QueryRowContext(ctx, query, email, purpose).Scan(
		&c.ID, &c.Email, &c.Purpose, &c.Code, &c.ExpiresAt, &c.ConsumedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id int64) error {
	query := `UPDATE verification_codes SET consumed_at = now() WHERE id = $1 AND consumed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
