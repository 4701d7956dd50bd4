package flows

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

func (r *PostgresRepository) CreateRegistration(ctx context.Context, token, email string, ttl time.Duration) error {
	query := `
		INSERT INTO registration_flows (token, email, code_verified_at, expires_at)
		VALUES ($1, $2, now(), $3)
	`
	if _, err := r.db.ExecContext(ctx, query, token, email, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetRegistration(ctx context.Context, token string) (*models.RegistrationFlow, error) {
	query := `
		SELECT token, email, code_verified_at, password_hash, created_at, expires_at
		FROM registration_flows
		WHERE token = $1 AND expires_at > now()
	`
	f := &models.RegistrationFlow{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&f.Token, &f.Email, &f.CodeVerifiedAt, &f.PasswordHash, &f.CreatedAt, &f.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) SetRegistrationPassword(ctx context.Context, token, passwordHash string) error {
	query := `UPDATE registration_flows SET password_hash = $2 WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token, passwordHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteRegistration(ctx context.Context, token string) error {
	query := `DELETE FROM registration_flows WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateChallenge(ctx context.Context, id string, userID int64, code string, ttl time.Duration) error {
	query := `
		INSERT INTO login_challenges (id, user_id, code, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, id, userID, code, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetChallenge(ctx context.Context, id string) (*models.LoginChallenge, error) {
	query := `
		SELECT id, user_id, code, expires_at, consumed_at, created_at
		FROM login_challenges
		WHERE id = $1 AND consumed_at IS NULL AND expires_at > now()
	`
	c := &models.LoginChallenge{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.ConsumedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ConsumeChallenge(ctx context.Context, id string) (*models.LoginChallenge, error) {
	query := `
		UPDATE login_challenges
		SET consumed_at = now()
		WHERE id = $1 AND consumed_at IS NULL AND expires_at > now()
		RETURNING id, user_id, code, expires_at, consumed_at, created_at
	`
	c := &models.LoginChallenge{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.ConsumedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}
