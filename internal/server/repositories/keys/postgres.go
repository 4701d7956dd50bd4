package keys

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Upsert(ctx context.Context, bundle *models.KeyBundle) error {
	pool, err := json.Marshal(bundle.OneTimePrekeys)
	if err != nil {
		return fmt.Errorf("marshal prekeys: %w", err)
	}
	query := `
		INSERT INTO user_keys (user_id, identity_public, signed_prekey_public, signed_prekey_signature, one_time_prekeys)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			identity_public = EXCLUDED.identity_public,
			signed_prekey_public = EXCLUDED.signed_prekey_public,
			signed_prekey_signature = EXCLUDED.signed_prekey_signature,
			one_time_prekeys = EXCLUDED.one_time_prekeys,
			updated_at = now()
	`
	_, err = r.db.ExecContext(ctx, query, bundle.UserID,
		bundle.IdentityPublicKey, bundle.SignedPrekeyPublic, bundle.SignedPrekeySignature, pool)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID int64) (*models.KeyBundle, error) {
	query := `
		SELECT user_id, identity_public, signed_prekey_public, signed_prekey_signature, one_time_prekeys, created_at, updated_at
		FROM user_keys
		WHERE user_id = $1
	`
	return r.scanBundle(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID int64) (*models.KeyBundle, error) {
	query := `
		SELECT user_id, identity_public, signed_prekey_public, signed_prekey_signature, one_time_prekeys, created_at, updated_at
		FROM user_keys
		WHERE user_id = $1
		FOR UPDATE
	`
	return r.scanBundle(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) scanBundle(row *sql.Row) (*models.KeyBundle, error) {
	b := &models.KeyBundle{}
	var pool []byte
	err := row.Scan(&b.UserID, &b.IdentityPublicKey, &b.SignedPrekeyPublic,
		&b.SignedPrekeySignature, &pool, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(pool, &b.OneTimePrekeys); err != nil {
		return nil, fmt.Errorf("unmarshal prekeys: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) SetPrekeys(ctx context.Context, userID int64, prekeys []string) error {
	if prekeys == nil {
		prekeys = []string{}
	}
	pool, err := json.Marshal(prekeys)
	if err != nil {
		return fmt.Errorf("marshal prekeys: %w", err)
	}
	query := `UPDATE user_keys SET one_time_prekeys = $2, updated_at = now() WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, pool); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
