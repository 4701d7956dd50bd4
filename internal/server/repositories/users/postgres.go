package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, username, display_name, avatar_url, bio, birth_date, password_hash, status, last_seen_at, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.DisplayName,
		&user.AvatarURL, &user.Bio, &user.BirthDate, &user.PasswordHash,
		&user.Status, &user.LastSeenAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// isUniqueViolation maps a pgx unique-constraint error to common.ErrorConflict.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// NextFreeID scans for the first gap in the id sequence, falling back to
// max+1 when the sequence is dense from 1.
func (r *PostgresRepository) NextFreeID(ctx context.Context) (int64, error) {
	query := `
		SELECT COALESCE(
			(SELECT MIN(u1.id) + 1
			 FROM users u1
			 LEFT JOIN users u2 ON u2.id = u1.id + 1
			 WHERE u2.id IS NULL),
			1)
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	// An empty table or a gap at position 1 both mean id 1 is free.
	var hasOne bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = 1)`).Scan(&hasOne); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	if !hasOne {
		return 1, nil
	}
	return id, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, username, display_name, avatar_url, bio, birth_date, password_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.DisplayName, user.AvatarURL,
		user.Bio, user.BirthDate, user.PasswordHash, user.Status).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) error {
	query := `
		UPDATE users
		SET display_name = COALESCE($2, display_name),
		    username = COALESCE($3, username),
		    avatar_url = COALESCE($4, avatar_url),
		    bio = COALESCE($5, bio),
		    birth_date = COALESCE($6, birth_date),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id,
		patch.DisplayName, patch.Username, patch.AvatarURL, patch.Bio, patch.BirthDate)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TouchLastSeen(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_seen_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListContacts(ctx context.Context, excludeUserID int64, query string, limit int) ([]models.UserCard, error) {
	q := `
		SELECT id, username, display_name, avatar_url, last_seen_at
		FROM users
		WHERE id != $1 AND status = 'active'
		  AND ($2 = '' OR username ILIKE '%' || $2 || '%' OR display_name ILIKE '%' || $2 || '%')
		ORDER BY display_name ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, q, excludeUserID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	cards := []models.UserCard{}
	for rows.Next() {
		var c models.UserCard
		if err := rows.Scan(&c.ID, &c.Username, &c.DisplayName, &c.AvatarURL, &c.LastSeenAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return cards, nil
}

func (r *PostgresRepository) GetPrivacy(ctx context.Context, userID int64) (*models.UserPrivacy, error) {
	query := `
		SELECT user_id, avatar_visibility, bio_visibility, last_seen_visibility
		FROM user_privacy WHERE user_id = $1
	`
	p := &models.UserPrivacy{}
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&p.UserID, &p.AvatarVisibility, &p.BioVisibility, &p.LastSeenVisibility)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) UpsertPrivacy(ctx context.Context, p *models.UserPrivacy) error {
	query := `
		INSERT INTO user_privacy (user_id, avatar_visibility, bio_visibility, last_seen_visibility)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET avatar_visibility = excluded.avatar_visibility,
		    bio_visibility = excluded.bio_visibility,
		    last_seen_visibility = excluded.last_seen_visibility
	`
	if _, err := r.db.ExecContext(ctx, query,
		p.UserID, p.AvatarVisibility, p.BioVisibility, p.LastSeenVisibility); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
