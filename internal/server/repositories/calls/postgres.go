package calls

import (
	"context"
	"fmt"

	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, log *models.CallLog) error {
	query := `
		INSERT INTO call_logs (id, user_id, peer_user_id, direction, status, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, now()), $7)
		RETURNING started_at
	`
	var startedAt any
	if !log.StartedAt.IsZero() {
		startedAt = log.StartedAt
	}
	err := r.db.QueryRowContext(ctx, query,
		log.ID, log.UserID, log.PeerUserID, log.Direction, log.Status,
		startedAt, log.EndedAt).Scan(&log.StartedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]models.CallLog, error) {
	query := `
		SELECT id, user_id, peer_user_id, direction, status, started_at, ended_at
		FROM call_logs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var logs []models.CallLog
	for rows.Next() {
		var l models.CallLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.PeerUserID, &l.Direction,
			&l.Status, &l.StartedAt, &l.EndedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return logs, nil
}
