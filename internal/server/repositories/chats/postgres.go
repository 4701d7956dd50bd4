package chats

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

func (r *PostgresRepository) CreateDirect(ctx context.Context, id, directKey string) (bool, error) {
	query := `
		INSERT INTO chats (id, type, direct_key)
		VALUES ($1, 'direct', $2)
		ON CONFLICT (direct_key) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, id, directKey)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected == 1, nil
}

func (r *PostgresRepository) GetByDirectKey(ctx context.Context, directKey string) (*models.Chat, error) {
	query := `
		SELECT id, type, title, direct_key, created_at, updated_at
		FROM chats
		WHERE direct_key = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, directKey))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	query := `
		SELECT id, type, title, direct_key, created_at, updated_at
		FROM chats
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Chat, error) {
	c := &models.Chat{}
	err := row.Scan(&c.ID, &c.Type, &c.Title, &c.DirectKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, chatID string, userID int64) error {
	query := `
		INSERT INTO chat_members (chat_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, chatID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, chatID string, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) GetMember(ctx context.Context, chatID string, userID int64) (*models.ChatMember, error) {
	query := `
		SELECT chat_id, user_id, role, muted, pinned, favorite, archived
		FROM chat_members
		WHERE chat_id = $1 AND user_id = $2
	`
	m := &models.ChatMember{}
	err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(
		&m.ChatID, &m.UserID, &m.Role, &m.Muted, &m.Pinned, &m.Favorite, &m.Archived)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) UpdatePreferences(ctx context.Context, chatID string, userID int64, prefs *models.ChatPreferences) error {
	query := `
		UPDATE chat_members
		SET muted = COALESCE($3, muted),
		    pinned = COALESCE($4, pinned),
		    favorite = COALESCE($5, favorite),
		    archived = COALESCE($6, archived)
		WHERE chat_id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, chatID, userID,
		prefs.Muted, prefs.Pinned, prefs.Favorite, prefs.Archived)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID int64, tab models.ChatListTab) ([]models.ChatSummary, error) {
	// Home hides archived chats, the other tabs filter on their flag.
	var tabCond string
	switch tab {
	case models.ChatListTabFavorites:
		tabCond = "cm.favorite"
	case models.ChatListTabArchive:
		tabCond = "cm.archived"
	default:
		tabCond = "NOT cm.archived"
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.type, COALESCE(c.title, ''), c.updated_at,
		       cm.muted, cm.pinned, cm.favorite, cm.archived,
		       m.id, m.plaintext, m.message_type, m.sender_id, m.created_at
		FROM chats c
		JOIN chat_members cm ON cm.chat_id = c.id AND cm.user_id = $1
		LEFT JOIN LATERAL (
			SELECT id, plaintext, message_type, sender_id, created_at
			FROM messages
			WHERE chat_id = c.id
			  AND NOT EXISTS (
				SELECT 1 FROM message_hidden h
				WHERE h.message_id = messages.id AND h.user_id = $1
			  )
			ORDER BY created_at DESC
			LIMIT 1
		) m ON true
		WHERE %s
		ORDER BY cm.pinned DESC, c.updated_at DESC
	`, tabCond)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var summaries []models.ChatSummary
	for rows.Next() {
		var s models.ChatSummary
		var msgID, msgType sql.NullString
		var msgText sql.NullString
		var msgSender sql.NullInt64
		var msgCreated sql.NullTime
		if err := rows.Scan(&s.ID, &s.Type, &s.Title, &s.UpdatedAt,
			&s.Preferences.Muted, &s.Preferences.Pinned, &s.Preferences.Favorite, &s.Preferences.Archived,
			&msgID, &msgText, &msgType, &msgSender, &msgCreated); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if msgID.Valid {
			preview := &models.MessagePreview{
				ID:        msgID.String,
				Type:      models.MessageType(msgType.String),
				SenderID:  msgSender.Int64,
				CreatedAt: msgCreated.Time,
			}
			if msgText.Valid {
				preview.Text = &msgText.String
			}
			s.LastMessage = preview
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return summaries, nil
}

func (r *PostgresRepository) DirectPeerID(ctx context.Context, chatID string, userID int64) (int64, error) {
	query := `
		SELECT user_id FROM chat_members
		WHERE chat_id = $1 AND user_id <> $2
		LIMIT 1
	`
	var peerID int64
	err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&peerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return peerID, nil
}

func (r *PostgresRepository) TouchUpdatedAt(ctx context.Context, chatID string) error {
	query := `UPDATE chats SET updated_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, chatID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
