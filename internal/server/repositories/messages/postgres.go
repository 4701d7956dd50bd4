package messages

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

const messageColumns = "id, chat_id, sender_id, plaintext, ciphertext, message_type, reply_to_id, edited_at, created_at"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Plaintext, &m.Ciphertext,
		&m.Type, &m.ReplyToID, &m.EditedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, plaintext, ciphertext, message_type, reply_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		msg.ID, msg.ChatID, msg.SenderID, msg.Plaintext, msg.Ciphertext,
		msg.Type, msg.ReplyToID).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM messages WHERE id = $1`, messageColumns)
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) UpdateText(ctx context.Context, id string, senderID int64, text string) (*models.Message, error) {
	query := fmt.Sprintf(`
		UPDATE messages
		SET plaintext = $3, edited_at = now()
		WHERE id = $1 AND sender_id = $2
		RETURNING %s
	`, messageColumns)
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id, senderID, text))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string, senderID int64) error {
	query := `DELETE FROM messages WHERE id = $1 AND sender_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, senderID)
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

func (r *PostgresRepository) Hide(ctx context.Context, id string, userID int64) error {
	query := `
		INSERT INTO message_hidden (message_id, user_id, hidden_at)
		VALUES ($1, $2, now())
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, chatID string, userID int64, before time.Time, limit int) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE chat_id = $1
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		  AND NOT EXISTS (
			SELECT 1 FROM message_hidden h
			WHERE h.message_id = messages.id AND h.user_id = $2
		  )
		ORDER BY created_at DESC
		LIMIT $4
	`, messageColumns)

	var beforeArg any
	if !before.IsZero() {
		beforeArg = before
	}
	rows, err := r.db.QueryContext(ctx, query, chatID, userID, beforeArg, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *PostgresRepository) ToggleReaction(ctx context.Context, messageID string, userID int64, emoji string) (bool, error) {
	del := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`
	res, err := r.db.ExecContext(ctx, del, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	if affected > 0 {
		return false, nil
	}

	ins := `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, ins, messageID, userID, emoji); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) ReactionsFor(ctx context.Context, messageID string) ([]models.Reaction, error) {
	query := `
		SELECT user_id, emoji FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var reactions []models.Reaction
	for rows.Next() {
		var re models.Reaction
		if err := rows.Scan(&re.UserID, &re.Emoji); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		reactions = append(reactions, re)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return reactions, nil
}

func (r *PostgresRepository) Search(ctx context.Context, chatID string, userID int64, needle string, limit int) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE chat_id = $1
		  AND plaintext ILIKE '%%' || $3 || '%%'
		  AND NOT EXISTS (
			SELECT 1 FROM message_hidden h
			WHERE h.message_id = messages.id AND h.user_id = $2
		  )
		ORDER BY created_at DESC
		LIMIT $4
	`, messageColumns)

	rows, err := r.db.QueryContext(ctx, query, chatID, userID, needle, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *PostgresRepository) SearchAll(ctx context.Context, userID int64, needle string, limit int) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE plaintext ILIKE '%%' || $2 || '%%'
		  AND EXISTS (
			SELECT 1 FROM chat_members cm
			WHERE cm.chat_id = messages.chat_id AND cm.user_id = $1
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM message_hidden h
			WHERE h.message_id = messages.id AND h.user_id = $1
		  )
		ORDER BY created_at DESC
		LIMIT $3
	`, messageColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, needle, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return messages, nil
}
