// Package messages provides the PostgreSQL-backed repository for chat
// messages, per-user hides, and emoji reactions.
package messages

import (
	"context"
	"time"

	"github.com/aximilate/ctrl/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// UpdateText sets the new plaintext and stamps edited_at, guarded by
	// sender ownership. Returns common.ErrorNotFound when no row matched.
	UpdateText(ctx context.Context, id string, senderID int64, text string) (*models.Message, error)
	// Delete removes the message for everyone, guarded by sender ownership.
	Delete(ctx context.Context, id string, senderID int64) error
	// Hide records a per-user hide. Idempotent.
	Hide(ctx context.Context, id string, userID int64) error
	// ListForUser returns up to limit messages of the chat visible to the
	// viewer, newest first, strictly older than before when non-zero.
	ListForUser(ctx context.Context, chatID string, userID int64, before time.Time, limit int) ([]models.Message, error)
	// ToggleReaction removes the (message, user, emoji) row if present, else
	// inserts it. Reports whether the reaction is present afterwards.
	ToggleReaction(ctx context.Context, messageID string, userID int64, emoji string) (added bool, err error)
	ReactionsFor(ctx context.Context, messageID string) ([]models.Reaction, error)
	// Search matches visible text messages of the chat case-insensitively.
	Search(ctx context.Context, chatID string, userID int64, needle string, limit int) ([]models.Message, error)
	// SearchAll matches visible text messages across every chat the user
	// belongs to.
	SearchAll(ctx context.Context, userID int64, needle string, limit int) ([]models.Message, error)
}
