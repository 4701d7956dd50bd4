// Package chats provides the PostgreSQL-backed repository for conversations
// and memberships. Direct-chat uniqueness is enforced by the direct_key
// unique constraint, not by application-level locking.
package chats

import (
	"context"

	"github.com/aximilate/ctrl/internal/server/models"
)

type Repository interface {
	// CreateDirect inserts a direct chat with ON CONFLICT (direct_key)
	// DO NOTHING and reports whether the row was actually inserted. When it
	// was not, the caller re-reads by key to find the winner.
	CreateDirect(ctx context.Context, id, directKey string) (created bool, err error)
	GetByDirectKey(ctx context.Context, directKey string) (*models.Chat, error)
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	AddMember(ctx context.Context, chatID string, userID int64) error
	IsMember(ctx context.Context, chatID string, userID int64) (bool, error)
	GetMember(ctx context.Context, chatID string, userID int64) (*models.ChatMember, error)
	// UpdatePreferences applies a partial flags patch; nil fields keep their
	// stored value.
	UpdatePreferences(ctx context.Context, chatID string, userID int64, prefs *models.ChatPreferences) error
	// ListForUser returns the viewer's chat summaries for the given tab,
	// sorted pinned-first then by chat activity, without peer cards or
	// last-message hydration beyond the preview columns.
	ListForUser(ctx context.Context, userID int64, tab models.ChatListTab) ([]models.ChatSummary, error)
	// DirectPeerID resolves the other member of a direct chat.
	DirectPeerID(ctx context.Context, chatID string, userID int64) (int64, error)
	TouchUpdatedAt(ctx context.Context, chatID string) error
}
