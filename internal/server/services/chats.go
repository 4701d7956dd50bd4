package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ChatService manages direct conversations: open-or-get by peer, the chat
// list, and per-member preferences.
type ChatService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewChatService(db *sql.DB, m repomanager.RepositoryManager) *ChatService {
	return &ChatService{db: db, repomanager: m}
}

// directKey builds the canonical "min:max" pair key.
func directKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// OpenDirect returns the direct chat between the two users, creating it if
// absent. Concurrent opens for the same pair converge on one chat through
// the direct_key unique constraint.
func (s *ChatService) OpenDirect(ctx context.Context, userID, peerID int64) (*models.Chat, bool, error) {
	if userID == peerID {
		return nil, false, fmt.Errorf("cannot open a chat with yourself: %w", common.ErrorValidation)
	}
	peer, err := s.repomanager.Users(s.db).GetByID(ctx, peerID)
	if err != nil {
		return nil, false, err
	}
	if peer.Status != models.UserStatusActive {
		return nil, false, common.ErrorNotFound
	}

	key := directKey(userID, peerID)
	var chat *models.Chat
	var created bool

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		chatsRepo := s.repomanager.Chats(tx)

		created, err = chatsRepo.CreateDirect(ctx, uuid.NewString(), key)
		if err != nil {
			return err
		}
		// Losing the insert race is fine: the winner's row is read back.
		chat, err = chatsRepo.GetByDirectKey(ctx, key)
		if err != nil {
			return err
		}
		if err := chatsRepo.AddMember(ctx, chat.ID, userID); err != nil {
			return err
		}
		return chatsRepo.AddMember(ctx, chat.ID, peerID)
	})
	if err != nil {
		return nil, false, err
	}
	return chat, created, nil
}

// List returns the viewer's chat list for the given tab, with peer cards
// hydrated for direct chats.
func (s *ChatService) List(ctx context.Context, userID int64, tab models.ChatListTab) ([]models.ChatSummary, error) {
	switch tab {
	case models.ChatListTabHome, models.ChatListTabFavorites, models.ChatListTabArchive:
	case "":
		tab = models.ChatListTabHome
	default:
		return nil, fmt.Errorf("unknown tab %q: %w", tab, common.ErrorValidation)
	}

	summaries, err := s.repomanager.Chats(s.db).ListForUser(ctx, userID, tab)
	if err != nil {
		return nil, err
	}

	for i := range summaries {
		if summaries[i].Type != models.ChatTypeDirect {
			continue
		}
		peerID, err := s.repomanager.Chats(s.db).DirectPeerID(ctx, summaries[i].ID, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}
		peer, err := s.repomanager.Users(s.db).GetByID(ctx, peerID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}
		card := peer.Card()
		summaries[i].Peer = &card
		if summaries[i].Title == "" {
			summaries[i].Title = peer.DisplayName
		}
	}
	return summaries, nil
}

// Search filters the viewer's full chat list by title or peer name.
func (s *ChatService) Search(ctx context.Context, userID int64, query string) ([]models.ChatSummary, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.ChatSummary{}, nil
	}

	home, err := s.List(ctx, userID, models.ChatListTabHome)
	if err != nil {
		return nil, err
	}
	archived, err := s.List(ctx, userID, models.ChatListTabArchive)
	if err != nil {
		return nil, err
	}

	matched := []models.ChatSummary{}
	for _, sum := range append(home, archived...) {
		if strings.Contains(strings.ToLower(sum.Title), query) {
			matched = append(matched, sum)
			continue
		}
		if sum.Peer != nil && sum.Peer.Username != nil &&
			strings.Contains(strings.ToLower(*sum.Peer.Username), query) {
			matched = append(matched, sum)
		}
	}
	return matched, nil
}

// Get returns the chat if the viewer is a member.
func (s *ChatService) Get(ctx context.Context, userID int64, chatID string) (*models.Chat, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.repomanager.Chats(s.db).GetByID(ctx, chatID)
}

// SetPreferences applies a partial flags patch for the viewer's membership.
func (s *ChatService) SetPreferences(ctx context.Context, userID int64, chatID string, prefs *models.ChatPreferences) (*models.ChatMember, error) {
	if err := s.repomanager.Chats(s.db).UpdatePreferences(ctx, chatID, userID, prefs); err != nil {
		return nil, err
	}
	return s.repomanager.Chats(s.db).GetMember(ctx, chatID, userID)
}

// MemberIDs returns both member ids of a chat the viewer belongs to.
func (s *ChatService) MemberIDs(ctx context.Context, userID int64, chatID string) ([]int64, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	peerID, err := s.repomanager.Chats(s.db).DirectPeerID(ctx, chatID, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return []int64{userID}, nil
		}
		return nil, err
	}
	return []int64{userID, peerID}, nil
}

const callHistoryLimit = 100

// LogCallParams is the call history entry input.
type LogCallParams struct {
	PeerUserID int64
	Direction  models.CallDirection
	Status     models.CallStatus
	StartedAt  time.Time
	EndedAt    *time.Time
}

// LogCall records a call history entry for the caller. Each side of a call
// logs its own row.
func (s *ChatService) LogCall(ctx context.Context, userID int64, params LogCallParams) (*models.CallLog, error) {
	if params.PeerUserID <= 0 {
		return nil, fmt.Errorf("peer required: %w", common.ErrorValidation)
	}
	if !params.Direction.Valid() {
		return nil, fmt.Errorf("unknown call direction %q: %w", params.Direction, common.ErrorValidation)
	}
	if !params.Status.Valid() {
		return nil, fmt.Errorf("unknown call status %q: %w", params.Status, common.ErrorValidation)
	}

	log := &models.CallLog{
		ID:         uuid.NewString(),
		UserID:     userID,
		PeerUserID: params.PeerUserID,
		Direction:  params.Direction,
		Status:     params.Status,
		StartedAt:  params.StartedAt,
		EndedAt:    params.EndedAt,
	}
	if err := s.repomanager.Calls(s.db).Create(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// Calls returns the caller's call history, newest first, with peer cards
// hydrated.
func (s *ChatService) Calls(ctx context.Context, userID int64) ([]models.CallLog, error) {
	logs, err := s.repomanager.Calls(s.db).ListForUser(ctx, userID, callHistoryLimit)
	if err != nil {
		return nil, err
	}
	for i := range logs {
		peer, err := s.repomanager.Users(s.db).GetByID(ctx, logs[i].PeerUserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}
		card := peer.Card()
		logs[i].Peer = &card
	}
	return logs, nil
}

// IsMember reports membership without an error for non-members.
func (s *ChatService) IsMember(ctx context.Context, chatID string, userID int64) (bool, error) {
	return s.repomanager.Chats(s.db).IsMember(ctx, chatID, userID)
}

func (s *ChatService) requireMember(ctx context.Context, chatID string, userID int64) error {
	ok, err := s.repomanager.Chats(s.db).IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorForbidden
	}
	return nil
}
