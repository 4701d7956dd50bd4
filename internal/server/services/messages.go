package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	maxMessageLength   = 4096
	defaultPageSize    = 50
	maxPageSize        = 200
	searchResultLimit  = 50
	maxSearchNeedleLen = 256
)

// Publisher fans realtime events out to connected clients. The broker
// implements it; services stay unaware of websockets.
type Publisher interface {
	PublishToChat(chatID string, event string, payload any)
	PublishToUser(userID int64, event string, payload any)
}

// Realtime event names, mirrored by the websocket protocol.
const (
	EventMessageNew      = "message:new"
	EventMessageEdited   = "message:edited"
	EventMessageDeleted  = "message:deleted"
	EventMessageReaction = "message:reaction"
)

// MessageService implements send, edit, two-scope delete, reactions, history
// and search inside a chat, emitting realtime events as a side effect of
// committed writes.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	chats       *ChatService
	publisher   Publisher
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, chats *ChatService, publisher Publisher) *MessageService {
	return &MessageService{db: db, repomanager: m, chats: chats, publisher: publisher}
}

// SendParams is the message creation input. At least one of Plaintext and
// Ciphertext must be set.
type SendParams struct {
	Plaintext  *string
	Ciphertext *string
	Type       models.MessageType
	ReplyToID  *string
}

func (s *MessageService) Send(ctx context.Context, senderID int64, chatID string, params SendParams) (*models.Message, error) {
	if err := s.requireMember(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	if params.Type == "" {
		params.Type = models.MessageTypeText
	}
	if !params.Type.Valid() {
		return nil, fmt.Errorf("unknown message type %q: %w", params.Type, common.ErrorValidation)
	}
	if err := validateContent(params.Plaintext, params.Ciphertext); err != nil {
		return nil, err
	}
	if params.ReplyToID != nil {
		replied, err := s.repomanager.Messages(s.db).GetByID(ctx, *params.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("reply target: %w", common.ErrorValidation)
		}
		if replied.ChatID != chatID {
			return nil, fmt.Errorf("reply target in another chat: %w", common.ErrorValidation)
		}
	}

	msg := &models.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   senderID,
		Plaintext:  params.Plaintext,
		Ciphertext: params.Ciphertext,
		Type:       params.Type,
		ReplyToID:  params.ReplyToID,
		Reactions:  []models.Reaction{},
	}
	if err := s.repomanager.Messages(s.db).Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.repomanager.Chats(s.db).TouchUpdatedAt(ctx, chatID); err != nil {
		return nil, err
	}

	s.attachSender(ctx, msg)
	s.publisher.PublishToChat(chatID, EventMessageNew, msg)
	return msg, nil
}

// Edit replaces the text of the sender's own text message.
func (s *MessageService) Edit(ctx context.Context, userID int64, messageID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxMessageLength {
		return nil, fmt.Errorf("bad message text: %w", common.ErrorValidation)
	}

	current, err := s.repomanager.Messages(s.db).GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if current.SenderID != userID {
		return nil, common.ErrorForbidden
	}
	if current.Type != models.MessageTypeText {
		return nil, fmt.Errorf("only text messages are editable: %w", common.ErrorValidation)
	}

	msg, err := s.repomanager.Messages(s.db).UpdateText(ctx, messageID, userID, text)
	if err != nil {
		return nil, err
	}
	msg.Reactions, err = s.repomanager.Messages(s.db).ReactionsFor(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.attachSender(ctx, msg)
	s.publisher.PublishToChat(msg.ChatID, EventMessageEdited, msg)
	return msg, nil
}

// Delete removes a message. Scope self hides it for the caller only; scope
// all removes it for everyone and is restricted to the sender.
func (s *MessageService) Delete(ctx context.Context, userID int64, messageID string, scope models.DeleteScope) error {
	if !scope.Valid() {
		return fmt.Errorf("unknown delete scope %q: %w", scope, common.ErrorValidation)
	}
	msg, err := s.repomanager.Messages(s.db).GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, msg.ChatID, userID); err != nil {
		return err
	}

	if scope == models.DeleteScopeSelf {
		return s.repomanager.Messages(s.db).Hide(ctx, messageID, userID)
	}

	if msg.SenderID != userID {
		return common.ErrorForbidden
	}
	if err := s.repomanager.Messages(s.db).Delete(ctx, messageID, userID); err != nil {
		return err
	}
	s.publisher.PublishToChat(msg.ChatID, EventMessageDeleted, map[string]any{
		"messageId": messageID,
		"chatId":    msg.ChatID,
	})
	return nil
}

// ToggleReaction flips the caller's (message, emoji) reaction. It reports
// whether the reaction is active afterwards and broadcasts the resulting
// reaction set.
func (s *MessageService) ToggleReaction(ctx context.Context, userID int64, messageID, emoji string) ([]models.Reaction, bool, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > 32 {
		return nil, false, fmt.Errorf("bad emoji: %w", common.ErrorValidation)
	}
	msg, err := s.repomanager.Messages(s.db).GetByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if err := s.requireMember(ctx, msg.ChatID, userID); err != nil {
		return nil, false, err
	}

	active, err := s.repomanager.Messages(s.db).ToggleReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, false, err
	}
	reactions, err := s.repomanager.Messages(s.db).ReactionsFor(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if reactions == nil {
		reactions = []models.Reaction{}
	}

	s.publisher.PublishToChat(msg.ChatID, EventMessageReaction, map[string]any{
		"messageId": messageID,
		"chatId":    msg.ChatID,
		"userId":    userID,
		"emoji":     emoji,
		"active":    active,
		"reactions": reactions,
	})
	return reactions, active, nil
}

// List returns a page of chat history visible to the caller. The page is
// selected newest-first (optionally strictly older than the before cursor)
// and then reversed, so callers receive it in ascending order.
func (s *MessageService) List(ctx context.Context, userID int64, chatID string, before time.Time, limit int) ([]models.Message, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	msgs, err := s.repomanager.Messages(s.db).ListForUser(ctx, chatID, userID, before, limit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Reactions, err = s.repomanager.Messages(s.db).ReactionsFor(ctx, msgs[i].ID)
		if err != nil {
			return nil, err
		}
		if msgs[i].Reactions == nil {
			msgs[i].Reactions = []models.Reaction{}
		}
		s.attachSender(ctx, &msgs[i])
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Search matches visible plaintext in a chat, newest first.
func (s *MessageService) Search(ctx context.Context, userID int64, chatID, needle string) ([]models.Message, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	needle = strings.TrimSpace(needle)
	if needle == "" || len(needle) > maxSearchNeedleLen {
		return nil, fmt.Errorf("bad search query: %w", common.ErrorValidation)
	}
	return s.repomanager.Messages(s.db).Search(ctx, chatID, userID, needle, searchResultLimit)
}

// SearchAll matches visible plaintext across all of the caller's chats.
func (s *MessageService) SearchAll(ctx context.Context, userID int64, needle string) ([]models.Message, error) {
	needle = strings.TrimSpace(needle)
	if needle == "" || len(needle) > maxSearchNeedleLen {
		return nil, fmt.Errorf("bad search query: %w", common.ErrorValidation)
	}
	return s.repomanager.Messages(s.db).SearchAll(ctx, userID, needle, searchResultLimit)
}

func (s *MessageService) requireMember(ctx context.Context, chatID string, userID int64) error {
	ok, err := s.repomanager.Chats(s.db).IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorForbidden
	}
	return nil
}

// attachSender hydrates the sender card, best effort.
func (s *MessageService) attachSender(ctx context.Context, msg *models.Message) {
	sender, err := s.repomanager.Users(s.db).GetByID(ctx, msg.SenderID)
	if err != nil {
		return
	}
	card := sender.Card()
	msg.Sender = &card
}

func validateContent(plaintext, ciphertext *string) error {
	if plaintext == nil && ciphertext == nil {
		return fmt.Errorf("message content required: %w", common.ErrorValidation)
	}
	if plaintext != nil {
		t := strings.TrimSpace(*plaintext)
		if t == "" && ciphertext == nil {
			return fmt.Errorf("message content required: %w", common.ErrorValidation)
		}
		if len(t) > maxMessageLength {
			return fmt.Errorf("message too long: %w", common.ErrorValidation)
		}
	}
	return nil
}
