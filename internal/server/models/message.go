package models

import "time"

// MessageType is a closed set of message payload kinds.
type MessageType string

const (
	MessageTypeText      MessageType = "text"
	MessageTypeMedia     MessageType = "media"
	MessageTypeFile      MessageType = "file"
	MessageTypeVoice     MessageType = "voice"
	MessageTypeVideoNote MessageType = "video_note"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeMedia, MessageTypeFile, MessageTypeVoice, MessageTypeVideoNote:
		return true
	}
	return false
}

// DeleteScope distinguishes a per-user hide from a global removal.
type DeleteScope string

const (
	DeleteScopeSelf DeleteScope = "self"
	DeleteScopeAll  DeleteScope = "all"
)

// Valid reports whether s is one of the known delete scopes.
func (s DeleteScope) Valid() bool {
	return s == DeleteScopeSelf || s == DeleteScopeAll
}

// Message is a chat message. The creation timestamp is immutable; content
// changes only through the edit operation. Plaintext and Ciphertext are both
// optional but at least one is required on send.
type Message struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chatId"`
	SenderID   int64       `json:"senderId"`
	Sender     *UserCard   `json:"sender,omitempty"`
	Plaintext  *string     `json:"text"`
	Ciphertext *string     `json:"ciphertext"`
	Type       MessageType `json:"type"`
	ReplyToID  *string     `json:"replyToId"`
	EditedAt   *time.Time  `json:"editedAt"`
	CreatedAt  time.Time   `json:"createdAt"`
	Reactions  []Reaction  `json:"reactions"`
}

// Reaction marks that a user reacted to a message with an emoji.
// Presence of the row is the whole state; toggling removes it.
type Reaction struct {
	UserID int64  `json:"userId"`
	Emoji  string `json:"emoji"`
}
