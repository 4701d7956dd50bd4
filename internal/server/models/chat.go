package models

import "time"

// ChatType is a closed set of conversation kinds. Only direct chats have
// operations exposed; the group variant exists for forward compatibility.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// Chat is a conversation. Direct chats carry a canonical DirectKey
// ("min:max" of the two member ids) with a unique constraint, which is the
// enforcement mechanism for one-chat-per-pair.
type Chat struct {
	ID        string
	Type      ChatType
	Title     *string
	DirectKey *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMember is a (chat, user) membership row with per-member flags.
type ChatMember struct {
	ChatID   string
	UserID   int64
	Role     string
	Muted    bool
	Pinned   bool
	Favorite bool
	Archived bool
}

// ChatPreferences is a partial update: nil fields are left unchanged.
type ChatPreferences struct {
	Muted    *bool `json:"muted"`
	Pinned   *bool `json:"pinned"`
	Favorite *bool `json:"favorite"`
	Archived *bool `json:"archived"`
}

// ChatListTab selects the chat-list filter.
type ChatListTab string

const (
	ChatListTabHome      ChatListTab = "home"
	ChatListTabFavorites ChatListTab = "favorites"
	ChatListTabArchive   ChatListTab = "archive"
)

// MessagePreview is the last-message snippet shown in chat lists.
type MessagePreview struct {
	ID        string      `json:"id"`
	Text      *string     `json:"text"`
	Type      MessageType `json:"type"`
	SenderID  int64       `json:"senderId"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ChatMemberFlags is the resolved (non-partial) view of the per-member flags.
type ChatMemberFlags struct {
	Muted    bool `json:"muted"`
	Pinned   bool `json:"pinned"`
	Favorite bool `json:"favorite"`
	Archived bool `json:"archived"`
}

// ChatSummary is one entry of the chat list for a particular viewer.
type ChatSummary struct {
	ID          string          `json:"id"`
	Type        ChatType        `json:"type"`
	Title       string          `json:"title"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Preferences ChatMemberFlags `json:"preferences"`
	Peer        *UserCard       `json:"peer"`
	LastMessage *MessagePreview `json:"lastMessage"`
}
