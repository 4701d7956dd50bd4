// Package models defines the server-side domain entities persisted by the
// repositories.
package models

import "time"

// UserStatus is a closed set of account states.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBanned  UserStatus = "banned"
	UserStatusDeleted UserStatus = "deleted"
)

// User is the authoritative account record. Ids are densely allocated:
// the smallest unused positive integer is picked on creation.
type User struct {
	ID           int64
	Email        string
	Username     *string
	DisplayName  string
	AvatarURL    *string
	Bio          string
	BirthDate    *string
	PasswordHash string
	Status       UserStatus
	LastSeenAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserCard is the public projection of a user attached to messages,
// chat peers and contact listings.
type UserCard struct {
	ID          int64      `json:"id"`
	Username    *string    `json:"username"`
	DisplayName string     `json:"displayName"`
	AvatarURL   *string    `json:"avatarUrl"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
}

// Visibility is the audience selector for profile fields.
type Visibility string

const (
	VisibilityEveryone Visibility = "everyone"
	VisibilityContacts Visibility = "contacts"
	VisibilityNobody   Visibility = "nobody"
)

// UserPrivacy holds per-user profile visibility settings.
type UserPrivacy struct {
	UserID             int64
	AvatarVisibility   Visibility
	BioVisibility      Visibility
	LastSeenVisibility Visibility
}

// Card returns the public projection of u.
func (u *User) Card() UserCard {
	return UserCard{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		LastSeenAt:  u.LastSeenAt,
	}
}
