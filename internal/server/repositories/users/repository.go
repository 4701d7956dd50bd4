// Package users provides the PostgreSQL-backed repository for account
// records, profile updates, and the dense user-id allocation scan.
package users

import (
	"context"

	"github.com/aximilate/ctrl/internal/server/models"
)

// ProfilePatch is a partial profile update; nil fields are left unchanged.
type ProfilePatch struct {
	DisplayName *string
	Username    *string
	AvatarURL   *string
	Bio         *string
	BirthDate   *string
}

type Repository interface {
	// NextFreeID returns the smallest unused positive user id. The result is
	// advisory: the insert may still lose a race and must be retried.
	NextFreeID(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastSeen(ctx context.Context, id int64) error
	ListContacts(ctx context.Context, excludeUserID int64, query string, limit int) ([]models.UserCard, error)
	GetPrivacy(ctx context.Context, userID int64) (*models.UserPrivacy, error)
	UpsertPrivacy(ctx context.Context, p *models.UserPrivacy) error
}
