package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/server/auth"
	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/repositories/repomanager"
	"github.com/aximilate/ctrl/internal/server/repositories/users"
)

// UserService covers profile reads and writes, contact search, password
// change for authenticated users, and privacy settings.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Users(s.db).GetByUsername(ctx, username)
}

// UpdateProfile applies a partial patch. A taken username maps to
// common.ErrorConflict via the unique constraint.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, patch users.ProfilePatch) (*models.User, error) {
	if patch.Username != nil {
		normalized := strings.ToLower(strings.TrimSpace(*patch.Username))
		if normalized == "" {
			return nil, fmt.Errorf("username must not be empty: %w", common.ErrorValidation)
		}
		patch.Username = &normalized
	}
	if patch.DisplayName != nil && strings.TrimSpace(*patch.DisplayName) == "" {
		return nil, fmt.Errorf("display name must not be empty: %w", common.ErrorValidation)
	}
	if err := s.repomanager.Users(s.db).UpdateProfile(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// ChangePassword verifies the current password before storing the new hash.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len(next) < minPasswordLength {
		return fmt.Errorf("password too short: %w", common.ErrorValidation)
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(user.PasswordHash, current) {
		return common.ErrorUnauthorized
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return common.ErrorInternal
	}
	return s.repomanager.Users(s.db).UpdatePassword(ctx, id, hash)
}

// Contacts searches other active users by username or display name.
func (s *UserService) Contacts(ctx context.Context, viewerID int64, query string, limit int) ([]models.UserCard, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repomanager.Users(s.db).ListContacts(ctx, viewerID, strings.TrimSpace(query), limit)
}

// Card returns the public projection of a user with last-seen visibility
// applied for the given viewer.
func (s *UserService) Card(ctx context.Context, viewerID, targetID int64) (*models.UserCard, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	card := user.Card()
	if viewerID != targetID {
		privacy, err := s.repomanager.Users(s.db).GetPrivacy(ctx, targetID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		if privacy != nil && privacy.LastSeenVisibility == models.VisibilityNobody {
			card.LastSeenAt = nil
		}
	}
	return &card, nil
}

// CardByUsername resolves a username and returns the public card.
func (s *UserService) CardByUsername(ctx context.Context, viewerID int64, username string) (*models.UserCard, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.Card(ctx, viewerID, user.ID)
}

func (s *UserService) GetPrivacy(ctx context.Context, userID int64) (*models.UserPrivacy, error) {
	p, err := s.repomanager.Users(s.db).GetPrivacy(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &models.UserPrivacy{
				UserID:             userID,
				AvatarVisibility:   models.VisibilityEveryone,
				BioVisibility:      models.VisibilityEveryone,
				LastSeenVisibility: models.VisibilityContacts,
			}, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *UserService) SetPrivacy(ctx context.Context, p *models.UserPrivacy) error {
	for _, v := range []models.Visibility{p.AvatarVisibility, p.BioVisibility, p.LastSeenVisibility} {
		switch v {
		case models.VisibilityEveryone, models.VisibilityContacts, models.VisibilityNobody:
		default:
			return fmt.Errorf("unknown visibility %q: %w", v, common.ErrorValidation)
		}
	}
	return s.repomanager.Users(s.db).UpsertPrivacy(ctx, p)
}

// TouchLastSeen stamps activity; called when a realtime connection closes.
func (s *UserService) TouchLastSeen(ctx context.Context, userID int64) error {
	return s.repomanager.Users(s.db).TouchLastSeen(ctx, userID)
}
