// Package services contains server-side business logic. This file implements
// AuthService: verification-code gated registration, password + 2FA login,
// refresh-token rotation, and access-token verification.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/logging"
	"github.com/aximilate/ctrl/internal/server/auth"
	"github.com/aximilate/ctrl/internal/server/config"
	"github.com/aximilate/ctrl/internal/server/mail"
	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/repositories/bans"
	"github.com/aximilate/ctrl/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	codeDigits          = 6
	codeValidity        = 10 * time.Minute
	flowValidity        = 30 * time.Minute
	challengeValidity   = 10 * time.Minute
	minPasswordLength   = 8
	createUserRetries   = 3
	refreshTokenEntropy = 32
)

// AuthService implements the account lifecycle: code request/verify,
// password setup, profile completion, login with 2FA, session refresh and
// revocation.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sender      mail.Sender
	logger      logging.Logger

	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	allowedEmailDomains          []string
	production                   bool
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, sender mail.Sender, logger logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		sender:                       sender,
		logger:                       logger,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		allowedEmailDomains:          cfg.AllowedEmailDomains,
		production:                   cfg.IsProduction(),
	}
}

// RequestRegisterCode issues a registration code for the given email and
// sends it out. The returned devCode is non-empty only outside production,
// where it is surfaced in the response for testability.
func (s *AuthService) RequestRegisterCode(ctx context.Context, email string, conn models.ConnectionContext) (devCode string, err error) {
	email = normalizeEmail(email)
	if !s.emailDomainAllowed(email) {
		return "", fmt.Errorf("email domain not allowed: %w", common.ErrorValidation)
	}
	if err := s.guardConnection(ctx, conn); err != nil {
		return "", err
	}

	if _, err := s.repomanager.Users(s.db).GetByEmail(ctx, email); err == nil {
		return "", common.ErrorConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	code, err := common.MakeNumericCode(codeDigits)
	if err != nil {
		return "", common.ErrorInternal
	}
	if err := s.repomanager.Codes(s.db).Create(ctx, email, models.CodePurposeRegister, code, codeValidity); err != nil {
		return "", err
	}
	if err := s.sender.SendCode(ctx, email, code, mail.PurposeRegister); err != nil {
		return "", err
	}
	if s.production {
		return "", nil
	}
	return code, nil
}

// VerifyRegisterCode checks the newest outstanding code for the email,
// consumes it, and opens a registration flow. The returned token drives the
// password and profile steps.
func (s *AuthService) VerifyRegisterCode(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)

	stored, err := s.repomanager.Codes(s.db).FindNewestValid(ctx, email, models.CodePurposeRegister)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidOrExpiredCode
		}
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		return "", common.ErrInvalidOrExpiredCode
	}
	if err := s.repomanager.Codes(s.db).Consume(ctx, stored.ID); err != nil {
		return "", err
	}

	token := uuid.NewString()
	if err := s.repomanager.Flows(s.db).CreateRegistration(ctx, token, email, flowValidity); err != nil {
		return "", err
	}
	return token, nil
}

// SetPassword attaches a password hash to an open registration flow.
func (s *AuthService) SetPassword(ctx context.Context, flowToken, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password too short: %w", common.ErrorValidation)
	}
	if _, err := s.repomanager.Flows(s.db).GetRegistration(ctx, flowToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return common.ErrorInternal
	}
	return s.repomanager.Flows(s.db).SetRegistrationPassword(ctx, flowToken, hash)
}

// CompleteProfileParams is the final registration step input.
type CompleteProfileParams struct {
	DisplayName string
	Username    *string
	BirthDate   *string
	KeyBundle   *models.KeyBundle
}

// CompleteProfile finishes registration: allocates the smallest free user id,
// creates the account, optionally publishes the client's key bundle, and
// opens the first session.
func (s *AuthService) CompleteProfile(ctx context.Context, flowToken string, params CompleteProfileParams, conn models.ConnectionContext) (*models.User, *models.TokenPair, error) {
	flow, err := s.repomanager.Flows(s.db).GetRegistration(ctx, flowToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, err
	}
	if flow.PasswordHash == nil {
		return nil, nil, fmt.Errorf("password not set: %w", common.ErrorValidation)
	}
	if strings.TrimSpace(params.DisplayName) == "" {
		return nil, nil, fmt.Errorf("display name required: %w", common.ErrorValidation)
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		usersRepo := s.repomanager.Users(tx)

		// The id scan is advisory; a concurrent registration can take the
		// same id first, which surfaces as a conflict and is retried.
		for attempt := 0; ; attempt++ {
			id, err := usersRepo.NextFreeID(ctx)
			if err != nil {
				return err
			}
			candidate := &models.User{
				ID:           id,
				Email:        flow.Email,
				Username:     params.Username,
				DisplayName:  params.DisplayName,
				BirthDate:    params.BirthDate,
				PasswordHash: *flow.PasswordHash,
				Status:       models.UserStatusActive,
			}
			user, err = usersRepo.Create(ctx, candidate)
			if err == nil {
				break
			}
			if errors.Is(err, common.ErrorConflict) && attempt < createUserRetries {
				continue
			}
			return err
		}

		if err := usersRepo.UpsertPrivacy(ctx, &models.UserPrivacy{
			UserID:             user.ID,
			AvatarVisibility:   models.VisibilityEveryone,
			BioVisibility:      models.VisibilityEveryone,
			LastSeenVisibility: models.VisibilityContacts,
		}); err != nil {
			return err
		}

		if params.KeyBundle != nil {
			params.KeyBundle.UserID = user.ID
			if err := s.repomanager.Keys(tx).Upsert(ctx, params.KeyBundle); err != nil {
				return err
			}
		}

		return s.repomanager.Flows(tx).DeleteRegistration(ctx, flowToken)
	})
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, user.ID, conn)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// LoginRequest verifies the password and opens a 2FA challenge. The code is
// emailed; devCode is non-empty only outside production.
func (s *AuthService) LoginRequest(ctx context.Context, identifier, password string, conn models.ConnectionContext) (challengeID, devCode string, err error) {
	if err := s.guardConnection(ctx, conn); err != nil {
		return "", "", err
	}

	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", "", common.ErrorUnauthorized
		}
		return "", "", err
	}
	if err := s.guardUser(ctx, user); err != nil {
		return "", "", err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return "", "", common.ErrorUnauthorized
	}

	code, err := common.MakeNumericCode(codeDigits)
	if err != nil {
		return "", "", common.ErrorInternal
	}
	challengeID = uuid.NewString()
	if err := s.repomanager.Flows(s.db).CreateChallenge(ctx, challengeID, user.ID, code, challengeValidity); err != nil {
		return "", "", err
	}
	if err := s.sender.SendCode(ctx, user.Email, code, mail.PurposeLogin); err != nil {
		return "", "", err
	}
	if s.production {
		return challengeID, "", nil
	}
	return challengeID, code, nil
}

// LoginVerify checks the 2FA code and opens a session on success. The
// challenge is consumed only when the code matches, so a typo does not force
// a re-login; consumption is atomic, so of two concurrent verifies with the
// right code at most one wins.
func (s *AuthService) LoginVerify(ctx context.Context, challengeID, code string, conn models.ConnectionContext) (*models.User, *models.TokenPair, error) {
	challenge, err := s.repomanager.Flows(s.db).GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidOrExpiredCode
		}
		return nil, nil, err
	}
	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		return nil, nil, common.ErrInvalidOrExpiredCode
	}
	if _, err := s.repomanager.Flows(s.db).ConsumeChallenge(ctx, challengeID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidOrExpiredCode
		}
		return nil, nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, challenge.UserID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.guardUser(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, user.ID, conn)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates the refresh token and mints a new access token. The old
// refresh value stops working the moment the rotation commits; a stale value
// means the token was already used and the whole session is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	oldHash := common.HashToken(refreshToken)

	session, err := s.repomanager.Sessions(s.db).FindActiveByRefreshHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidSession
		}
		return nil, err
	}

	newRefresh, err := common.MakeRandHexString(refreshTokenEntropy)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var pair *models.TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rotated, err := s.repomanager.Sessions(tx).Rotate(ctx, session.ID, oldHash,
			common.HashToken(newRefresh), time.Now().Add(s.refreshTokenValidityDuration))
		if err != nil {
			return err
		}
		if !rotated {
			return common.ErrInvalidSession
		}

		access, err := auth.GenerateToken(session.UserID, session.ID, s.jwtSecret, s.accessTokenValidityDuration)
		if err != nil {
			return common.ErrorInternal
		}
		pair = &models.TokenPair{AccessToken: access, RefreshToken: newRefresh}
		return nil
	})
	if errors.Is(err, common.ErrInvalidSession) {
		// A concurrent refresh already spent this token. Treat it as replay
		// and kill the session, outside the rolled-back transaction.
		if revokeErr := s.repomanager.Sessions(s.db).Revoke(ctx, session.ID); revokeErr != nil {
			return nil, revokeErr
		}
		return nil, common.ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the session named by the access token's claims. Outstanding
// access tokens stay valid until expiry; only refresh is cut off.
func (s *AuthService) Logout(ctx context.Context, userID int64, sessionID string) error {
	return s.repomanager.Sessions(s.db).RevokeForUser(ctx, sessionID, userID)
}

// Authenticate verifies an access token and returns its claims together
// with the account. A token for a banned or deleted account is rejected even
// before it expires.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, *models.User, error) {
	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, err
	}
	if user.Status != models.UserStatusActive {
		return nil, nil, common.ErrorUnauthorized
	}
	return claims, user, nil
}

// Sessions lists the user's sessions, newest first.
func (s *AuthService) Sessions(ctx context.Context, userID int64) ([]models.Session, error) {
	return s.repomanager.Sessions(s.db).ListByUser(ctx, userID)
}

// RevokeSession revokes one of the user's own sessions by id.
func (s *AuthService) RevokeSession(ctx context.Context, userID int64, sessionID string) error {
	return s.repomanager.Sessions(s.db).RevokeForUser(ctx, sessionID, userID)
}

// --- helpers below ---

func (s *AuthService) openSession(ctx context.Context, userID int64, conn models.ConnectionContext) (*models.TokenPair, error) {
	refresh, err := common.MakeRandHexString(refreshTokenEntropy)
	if err != nil {
		return nil, common.ErrorInternal
	}

	session := &models.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		RefreshHash: common.HashToken(refresh),
		ExpiresAt:   time.Now().Add(s.refreshTokenValidityDuration),
	}
	if conn.UserAgent != "" {
		session.UserAgent = &conn.UserAgent
	}
	if conn.IP != "" {
		session.IP = &conn.IP
	}
	if conn.Fingerprint != "" {
		session.Fingerprint = &conn.Fingerprint
	}
	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, err
	}

	access, err := auth.GenerateToken(userID, session.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) findByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	usersRepo := s.repomanager.Users(s.db)
	if strings.Contains(identifier, "@") {
		return usersRepo.GetByEmail(ctx, normalizeEmail(identifier))
	}
	return usersRepo.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(identifier)))
}

// guardConnection rejects requests from banned IPs or device fingerprints.
func (s *AuthService) guardConnection(ctx context.Context, conn models.ConnectionContext) error {
	bansRepo := s.repomanager.Bans(s.db)
	checks := []struct {
		scope bans.Scope
		value string
	}{
		{bans.ScopeIP, conn.IP},
		{bans.ScopeFingerprint, conn.Fingerprint},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		ban, err := bansRepo.FindActive(ctx, c.scope, c.value)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return err
		}
		return fmt.Errorf("%w: %s", common.ErrBanned, ban.Reason)
	}
	return nil
}

// guardUser rejects banned accounts, both via status and via an active ban row.
func (s *AuthService) guardUser(ctx context.Context, user *models.User) error {
	if user.Status == models.UserStatusBanned {
		return fmt.Errorf("%w: account suspended", common.ErrBanned)
	}
	if user.Status == models.UserStatusDeleted {
		return common.ErrorUnauthorized
	}
	ban, err := s.repomanager.Bans(s.db).FindActive(ctx, bans.ScopeUser, fmt.Sprintf("%d", user.ID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: %s", common.ErrBanned, ban.Reason)
}

func (s *AuthService) emailDomainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	for _, d := range s.allowedEmailDomains {
		if domain == d {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
