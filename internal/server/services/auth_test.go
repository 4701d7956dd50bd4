package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/server/auth"
	"github.com/aximilate/ctrl/internal/server/config"
	"github.com/aximilate/ctrl/internal/server/models"
	bansrepo "github.com/aximilate/ctrl/internal/server/repositories/bans"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.Environment = "development"
	return cfg
}

func newAuthService(t *testing.T, db *sql.DB, rm *fakeRepoManager, sender *fakeSender) *AuthService {
	t.Helper()
	return NewAuthService(db, rm, sender, nopLogger{}, testConfig())
}

func TestRequestRegisterCode_DisallowedDomain(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := newAuthService(t, db, newFakeRepoManager(), &fakeSender{})

	_, err := s.RequestRegisterCode(context.Background(), "eve@evil.example", models.ConnectionContext{})
	if !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestRequestRegisterCode_BannedIP(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.bans.findActiveFn = func(ctx context.Context, scope bansrepo.Scope, value string) (*models.Ban, error) {
		if scope == bansrepo.ScopeIP && value == "10.0.0.1" {
			return &models.Ban{Reason: "spam"}, nil
		}
		return nil, common.ErrorNotFound
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, err := s.RequestRegisterCode(context.Background(), "alice@gmail.com", models.ConnectionContext{IP: "10.0.0.1"})
	if !errors.Is(err, common.ErrBanned) {
		t.Fatalf("want banned error, got %v", err)
	}
}

func TestRequestRegisterCode_ExistingEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.getByEmailFn = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{ID: 1, Email: email}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, err := s.RequestRegisterCode(context.Background(), "alice@gmail.com", models.ConnectionContext{})
	if !errors.Is(err, common.ErrorConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestRequestRegisterCode_DevCodeReturned(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	sender := &fakeSender{}
	s := newAuthService(t, db, rm, sender)

	devCode, err := s.RequestRegisterCode(context.Background(), "Alice@Gmail.com", models.ConnectionContext{})
	if err != nil {
		t.Fatalf("RequestRegisterCode error: %v", err)
	}
	if len(devCode) != codeDigits {
		t.Fatalf("want %d-digit dev code, got %q", codeDigits, devCode)
	}
	if len(sender.sentTo) != 1 || sender.sentTo[0] != "alice@gmail.com" {
		t.Fatalf("code should go to the normalized email, got %v", sender.sentTo)
	}
	if sender.sentCodes[0] != devCode {
		t.Fatal("dev code must match the emailed code")
	}
}

func TestVerifyRegisterCode_WrongCode(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.codes.findNewestValidFn = func(ctx context.Context, email string, purpose models.CodePurpose) (*models.VerificationCode, error) {
		return &models.VerificationCode{ID: 5, Code: "123456"}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, err := s.VerifyRegisterCode(context.Background(), "alice@gmail.com", "654321")
	if !errors.Is(err, common.ErrInvalidOrExpiredCode) {
		t.Fatalf("want invalid code error, got %v", err)
	}
	if len(rm.codes.consumedIDs) != 0 {
		t.Fatal("a wrong code must not be consumed")
	}
}

func TestVerifyRegisterCode_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.codes.findNewestValidFn = func(ctx context.Context, email string, purpose models.CodePurpose) (*models.VerificationCode, error) {
		return &models.VerificationCode{ID: 5, Code: "123456"}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	token, err := s.VerifyRegisterCode(context.Background(), "alice@gmail.com", "123456")
	if err != nil {
		t.Fatalf("VerifyRegisterCode error: %v", err)
	}
	if token == "" {
		t.Fatal("want a flow token")
	}
	if len(rm.codes.consumedIDs) != 1 || rm.codes.consumedIDs[0] != 5 {
		t.Fatalf("code should be consumed once, got %v", rm.codes.consumedIDs)
	}
}

func TestCompleteProfile_IDConflictRetried(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	rm := newFakeRepoManager()
	rm.flows.getRegistrationFn = func(ctx context.Context, token string) (*models.RegistrationFlow, error) {
		return &models.RegistrationFlow{Token: token, Email: "alice@gmail.com", PasswordHash: &hash}, nil
	}
	ids := []int64{3, 3, 4}
	rm.users.nextFreeIDFn = func(ctx context.Context) (int64, error) {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id, nil
	}
	attempts := 0
	rm.users.createFn = func(ctx context.Context, u *models.User) (*models.User, error) {
		attempts++
		if attempts < 3 {
			return nil, common.ErrorConflict
		}
		return u, nil
	}

	s := newAuthService(t, db, rm, &fakeSender{})
	user, pair, err := s.CompleteProfile(context.Background(), "flow-1",
		CompleteProfileParams{DisplayName: "Alice"}, models.ConnectionContext{})
	if err != nil {
		t.Fatalf("CompleteProfile error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("want 3 create attempts, got %d", attempts)
	}
	if user.ID != 4 {
		t.Fatalf("want the retried id 4, got %d", user.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("want a full token pair")
	}
	if len(rm.flows.deletedTokens) != 1 {
		t.Fatal("the flow must be consumed")
	}
}

func TestCompleteProfile_PasswordNotSet(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.flows.getRegistrationFn = func(ctx context.Context, token string) (*models.RegistrationFlow, error) {
		return &models.RegistrationFlow{Token: token, Email: "alice@gmail.com"}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, _, err := s.CompleteProfile(context.Background(), "flow-1",
		CompleteProfileParams{DisplayName: "Alice"}, models.ConnectionContext{})
	if !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestLoginRequest_WrongPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	hash, err := auth.HashPassword("right")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	rm := newFakeRepoManager()
	rm.users.getByEmailFn = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{ID: 7, Email: email, PasswordHash: hash, Status: models.UserStatusActive}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, _, err = s.LoginRequest(context.Background(), "alice@gmail.com", "wrong", models.ConnectionContext{})
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
}

func TestLoginVerify_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.flows.getChallengeFn = func(ctx context.Context, id string) (*models.LoginChallenge, error) {
		return &models.LoginChallenge{ID: id, UserID: 7, Code: "123456"}, nil
	}
	rm.users.getByIDFn = func(ctx context.Context, id int64) (*models.User, error) {
		return &models.User{ID: id, Email: "alice@gmail.com", Status: models.UserStatusActive}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	user, pair, err := s.LoginVerify(context.Background(), "ch-1", "123456", models.ConnectionContext{})
	if err != nil {
		t.Fatalf("LoginVerify error: %v", err)
	}
	if user.ID != 7 || pair.AccessToken == "" {
		t.Fatalf("unexpected result: %+v %+v", user, pair)
	}
	if len(rm.flows.consumedChallengeIDs) != 1 || rm.flows.consumedChallengeIDs[0] != "ch-1" {
		t.Fatalf("challenge should be consumed once, got %v", rm.flows.consumedChallengeIDs)
	}

	claims, authed, err := s.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if claims.UserID != 7 || claims.SessionID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if authed.ID != 7 {
		t.Fatalf("want the authenticated user, got %+v", authed)
	}
}

func TestLoginVerify_WrongCodeKeepsChallenge(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.flows.getChallengeFn = func(ctx context.Context, id string) (*models.LoginChallenge, error) {
		return &models.LoginChallenge{ID: id, UserID: 7, Code: "123456"}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, _, err := s.LoginVerify(context.Background(), "ch-1", "654321", models.ConnectionContext{})
	if !errors.Is(err, common.ErrInvalidOrExpiredCode) {
		t.Fatalf("want invalid code error, got %v", err)
	}
	if len(rm.flows.consumedChallengeIDs) != 0 {
		t.Fatalf("a wrong code must not burn the challenge, got %v", rm.flows.consumedChallengeIDs)
	}

	// The same challenge still accepts the right code.
	rm.users.getByIDFn = func(ctx context.Context, id int64) (*models.User, error) {
		return &models.User{ID: id, Email: "alice@gmail.com", Status: models.UserStatusActive}, nil
	}
	user, _, err := s.LoginVerify(context.Background(), "ch-1", "123456", models.ConnectionContext{})
	if err != nil {
		t.Fatalf("LoginVerify retry error: %v", err)
	}
	if user.ID != 7 {
		t.Fatalf("unexpected user: %+v", user)
	}
	if len(rm.flows.consumedChallengeIDs) != 1 {
		t.Fatalf("challenge should be consumed on the matching code, got %v", rm.flows.consumedChallengeIDs)
	}
}

func TestAuthenticate_RejectsBannedUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	status := models.UserStatusActive
	rm.users.getByIDFn = func(ctx context.Context, id int64) (*models.User, error) {
		return &models.User{ID: id, Email: "alice@gmail.com", Status: status}, nil
	}
	rm.flows.getChallengeFn = func(ctx context.Context, id string) (*models.LoginChallenge, error) {
		return &models.LoginChallenge{ID: id, UserID: 7, Code: "123456"}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, pair, err := s.LoginVerify(context.Background(), "ch-1", "123456", models.ConnectionContext{})
	if err != nil {
		t.Fatalf("LoginVerify error: %v", err)
	}
	if _, _, err := s.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}

	// An access token minted before the ban must stop working.
	status = models.UserStatusBanned
	_, _, err = s.Authenticate(context.Background(), pair.AccessToken)
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want unauthorized for a banned user, got %v", err)
	}
}

func TestLoginVerify_BannedUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.flows.getChallengeFn = func(ctx context.Context, id string) (*models.LoginChallenge, error) {
		return &models.LoginChallenge{ID: id, UserID: 7, Code: "123456"}, nil
	}
	rm.users.getByIDFn = func(ctx context.Context, id int64) (*models.User, error) {
		return &models.User{ID: id, Status: models.UserStatusBanned}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, _, err := s.LoginVerify(context.Background(), "ch-1", "123456", models.ConnectionContext{})
	if !errors.Is(err, common.ErrBanned) {
		t.Fatalf("want banned, got %v", err)
	}
}

func TestRefresh_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	rm.sessions.findActiveFn = func(ctx context.Context, refreshHash string) (*models.Session, error) {
		return &models.Session{ID: "sess-1", UserID: 7, RefreshHash: refreshHash,
			ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	pair, err := s.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.RefreshToken == "old-refresh" {
		t.Fatalf("want a rotated pair, got %+v", pair)
	}
}

func TestRefresh_ReplayRevokesSession(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := newFakeRepoManager()
	rm.sessions.findActiveFn = func(ctx context.Context, refreshHash string) (*models.Session, error) {
		return &models.Session{ID: "sess-1", UserID: 7}, nil
	}
	rm.sessions.rotateFn = func(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
		return false, nil
	}
	s := newAuthService(t, db, rm, &fakeSender{})

	_, err := s.Refresh(context.Background(), "replayed-refresh")
	if !errors.Is(err, common.ErrInvalidSession) {
		t.Fatalf("want invalid session, got %v", err)
	}
	if len(rm.sessions.revokedSessionIDs) != 1 || rm.sessions.revokedSessionIDs[0] != "sess-1" {
		t.Fatalf("replay must revoke the session, got %v", rm.sessions.revokedSessionIDs)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := newAuthService(t, db, newFakeRepoManager(), &fakeSender{})

	_, err := s.Refresh(context.Background(), "never-issued")
	if !errors.Is(err, common.ErrInvalidSession) {
		t.Fatalf("want invalid session, got %v", err)
	}
}
