package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/logging"
	"github.com/aximilate/ctrl/internal/server/models"
	bansrepo "github.com/aximilate/ctrl/internal/server/repositories/bans"
	callsrepo "github.com/aximilate/ctrl/internal/server/repositories/calls"
	chatsrepo "github.com/aximilate/ctrl/internal/server/repositories/chats"
	codesrepo "github.com/aximilate/ctrl/internal/server/repositories/codes"
	flowsrepo "github.com/aximilate/ctrl/internal/server/repositories/flows"
	keysrepo "github.com/aximilate/ctrl/internal/server/repositories/keys"
	messagesrepo "github.com/aximilate/ctrl/internal/server/repositories/messages"
	sessionsrepo "github.com/aximilate/ctrl/internal/server/repositories/sessions"
	usersrepo "github.com/aximilate/ctrl/internal/server/repositories/users"
)

// Fakes with overridable function fields. Unset getters return
// common.ErrorNotFound, unset writes succeed.

type fakeUsersRepo struct {
	nextFreeIDFn    func(ctx context.Context) (int64, error)
	createFn        func(ctx context.Context, u *models.User) (*models.User, error)
	getByIDFn       func(ctx context.Context, id int64) (*models.User, error)
	getByEmailFn    func(ctx context.Context, email string) (*models.User, error)
	getByUsernameFn func(ctx context.Context, username string) (*models.User, error)
}

func (f *fakeUsersRepo) NextFreeID(ctx context.Context) (int64, error) {
	if f.nextFreeIDFn != nil {
		return f.nextFreeIDFn(ctx)
	}
	return 1, nil
}
func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, u)
	}
	return u, nil
}
func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getByUsernameFn != nil {
		return f.getByUsernameFn(ctx, username)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeUsersRepo) UpdateProfile(context.Context, int64, usersrepo.ProfilePatch) error {
	return nil
}
func (f *fakeUsersRepo) UpdatePassword(context.Context, int64, string) error { return nil }
func (f *fakeUsersRepo) TouchLastSeen(context.Context, int64) error          { return nil }
func (f *fakeUsersRepo) ListContacts(context.Context, int64, string, int) ([]models.UserCard, error) {
	return nil, nil
}
func (f *fakeUsersRepo) GetPrivacy(context.Context, int64) (*models.UserPrivacy, error) {
	return nil, common.ErrorNotFound
}
func (f *fakeUsersRepo) UpsertPrivacy(context.Context, *models.UserPrivacy) error { return nil }

type fakeCodesRepo struct {
	createFn          func(ctx context.Context, email string, purpose models.CodePurpose, code string, ttl time.Duration) error
	findNewestValidFn func(ctx context.Context, email string, purpose models.CodePurpose) (*models.VerificationCode, error)
	consumedIDs       []int64
}

func (f *fakeCodesRepo) Create(ctx context.Context, email string, purpose models.CodePurpose, code string, ttl time.Duration) error {
	if f.createFn != nil {
		return f.createFn(ctx, email, purpose, code, ttl)
	}
	return nil
}
func (f *fakeCodesRepo) FindNewestValid(ctx context.Context, email string, purpose models.CodePurpose) (*models.VerificationCode, error) {
	if f.findNewestValidFn != nil {
		return f.findNewestValidFn(ctx, email, purpose)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeCodesRepo) Consume(ctx context.Context, id int64) error {
	f.consumedIDs = append(f.consumedIDs, id)
	return nil
}

type fakeFlowsRepo struct {
	getRegistrationFn    func(ctx context.Context, token string) (*models.RegistrationFlow, error)
	getChallengeFn       func(ctx context.Context, id string) (*models.LoginChallenge, error)
	consumeChallengeFn   func(ctx context.Context, id string) (*models.LoginChallenge, error)
	createdChallengeCode string
	consumedChallengeIDs []string
	deletedTokens        []string
}

func (f *fakeFlowsRepo) CreateRegistration(context.Context, string, string, time.Duration) error {
	return nil
}
func (f *fakeFlowsRepo) GetRegistration(ctx context.Context, token string) (*models.RegistrationFlow, error) {
	if f.getRegistrationFn != nil {
		return f.getRegistrationFn(ctx, token)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeFlowsRepo) SetRegistrationPassword(context.Context, string, string) error { return nil }
func (f *fakeFlowsRepo) DeleteRegistration(ctx context.Context, token string) error {
	f.deletedTokens = append(f.deletedTokens, token)
	return nil
}
func (f *fakeFlowsRepo) CreateChallenge(ctx context.Context, id string, userID int64, code string, ttl time.Duration) error {
	f.createdChallengeCode = code
	return nil
}
func (f *fakeFlowsRepo) GetChallenge(ctx context.Context, id string) (*models.LoginChallenge, error) {
	if f.getChallengeFn != nil {
		return f.getChallengeFn(ctx, id)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeFlowsRepo) ConsumeChallenge(ctx context.Context, id string) (*models.LoginChallenge, error) {
	f.consumedChallengeIDs = append(f.consumedChallengeIDs, id)
	if f.consumeChallengeFn != nil {
		return f.consumeChallengeFn(ctx, id)
	}
	if f.getChallengeFn != nil {
		return f.getChallengeFn(ctx, id)
	}
	return nil, common.ErrorNotFound
}

type fakeSessionsRepo struct {
	createFn          func(ctx context.Context, s *models.Session) error
	findActiveFn      func(ctx context.Context, refreshHash string) (*models.Session, error)
	rotateFn          func(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (bool, error)
	revokedSessionIDs []string
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.Session) error {
	if f.createFn != nil {
		return f.createFn(ctx, s)
	}
	return nil
}
func (f *fakeSessionsRepo) FindActiveByRefreshHash(ctx context.Context, refreshHash string) (*models.Session, error) {
	if f.findActiveFn != nil {
		return f.findActiveFn(ctx, refreshHash)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeSessionsRepo) Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	if f.rotateFn != nil {
		return f.rotateFn(ctx, sessionID, oldHash, newHash, expiresAt)
	}
	return true, nil
}
func (f *fakeSessionsRepo) Revoke(ctx context.Context, sessionID string) error {
	f.revokedSessionIDs = append(f.revokedSessionIDs, sessionID)
	return nil
}
func (f *fakeSessionsRepo) RevokeForUser(ctx context.Context, sessionID string, userID int64) error {
	f.revokedSessionIDs = append(f.revokedSessionIDs, sessionID)
	return nil
}
func (f *fakeSessionsRepo) ListByUser(context.Context, int64) ([]models.Session, error) {
	return nil, nil
}

type fakeBansRepo struct {
	findActiveFn func(ctx context.Context, scope bansrepo.Scope, value string) (*models.Ban, error)
}

func (f *fakeBansRepo) FindActive(ctx context.Context, scope bansrepo.Scope, value string) (*models.Ban, error) {
	if f.findActiveFn != nil {
		return f.findActiveFn(ctx, scope, value)
	}
	return nil, common.ErrorNotFound
}

type fakeChatsRepo struct {
	createDirectFn   func(ctx context.Context, id, directKey string) (bool, error)
	getByDirectKeyFn func(ctx context.Context, directKey string) (*models.Chat, error)
	isMemberFn       func(ctx context.Context, chatID string, userID int64) (bool, error)
	listForUserFn    func(ctx context.Context, userID int64, tab models.ChatListTab) ([]models.ChatSummary, error)
	addedMembers     []int64
	touchedChats     []string
}

func (f *fakeChatsRepo) CreateDirect(ctx context.Context, id, directKey string) (bool, error) {
	if f.createDirectFn != nil {
		return f.createDirectFn(ctx, id, directKey)
	}
	return true, nil
}
func (f *fakeChatsRepo) GetByDirectKey(ctx context.Context, directKey string) (*models.Chat, error) {
	if f.getByDirectKeyFn != nil {
		return f.getByDirectKeyFn(ctx, directKey)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeChatsRepo) GetByID(context.Context, string) (*models.Chat, error) {
	return nil, common.ErrorNotFound
}
func (f *fakeChatsRepo) AddMember(ctx context.Context, chatID string, userID int64) error {
	f.addedMembers = append(f.addedMembers, userID)
	return nil
}
func (f *fakeChatsRepo) IsMember(ctx context.Context, chatID string, userID int64) (bool, error) {
	if f.isMemberFn != nil {
		return f.isMemberFn(ctx, chatID, userID)
	}
	return true, nil
}
func (f *fakeChatsRepo) GetMember(context.Context, string, int64) (*models.ChatMember, error) {
	return nil, common.ErrorNotFound
}
func (f *fakeChatsRepo) UpdatePreferences(context.Context, string, int64, *models.ChatPreferences) error {
	return nil
}
func (f *fakeChatsRepo) ListForUser(ctx context.Context, userID int64, tab models.ChatListTab) ([]models.ChatSummary, error) {
	if f.listForUserFn != nil {
		return f.listForUserFn(ctx, userID, tab)
	}
	return nil, nil
}
func (f *fakeChatsRepo) DirectPeerID(context.Context, string, int64) (int64, error) {
	return 0, common.ErrorNotFound
}
func (f *fakeChatsRepo) TouchUpdatedAt(ctx context.Context, chatID string) error {
	f.touchedChats = append(f.touchedChats, chatID)
	return nil
}

type fakeMessagesRepo struct {
	createFn         func(ctx context.Context, m *models.Message) error
	getByIDFn        func(ctx context.Context, id string) (*models.Message, error)
	listForUserFn    func(ctx context.Context, chatID string, userID int64, before time.Time, limit int) ([]models.Message, error)
	toggleReactionFn func(ctx context.Context, id string, userID int64, emoji string) (bool, error)
	hiddenFor        []int64
	deleted          []string
}

func (f *fakeMessagesRepo) Create(ctx context.Context, m *models.Message) error {
	if f.createFn != nil {
		return f.createFn(ctx, m)
	}
	m.CreatedAt = time.Now()
	return nil
}
func (f *fakeMessagesRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, common.ErrorNotFound
}
func (f *fakeMessagesRepo) UpdateText(context.Context, string, int64, string) (*models.Message, error) {
	return nil, common.ErrorNotFound
}
func (f *fakeMessagesRepo) Delete(ctx context.Context, id string, senderID int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeMessagesRepo) Hide(ctx context.Context, id string, userID int64) error {
	f.hiddenFor = append(f.hiddenFor, userID)
	return nil
}
func (f *fakeMessagesRepo) ListForUser(ctx context.Context, chatID string, userID int64, before time.Time, limit int) ([]models.Message, error) {
	if f.listForUserFn != nil {
		return f.listForUserFn(ctx, chatID, userID, before, limit)
	}
	return nil, nil
}
func (f *fakeMessagesRepo) ToggleReaction(ctx context.Context, id string, userID int64, emoji string) (bool, error) {
	if f.toggleReactionFn != nil {
		return f.toggleReactionFn(ctx, id, userID, emoji)
	}
	return true, nil
}
func (f *fakeMessagesRepo) ReactionsFor(context.Context, string) ([]models.Reaction, error) {
	return nil, nil
}
func (f *fakeMessagesRepo) Search(context.Context, string, int64, string, int) ([]models.Message, error) {
	return nil, nil
}
func (f *fakeMessagesRepo) SearchAll(context.Context, int64, string, int) ([]models.Message, error) {
	return nil, nil
}

type fakeKeysRepo struct {
	bundle     *models.KeyBundle
	setPrekeys [][]string
}

func (f *fakeKeysRepo) Upsert(ctx context.Context, b *models.KeyBundle) error {
	f.bundle = b
	return nil
}
func (f *fakeKeysRepo) Get(ctx context.Context, userID int64) (*models.KeyBundle, error) {
	if f.bundle == nil {
		return nil, common.ErrorNotFound
	}
	return f.bundle, nil
}
func (f *fakeKeysRepo) GetForUpdate(ctx context.Context, userID int64) (*models.KeyBundle, error) {
	return f.Get(ctx, userID)
}
func (f *fakeKeysRepo) SetPrekeys(ctx context.Context, userID int64, prekeys []string) error {
	f.setPrekeys = append(f.setPrekeys, prekeys)
	f.bundle.OneTimePrekeys = prekeys
	return nil
}

type fakeCallsRepo struct {
	listForUserFn func(ctx context.Context, userID int64, limit int) ([]models.CallLog, error)
	created       []*models.CallLog
}

func (f *fakeCallsRepo) Create(ctx context.Context, log *models.CallLog) error {
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	f.created = append(f.created, log)
	return nil
}
func (f *fakeCallsRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]models.CallLog, error) {
	if f.listForUserFn != nil {
		return f.listForUserFn(ctx, userID, limit)
	}
	return nil, nil
}

type fakeRepoManager struct {
	users    *fakeUsersRepo
	codes    *fakeCodesRepo
	flows    *fakeFlowsRepo
	sessions *fakeSessionsRepo
	bans     *fakeBansRepo
	calls    *fakeCallsRepo
	chats    *fakeChatsRepo
	messages *fakeMessagesRepo
	keys     *fakeKeysRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    &fakeUsersRepo{},
		codes:    &fakeCodesRepo{},
		flows:    &fakeFlowsRepo{},
		sessions: &fakeSessionsRepo{},
		bans:     &fakeBansRepo{},
		calls:    &fakeCallsRepo{},
		chats:    &fakeChatsRepo{},
		messages: &fakeMessagesRepo{},
		keys:     &fakeKeysRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error      { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository            { return m.users }
func (m *fakeRepoManager) Codes(db dbx.DBTX) codesrepo.Repository            { return m.codes }
func (m *fakeRepoManager) Flows(db dbx.DBTX) flowsrepo.Repository            { return m.flows }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository      { return m.sessions }
func (m *fakeRepoManager) Bans(db dbx.DBTX) bansrepo.Repository              { return m.bans }
func (m *fakeRepoManager) Calls(db dbx.DBTX) callsrepo.Repository            { return m.calls }
func (m *fakeRepoManager) Chats(db dbx.DBTX) chatsrepo.Repository            { return m.chats }
func (m *fakeRepoManager) Messages(db dbx.DBTX) messagesrepo.Repository      { return m.messages }
func (m *fakeRepoManager) Keys(db dbx.DBTX) keysrepo.Repository              { return m.keys }

// fakePublisher records emitted events.
type fakePublisher struct {
	chatEvents []publishedEvent
	userEvents []publishedEvent
}

type publishedEvent struct {
	target  string
	event   string
	payload any
}

func (p *fakePublisher) PublishToChat(chatID string, event string, payload any) {
	p.chatEvents = append(p.chatEvents, publishedEvent{target: chatID, event: event, payload: payload})
}

func (p *fakePublisher) PublishToUser(userID int64, event string, payload any) {
	p.userEvents = append(p.userEvents, publishedEvent{event: event, payload: payload})
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger          { return n }

// fakeSender records outbound codes.
type fakeSender struct {
	sentTo    []string
	sentCodes []string
	err       error
}

func (f *fakeSender) SendCode(ctx context.Context, to, code, purpose string) error {
	if f.err != nil {
		return f.err
	}
	f.sentTo = append(f.sentTo, to)
	f.sentCodes = append(f.sentCodes, code)
	return nil
}
