package registration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/botgate/core/telegram/state"
	"github.com/m3rciful/botgate/platform"
	"github.com/m3rciful/botgate/storage"
)

type fakeStore struct {
	users   map[int64]*storage.User
	bots    []storage.Bot
	nextID  int64
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]*storage.User)}
}

func (f *fakeStore) FindUserByTelegramID(_ context.Context, telegramID int64) (*storage.User, error) {
	if u, ok := f.users[telegramID]; ok {
		return u, nil
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, telegramID int64) (*storage.User, error) {
	if _, ok := f.users[telegramID]; ok {
		return nil, storage.ErrUserExists
	}
	f.nextID++
	u := &storage.User{ID: f.nextID, TelegramID: telegramID}
	f.users[telegramID] = u
	return u, nil
}

func (f *fakeStore) CreateBot(_ context.Context, token string, userID int64) (*storage.Bot, error) {
	for _, b := range f.bots {
		if b.Token == token {
			return nil, storage.ErrTokenTaken
		}
	}
	f.nextID++
	b := storage.Bot{ID: f.nextID, Token: token, UserID: userID}
	f.bots = append(f.bots, b)
	return &b, nil
}

func (f *fakeStore) ListBotsByUser(_ context.Context, userID int64) ([]storage.Bot, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []storage.Bot
	for _, b := range f.bots {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeChecker struct {
	verdicts map[string]platform.Status
	errs     map[string]error
	batchErr error
}

func (f *fakeChecker) CheckToken(_ context.Context, token string) (platform.Status, error) {
	if err, ok := f.errs[token]; ok {
		return platform.Status{}, err
	}
	return f.verdicts[token], nil
}

func (f *fakeChecker) FetchAll(ctx context.Context, tokens []string) ([]platform.Status, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]platform.Status, len(tokens))
	for i, tok := range tokens {
		st, err := f.CheckToken(ctx, tok)
		if err != nil {
			return nil, &platform.BatchError{}
		}
		out[i] = st
	}
	return out, nil
}

type fakeRegistrar struct {
	tokens []string
}

func (f *fakeRegistrar) Register(_ context.Context, token string) {
	f.tokens = append(f.tokens, token)
}

func okStatus(id int64, name string) platform.Status {
	return platform.Status{OK: true, Bot: &platform.BotProfile{ID: id, IsBot: true, FirstName: name}}
}

func newTestService(store *fakeStore, checker *fakeChecker, reg *fakeRegistrar) (*Service, state.Manager) {
	sessions := state.NewMemoryManager()
	return NewService(store, checker, reg, sessions), sessions
}

func TestStartCreatesUserOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc, sessions := newTestService(store, &fakeChecker{}, &fakeRegistrar{})

	reply, err := svc.Start(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, ReplyRegistered, reply)
	assert.Len(t, store.users, 1)
	assert.Equal(t, StateAwaitingToken, sessions.GetState(100))

	reply, err = svc.Start(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, ReplyAlreadyRegistered, reply)
	assert.Len(t, store.users, 1, "second /start must not duplicate the user")
}

func TestAddBotAlwaysEntersAwaitingToken(t *testing.T) {
	ctx := context.Background()
	svc, sessions := newTestService(newFakeStore(), &fakeChecker{}, &fakeRegistrar{})

	// Even for a user who never ran /start.
	reply := svc.AddBot(ctx, 200)
	assert.Equal(t, ReplyAskToken, reply)
	assert.Equal(t, StateAwaitingToken, sessions.GetState(200))
	assert.True(t, svc.InProgress(200))
}

func TestSubmitTokenSuccess(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	checker := &fakeChecker{verdicts: map[string]platform.Status{
		"1:A": okStatus(1, "Alpha"),
	}}
	reg := &fakeRegistrar{}
	svc, sessions := newTestService(store, checker, reg)

	svc.AddBot(ctx, 300)
	reply, err := svc.SubmitToken(ctx, 300, "1:A")
	require.NoError(t, err)
	assert.Equal(t, ReplyBotLinked, reply)

	assert.Len(t, store.bots, 1)
	assert.Equal(t, []string{"1:A"}, reg.tokens, "webhook must be registered for the bound token")
	assert.Equal(t, state.StateIdle, sessions.GetState(300), "success must leave the conversation")
	assert.Len(t, store.users, 1, "submit must create the user when /start was skipped")
}

func TestSubmitTokenRejectedKeepsWaiting(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	checker := &fakeChecker{verdicts: map[string]platform.Status{
		"bad": {OK: false},
	}}
	reg := &fakeRegistrar{}
	svc, sessions := newTestService(store, checker, reg)

	svc.AddBot(ctx, 400)
	reply, err := svc.SubmitToken(ctx, 400, "bad")
	require.NoError(t, err)
	assert.Equal(t, ReplyInvalidToken, reply)

	assert.Empty(t, store.bots, "a rejected token must not be persisted")
	assert.Empty(t, reg.tokens)
	assert.Equal(t, StateAwaitingToken, sessions.GetState(400), "user may retry immediately")
}

func TestSubmitTokenTakenKeepsWaiting(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	checker := &fakeChecker{verdicts: map[string]platform.Status{
		"1:A": okStatus(1, "Alpha"),
	}}
	reg := &fakeRegistrar{}
	svc, sessions := newTestService(store, checker, reg)

	// First owner binds the token.
	svc.AddBot(ctx, 500)
	_, err := svc.SubmitToken(ctx, 500, "1:A")
	require.NoError(t, err)

	// Second owner tries the same token.
	svc.AddBot(ctx, 501)
	reply, err := svc.SubmitToken(ctx, 501, "1:A")
	require.NoError(t, err)
	assert.Equal(t, ReplyTokenTaken, reply)

	assert.Len(t, store.bots, 1)
	assert.Len(t, reg.tokens, 1, "the conflicting attempt must not trigger webhook activation")
	assert.Equal(t, StateAwaitingToken, sessions.GetState(501))
}

func TestSubmitTokenTransportFault(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	checker := &fakeChecker{errs: map[string]error{
		"1:A": &platform.TransportError{Op: "getMe", Err: errors.New("connection refused")},
	}}
	reg := &fakeRegistrar{}
	svc, sessions := newTestService(store, checker, reg)

	svc.AddBot(ctx, 600)
	reply, err := svc.SubmitToken(ctx, 600, "1:A")
	require.NoError(t, err, "a transport fault is converted, not propagated")
	assert.Equal(t, ReplyTryLater, reply)

	assert.Empty(t, store.bots)
	assert.Empty(t, reg.tokens)
	assert.Equal(t, StateAwaitingToken, sessions.GetState(600))
}

func TestListBotsPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	checker := &fakeChecker{verdicts: map[string]platform.Status{
		"1:A": okStatus(1, "Alpha"),
		"2:B": okStatus(2, "Beta"),
		"3:C": okStatus(3, "Gamma"),
	}}
	reg := &fakeRegistrar{}
	svc, _ := newTestService(store, checker, reg)

	require.Equal(t, ReplyAskToken, svc.AddBot(ctx, 700))
	for _, tok := range []string{"1:A", "2:B", "3:C"} {
		svc.AddBot(ctx, 700)
		_, err := svc.SubmitToken(ctx, 700, tok)
		require.NoError(t, err)
	}

	entries, reply, err := svc.ListBots(ctx, 700)
	require.NoError(t, err)
	assert.Equal(t, ReplyNone, reply)
	require.Len(t, entries, 3)
	assert.Equal(t, "Alpha", entries[0].Name)
	assert.Equal(t, "Beta", entries[1].Name)
	assert.Equal(t, "Gamma", entries[2].Name)
	assert.Equal(t, int64(2), entries[1].BotID)
}

func TestListBotsEmptyAndUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeChecker{}, &fakeRegistrar{})

	// Unregistered user.
	entries, reply, err := svc.ListBots(ctx, 800)
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.Equal(t, ReplyNone, reply)

	// Registered user without bots.
	_, err = svc.Start(ctx, 800)
	require.NoError(t, err)
	entries, reply, err = svc.ListBots(ctx, 800)
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.Equal(t, ReplyNone, reply)
}

func TestListBotsRevokedTokenEntry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	checker := &fakeChecker{verdicts: map[string]platform.Status{
		"1:A": okStatus(1, "Alpha"),
		"2:B": okStatus(2, "Beta"),
	}}
	reg := &fakeRegistrar{}
	svc, _ := newTestService(store, checker, reg)

	for _, tok := range []string{"1:A", "2:B"} {
		svc.AddBot(ctx, 850)
		_, err := svc.SubmitToken(ctx, 850, tok)
		require.NoError(t, err)
	}

	// The second token is revoked upstream after binding.
	checker.verdicts["2:B"] = platform.Status{OK: false}

	entries, reply, err := svc.ListBots(ctx, 850)
	require.NoError(t, err, "one revoked token must not fail the listing")
	assert.Equal(t, ReplyNone, reply)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alpha", entries[0].Name)
	assert.Equal(t, "unknown", entries[1].Name)
	assert.Zero(t, entries[1].BotID)
}

func TestListBotsBatchFault(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	checker := &fakeChecker{verdicts: map[string]platform.Status{
		"1:A": okStatus(1, "Alpha"),
	}}
	reg := &fakeRegistrar{}
	svc, _ := newTestService(store, checker, reg)

	svc.AddBot(ctx, 900)
	_, err := svc.SubmitToken(ctx, 900, "1:A")
	require.NoError(t, err)

	checker.batchErr = &platform.BatchError{}
	entries, reply, err := svc.ListBots(ctx, 900)
	require.NoError(t, err)
	assert.Nil(t, entries, "no partial directory on a failed batch")
	assert.Equal(t, ReplyTryLater, reply)
}
