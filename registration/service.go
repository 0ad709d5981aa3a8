package registration

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/m3rciful/botgate/core/logger"
	"github.com/m3rciful/botgate/core/telegram/state"
	"github.com/m3rciful/botgate/platform"
	"github.com/m3rciful/botgate/storage"
)

// StateAwaitingToken marks a user whose next message is consumed as a bot token.
const StateAwaitingToken = state.State("awaiting_token")

const component = "registration"

// Reply is the outcome signal of a conversation event. The presentation
// layer maps replies to user-facing texts.
type Reply int

const (
	// ReplyNone means the event produced no user-facing message.
	ReplyNone Reply = iota
	// ReplyRegistered greets a newly created user and asks for a token.
	ReplyRegistered
	// ReplyAlreadyRegistered tells a returning user they already exist.
	ReplyAlreadyRegistered
	// ReplyAskToken prompts the user to send a bot token.
	ReplyAskToken
	// ReplyInvalidToken reports an upstream-rejected token; the flow keeps waiting.
	ReplyInvalidToken
	// ReplyTokenTaken reports a token already bound to someone; the flow keeps waiting.
	ReplyTokenTaken
	// ReplyBotLinked confirms a successful binding.
	ReplyBotLinked
	// ReplyTryLater is the generic verdict for transport-level faults.
	ReplyTryLater
)

// Store is the persistence surface the registration flow needs.
type Store interface {
	FindUserByTelegramID(ctx context.Context, telegramID int64) (*storage.User, error)
	CreateUser(ctx context.Context, telegramID int64) (*storage.User, error)
	CreateBot(ctx context.Context, token string, userID int64) (*storage.Bot, error)
	ListBotsByUser(ctx context.Context, userID int64) ([]storage.Bot, error)
}

// TokenChecker validates tokens against the upstream Bot API.
type TokenChecker interface {
	CheckToken(ctx context.Context, token string) (platform.Status, error)
	FetchAll(ctx context.Context, tokens []string) ([]platform.Status, error)
}

// Registrar activates webhooks for freshly bound tokens.
type Registrar interface {
	Register(ctx context.Context, token string)
}

// BotEntry is a directory listing row: upstream identity of a bound bot.
type BotEntry struct {
	BotID int64
	Name  string
}

// Service owns the registration conversation: user bookkeeping, the
// awaiting-token state, token validation, binding and webhook activation.
type Service struct {
	store    Store
	checker  TokenChecker
	webhooks Registrar
	sessions state.Manager
}

// NewService wires the registration flow.
func NewService(store Store, checker TokenChecker, webhooks Registrar, sessions state.Manager) *Service {
	return &Service{
		store:    store,
		checker:  checker,
		webhooks: webhooks,
		sessions: sessions,
	}
}

// Start handles /start: creates the user on first contact, greets a
// returning user otherwise. A new user is immediately asked for a token.
func (s *Service) Start(ctx context.Context, telegramID int64) (Reply, error) {
	_, err := s.store.FindUserByTelegramID(ctx, telegramID)
	switch {
	case err == nil:
		return ReplyAlreadyRegistered, nil
	case errors.Is(err, storage.ErrUserNotFound):
	default:
		return ReplyTryLater, fmt.Errorf("start: %w", err)
	}

	if _, err := s.store.CreateUser(ctx, telegramID); err != nil {
		// A concurrent /start may have won the insert; treat it as registered.
		if errors.Is(err, storage.ErrUserExists) {
			return ReplyAlreadyRegistered, nil
		}
		return ReplyTryLater, fmt.Errorf("start: %w", err)
	}

	logger.Info(ctx, component, "user.registered", slog.Int64("user_id", telegramID))
	s.sessions.SetState(telegramID, StateAwaitingToken)
	return ReplyRegistered, nil
}

// AddBot handles /add_bot: unconditionally enters the awaiting-token state.
func (s *Service) AddBot(ctx context.Context, telegramID int64) Reply {
	s.sessions.SetState(telegramID, StateAwaitingToken)
	logger.Debug(ctx, component, "state.awaiting_token", slog.Int64("user_id", telegramID))
	return ReplyAskToken
}

// SubmitToken consumes a message sent while awaiting a token. Rejections and
// uniqueness conflicts keep the state so the user can retry immediately;
// only success leaves the conversation.
func (s *Service) SubmitToken(ctx context.Context, telegramID int64, token string) (Reply, error) {
	st, err := s.checker.CheckToken(ctx, token)
	if err != nil {
		var te *platform.TransportError
		if errors.As(err, &te) {
			logger.Error(ctx, component, "token.check_fault",
				slog.Int64("user_id", telegramID),
				slog.String("fault", "transport"),
				slog.String("err", logger.RedactToken(err.Error())),
			)
			return ReplyTryLater, nil
		}
		return ReplyTryLater, fmt.Errorf("submit token: %w", err)
	}
	if !st.OK {
		logger.Info(ctx, component, "token.rejected", slog.Int64("user_id", telegramID))
		return ReplyInvalidToken, nil
	}

	user, err := s.findOrCreateUser(ctx, telegramID)
	if err != nil {
		return ReplyTryLater, fmt.Errorf("submit token: %w", err)
	}

	bot, err := s.store.CreateBot(ctx, token, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenTaken) {
			logger.Info(ctx, component, "token.taken", slog.Int64("user_id", telegramID))
			return ReplyTokenTaken, nil
		}
		return ReplyTryLater, fmt.Errorf("submit token: %w", err)
	}

	// Webhook activation is fire-and-forget; the user is never blocked on it.
	s.webhooks.Register(ctx, token)

	s.sessions.ClearState(telegramID)
	logger.Info(ctx, component, "bot.linked",
		slog.Int64("user_id", telegramID),
		slog.Int64("bot_id", bot.ID),
	)
	return ReplyBotLinked, nil
}

// ListBots handles /my_bots: resolves every bound token to its upstream
// identity, preserving insertion order. A batch failure yields ReplyTryLater.
func (s *Service) ListBots(ctx context.Context, telegramID int64) ([]BotEntry, Reply, error) {
	user, err := s.store.FindUserByTelegramID(ctx, telegramID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ReplyNone, nil
	}
	if err != nil {
		return nil, ReplyTryLater, fmt.Errorf("list bots: %w", err)
	}

	bots, err := s.store.ListBotsByUser(ctx, user.ID)
	if err != nil {
		return nil, ReplyTryLater, fmt.Errorf("list bots: %w", err)
	}
	if len(bots) == 0 {
		return nil, ReplyNone, nil
	}

	tokens := make([]string, len(bots))
	for i, b := range bots {
		tokens[i] = b.Token
	}

	statuses, err := s.checker.FetchAll(ctx, tokens)
	if err != nil {
		logger.Error(ctx, component, "directory.batch_fault",
			slog.Int64("user_id", telegramID),
			slog.Int("count", len(tokens)),
			slog.String("err", logger.RedactToken(err.Error())),
		)
		return nil, ReplyTryLater, nil
	}

	entries := make([]BotEntry, 0, len(bots))
	for _, st := range statuses {
		entry := BotEntry{Name: "unknown"}
		if st.OK && st.Bot != nil {
			entry.BotID = st.Bot.ID
			entry.Name = st.Bot.FirstName
		}
		entries = append(entries, entry)
	}
	return entries, ReplyNone, nil
}

// InProgress reports whether the user's next message is a token.
func (s *Service) InProgress(telegramID int64) bool {
	return s.sessions.GetState(telegramID) == StateAwaitingToken
}

func (s *Service) findOrCreateUser(ctx context.Context, telegramID int64) (*storage.User, error) {
	user, err := s.store.FindUserByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, err
	}
	user, err = s.store.CreateUser(ctx, telegramID)
	if errors.Is(err, storage.ErrUserExists) {
		return s.store.FindUserByTelegramID(ctx, telegramID)
	}
	return user, err
}
