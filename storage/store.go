package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/botgate/core/logger"
)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users, bots and chats.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an established database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// FindUserByTelegramID returns the user registered with the given Telegram id.
// Returns ErrUserNotFound if no such user exists.
func (s *Store) FindUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, telegram_id, created_at FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by telegram id: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user row. A duplicate telegram id maps to ErrUserExists.
func (s *Store) CreateUser(ctx context.Context, telegramID int64) (*User, error) {
	start := time.Now()
	var u User
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &u,
			`INSERT INTO users (telegram_id) VALUES ($1) RETURNING id, telegram_id, created_at`,
			telegramID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logger.DB.LogAttrs(ctx, slog.LevelDebug, "user.created",
		slog.Int64("user_id", u.ID),
		slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
	)
	return &u, nil
}

// CreateBot inserts a bot bound to the owning user. A duplicate token maps to
// ErrTokenTaken; the row stays absent in that case.
func (s *Store) CreateBot(ctx context.Context, token string, userID int64) (*Bot, error) {
	start := time.Now()
	var b Bot
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &b,
			`INSERT INTO bots (token, user_id) VALUES ($1, $2)
			 RETURNING id, token, user_id, chat_id, created_at`,
			token, userID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTokenTaken
		}
		return nil, fmt.Errorf("create bot: %w", err)
	}
	logger.DB.LogAttrs(ctx, slog.LevelDebug, "bot.created",
		slog.Int64("bot_id", b.ID),
		slog.Int64("user_id", b.UserID),
		slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
	)
	return &b, nil
}

// ListBotsByUser returns all bots owned by the user in insertion order.
func (s *Store) ListBotsByUser(ctx context.Context, userID int64) ([]Bot, error) {
	var bots []Bot
	err := s.db.SelectContext(ctx, &bots,
		`SELECT id, token, user_id, chat_id, created_at FROM bots WHERE user_id = $1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list bots by user: %w", err)
	}
	return bots, nil
}

// inTx runs fn inside a transaction with deferred rollback on failure.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
