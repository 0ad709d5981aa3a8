package storage

import "time"

// User is an operator who talks to the gateway bot.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Bot is a bound bot credential owned by a user. ChatID stays NULL until a
// group is linked to the bot.
type Bot struct {
	ID        int64     `db:"id"`
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	ChatID    *int64    `db:"chat_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Chat is an external group chat a bot can be linked to.
type Chat struct {
	ID             int64 `db:"id"`
	ExternalChatID int64 `db:"external_chat_id"`
}
