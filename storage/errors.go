package storage

import "errors"

var (
	// ErrTokenTaken indicates the bot token is already bound to some user.
	ErrTokenTaken = errors.New("storage: bot token already taken")
	// ErrUserExists indicates a user row with this telegram id already exists.
	ErrUserExists = errors.New("storage: user already exists")
	// ErrUserNotFound indicates the user is not registered.
	ErrUserNotFound = errors.New("storage: user not found")
)
