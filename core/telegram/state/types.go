package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State names one step of a conversation.
type State string

// StateIdle means no conversation is in progress.
const StateIdle State = "idle"

// Session is one user's conversation: the current step and the last time
// the user touched it.
type Session struct {
	State        State
	LastActivity time.Time
}

// Manager owns the sessions and the per-state handlers.
type Manager interface {
	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool
	ClearState(userID int64)

	// Handle registers the handler invoked while a user sits in st.
	Handle(st State, h tele.HandlerFunc)

	// ExpireIdle drops sessions untouched for longer than olderThan and
	// reports how many were dropped.
	ExpireIdle(olderThan time.Duration) int

	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}
