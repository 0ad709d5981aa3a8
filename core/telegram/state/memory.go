package state

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/botgate/core/logger"
	tghelpers "github.com/m3rciful/botgate/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	handlers map[State]tele.HandlerFunc
}

// NewMemoryManager returns an in-memory Manager. Sessions do not survive a
// restart; an interrupted conversation simply starts over.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// session returns the user's session, creating it when missing. Callers must
// hold the write lock. Every access refreshes LastActivity.
func (m *memoryManager) session(userID int64) *Session {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{State: StateIdle}
		m.sessions[userID] = sess
	}
	sess.LastActivity = time.Now()
	return sess
}

func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).State = st
}

func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

// ClearState returns the user to idle.
func (m *memoryManager) ClearState(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		sess.State = StateIdle
		sess.LastActivity = time.Now()
	}
}

func (m *memoryManager) HasState(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	return ok && sess.State != StateIdle
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.HasState(userID)
}

// Handle registers h for state st, replacing any previous handler.
func (m *memoryManager) Handle(st State, h tele.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// ExpireIdle drops non-idle sessions untouched for longer than olderThan.
// An abandoned token prompt should not hold the user hostage forever.
func (m *memoryManager) ExpireIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for userID, sess := range m.sessions {
		if sess.State != StateIdle && sess.LastActivity.Before(cutoff) {
			delete(m.sessions, userID)
			expired++
		}
	}
	return expired
}

// ManagerHandler routes the update to the handler registered for the user's
// current state. No handler means the update is dropped quietly.
func (m *memoryManager) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := m.GetState(userID)

	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)

	m.mu.RLock()
	handler := m.handlers[current]
	m.mu.RUnlock()
	if handler == nil {
		return nil
	}
	return handler(c)
}
