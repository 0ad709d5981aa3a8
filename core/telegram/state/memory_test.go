package state

import (
	"testing"
	"time"
)

func TestMemoryManagerStateTransitions(t *testing.T) {
	mgr := NewMemoryManager()
	const userID int64 = 42

	if got := mgr.GetState(userID); got != StateIdle {
		t.Fatalf("expected idle state for unknown user, got %q", got)
	}
	if mgr.InProgress(userID) {
		t.Fatal("unknown user must not be in progress")
	}

	awaiting := State("awaiting_token")
	mgr.SetState(userID, awaiting)
	if got := mgr.GetState(userID); got != awaiting {
		t.Fatalf("expected %q, got %q", awaiting, got)
	}
	if !mgr.InProgress(userID) {
		t.Fatal("user with active state must be in progress")
	}

	mgr.ClearState(userID)
	if got := mgr.GetState(userID); got != StateIdle {
		t.Fatalf("expected idle after clear, got %q", got)
	}
	if mgr.InProgress(userID) {
		t.Fatal("cleared user must not be in progress")
	}
}

func TestMemoryManagerExpireIdle(t *testing.T) {
	mgr := NewMemoryManager()

	mgr.SetState(1, State("awaiting_token"))
	mgr.SetState(2, State("awaiting_token"))

	// Fresh sessions must survive the sweep.
	if n := mgr.ExpireIdle(time.Hour); n != 0 {
		t.Fatalf("expected 0 expired, got %d", n)
	}

	// Backdate one session and sweep again.
	mm := mgr.(*memoryManager)
	mm.mu.Lock()
	mm.sessions[1].LastActivity = time.Now().Add(-2 * time.Hour)
	mm.mu.Unlock()

	if n := mgr.ExpireIdle(time.Hour); n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	if got := mgr.GetState(1); got != StateIdle {
		t.Fatalf("expired session must be idle, got %q", got)
	}
	if got := mgr.GetState(2); got != State("awaiting_token") {
		t.Fatalf("fresh session must keep its state, got %q", got)
	}
}
