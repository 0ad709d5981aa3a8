package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/botgate/core/logger"
	"github.com/m3rciful/botgate/core/telegram/state"
)

// sessionSweeper periodically resets conversations that sat in the
// awaiting-token state longer than the configured TTL.
type sessionSweeper struct {
	cron     *cron.Cron
	sessions state.Manager
	ttl      time.Duration
}

func newSessionSweeper(sessions state.Manager, ttl time.Duration) (*sessionSweeper, error) {
	s := &sessionSweeper{
		cron:     cron.New(),
		sessions: sessions,
		ttl:      ttl,
	}
	if _, err := s.cron.AddFunc("@every 1m", s.sweep); err != nil {
		return nil, fmt.Errorf("session sweeper: %w", err)
	}
	return s, nil
}

func (s *sessionSweeper) Start() {
	s.cron.Start()
	logger.Info(context.Background(), "sweep", "started",
		slog.Duration("ttl", s.ttl),
	)
}

func (s *sessionSweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *sessionSweeper) sweep() {
	expired := s.sessions.ExpireIdle(s.ttl)
	if expired > 0 {
		logger.Info(context.Background(), "sweep", "sessions.expired",
			slog.Int("count", expired),
		)
	}
}
