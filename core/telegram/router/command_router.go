package router

import (
	"log/slog"

	"github.com/m3rciful/botgate/core/logger"
	tg "github.com/m3rciful/botgate/core/telegram"
	"github.com/m3rciful/botgate/core/telegram/middleware"
)

// CommandRoutes turns every registered command into a route wrapped with the
// recover and logging middleware.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(def.Handler)),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
