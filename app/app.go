package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	corebootstrap "github.com/m3rciful/botgate/core/bootstrap"
	corecmd "github.com/m3rciful/botgate/core/cmd"
	tg "github.com/m3rciful/botgate/core/telegram"
	"github.com/m3rciful/botgate/core/telegram/router"
	"github.com/m3rciful/botgate/core/telegram/state"
	"github.com/m3rciful/botgate/platform"
	"github.com/m3rciful/botgate/registration"
	"github.com/m3rciful/botgate/storage"
	"github.com/m3rciful/botgate/webhook"
)

// App is the assembled gateway: persistence, upstream clients and the
// registration flow behind a Telegram surface.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	sessions state.Manager
	svc      *registration.Service
	sweeper  *sessionSweeper
}

// Bootstrap initializes infrastructure and assembles the application.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	res, err := corebootstrap.Run(corebootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	sessions := state.NewMemoryManager()
	store := storage.NewStore(res.DB)
	client := platform.NewClient(cfg.Core.Telegram.APIURL, tg.BuildHTTPClient())
	registrar := webhook.NewRegistrar(cfg.Core.Gateway.ServiceURL)
	svc := registration.NewService(store, client, registrar, sessions)

	a := &App{
		cfg:      cfg,
		db:       res.DB,
		sessions: sessions,
		svc:      svc,
	}

	if ttlMin := cfg.Core.Gateway.SessionTTLMinutes; ttlMin > 0 {
		sweeper, err := newSessionSweeper(sessions, time.Duration(ttlMin)*time.Minute)
		if err != nil {
			_ = res.DB.Close()
			return nil, err
		}
		a.sweeper = sweeper
	}

	return a, nil
}

// TelegramRunOptions builds the bot runtime wiring for the cmd harness.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.registerHandlers(reg); err != nil {
		return tg.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Core, onRateLimited),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			if a.sweeper != nil {
				a.sweeper.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			if a.sweeper != nil {
				a.sweeper.Stop()
			}
			return a.db.Close()
		},
	}, nil
}
