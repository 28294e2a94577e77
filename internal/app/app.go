package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"todo-sync-go/internal/config"
	"todo-sync-go/internal/transport/httpserver"
	"todo-sync-go/internal/transport/httpserver/handler"
	"todo-sync-go/internal/transport/httpserver/handler/collections"
	"todo-sync-go/internal/transport/httpserver/handler/common"
	"todo-sync-go/pkg/logger"
)

type App struct {
	cfg        config.Config
	log        logger.Logger
	httpServer *http.Server
	store      *Store
}

func New(log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(cfg, log)
}

func NewWithConfig(cfg config.Config, log logger.Logger) (*App, error) {
	log.Info("app: initializing store", "driver", cfg.DB.Driver)
	store, err := OpenStore(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	log.Info("app: initializing router")
	handlers := handler.New(
		common.New(log),
		collections.New(store.Service, log, collections.Options{
			ScopeByUser:    !cfg.Supabase.SkipAuth,
			PingInterval:   cfg.HTTP.StreamPingInterval,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}),
	)
	router := httpserver.NewRouter(cfg, handlers, log)

	log.Info("app: initializing http server")
	srv := httpserver.New(cfg, router)

	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: srv,
		store:      store,
	}, nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// Shutdown ends live streams first, since http.Server.Shutdown does not wait
// for hijacked connections, then drains regular requests.
func (a *App) Shutdown(ctx context.Context) error {
	a.store.Service.Close()

	if err := a.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	return a.store.Close()
}
