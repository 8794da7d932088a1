// Package app assembles the process: catalog, session registry,
// gateway, action router, and the HTTP server, in dependency order.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"classd/internal/actions"
	"classd/internal/api"
	"classd/internal/catalog"
	"classd/internal/classroom"
	"classd/internal/config"
	"classd/internal/gateway"
	"classd/pkg/types"
)

// Application owns every component and their lifecycle. No package-level
// state anywhere; everything is constructed here and passed down.
type Application struct {
	cfg        *config.Config
	log        *zap.Logger
	store      *catalog.Store
	registry   *classroom.Registry
	gateway    *gateway.Gateway
	router     *actions.Router
	httpServer *http.Server
}

// New builds the application. Construction order: catalog store,
// identity resolver, registry, gateway, router, handlers, HTTP server.
func New(cfg *config.Config, log *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	store, err := catalog.NewStore(cfg.Catalog.Path, log.Named("catalog"))
	if err != nil {
		return nil, fmt.Errorf("initialize catalog store: %w", err)
	}

	resolver := catalog.NewTokenResolver(cfg.Auth.JWTSecret)
	registry := classroom.NewRegistry(log.Named("registry"))
	gw := gateway.NewGateway(registry, log.Named("gateway"))
	router := actions.NewRouter(registry, gw, log.Named("actions"))
	dispatch := gateway.DispatchFunc(func(ctx context.Context, conn *gateway.Connection, env *types.Envelope) {
		router.Dispatch(ctx, conn, env)
	})
	wsHandler := gateway.NewHandler(gw, resolver, store, dispatch, cfg.WebSocket, log.Named("ws"))
	apiServer := api.NewServer(registry, log.Named("api"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{classroom_id}", wsHandler.HandleWebSocket)
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		store:      store,
		registry:   registry,
		gateway:    gw,
		router:     router,
		httpServer: httpServer,
	}, nil
}

// Start begins serving. It returns once the listener is up or startup
// has failed.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info("starting", zap.String("addr", a.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		a.log.Info("started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down in reverse order: HTTP listener first, then the
// catalog store. Live websocket connections end when the listener's
// sockets close.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("shutting down")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Warn("HTTP shutdown", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("catalog shutdown", zap.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

// Addr returns the configured listen address.
func (a *Application) Addr() string {
	return a.httpServer.Addr
}
