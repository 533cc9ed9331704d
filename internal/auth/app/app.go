// Package app wires configuration, storage, services, and the HTTP
// server into a runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wardenauth/warden/internal/auth/audit"
	authhttp "github.com/wardenauth/warden/internal/auth/http"
	"github.com/wardenauth/warden/internal/auth/service"
	"github.com/wardenauth/warden/internal/auth/store/drivers/sqlite"
	"github.com/wardenauth/warden/pkg/jwtx"
	"github.com/wardenauth/warden/pkg/passhash"
	"github.com/wardenauth/warden/pkg/secretbox"
	"github.com/wardenauth/warden/pkg/slogx"
)

type App struct {
	cfg    Config
	logger *slog.Logger
	store  *sqlite.Store
	server *http.Server

	housekeeper *service.Housekeeper
}

// New builds the full dependency graph. Nothing starts running until Run.
func New(cfg Config) (*App, error) {
	logger := slogx.New(slogx.Config{
		Service: "warden",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	st, err := sqlite.NewStore(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	tokens, err := jwtx.NewHS256([]byte(cfg.SigningSecret), cfg.TokenIssuer, cfg.TokenAudience)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	creds := service.NewCredentialIssuer(tokens, cfg.TokenIssuer, cfg.TokenAudience)
	creds.AccessTTL = cfg.AccessTTL
	creds.RefreshTTL = cfg.RefreshTTL

	box, err := secretbox.New([]byte(cfg.EncryptionKey))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	hasher := passhash.New(passhash.DefaultParams())
	sink := audit.NewSlogSink()

	handler := authhttp.NewHandler(
		service.NewLoginService(st, hasher, creds, box, sink),
		service.NewTwoFactorService(st, hasher, creds, box, sink, cfg.TokenIssuer),
		service.NewUserService(st, hasher, sink),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           authhttp.NewRouter(handler, creds, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		server:      srv,
		housekeeper: service.NewHousekeeper(st, cfg.SweepInterval),
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, cancelSweep := context.WithCancel(slogx.WithContext(context.Background(), a.logger))
	defer cancelSweep()
	go a.housekeeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return a.store.Close()
}
