package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/auth"
	"github.com/Avicted/flightpool/internal/config"
	"github.com/Avicted/flightpool/internal/httpapi"
	"github.com/Avicted/flightpool/internal/identity"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/securelog"
	"github.com/Avicted/flightpool/internal/session"
	"github.com/Avicted/flightpool/internal/storage"
	"github.com/Avicted/flightpool/internal/trip"
	"github.com/Avicted/flightpool/internal/user"
)

func main() {
	if err := run(); err != nil {
		securelog.Error("server.run", err)
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := storage.NewPostgresStore(storeCtx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, closeSessions, err := openSessionStore(ctx, cfg.RedisURL)
	if err != nil {
		_ = store.Close(context.Background())
		return fmt.Errorf("init session store: %w", err)
	}
	defer closeSessions()

	provider, err := identity.NewOIDCProvider(ctx, identity.OIDCConfig{
		IssuerURL:    cfg.OIDCIssuer,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Timeout:      cfg.ProviderTimeout,
	})
	if err != nil {
		_ = store.Close(context.Background())
		return fmt.Errorf("init identity provider: %w", err)
	}

	return serve(ctx, cfg, store, sessions, provider)
}

// openSessionStore uses Redis when a URL is configured and process memory
// otherwise.
func openSessionStore(ctx context.Context, redisURL string) (session.Store, func(), error) {
	if redisURL == "" {
		log.Printf("session store: memory")
		return session.NewMemoryStore(), func() {}, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rs, err := session.NewRedisStoreFromURL(pingCtx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("session store: redis")
	return rs, func() { _ = rs.Close() }, nil
}

// serve migrates the store, wires the services and blocks until ctx is done.
func serve(ctx context.Context, cfg config.Config, store storage.Store, sessions session.Store, provider identity.Provider) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Migrate(migrateCtx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	userService := user.NewService(store.Users(), cfg.AdminUserIDs)
	inviteService := invitation.NewService(store.Invitations())
	settings := access.NewSettings(store.Settings(), access.Restrictions{
		AllowedDomains:    cfg.AllowedDomains,
		AllowedGitHubOrgs: cfg.AllowedGitHubOrgs,
	})
	sessionManager := session.NewManager(sessions, provider, cfg.SessionTTL)
	authService := auth.NewService(auth.Deps{
		Users:       userService,
		Invitations: inviteService,
		Settings:    settings,
		Sessions:    sessionManager,
		Provider:    provider,
		States:      auth.NewStateSigner(cfg.StateSecret),
		Tx:          store,
		SessionTTL:  cfg.SessionTTL,
	})
	api := httpapi.NewHandler(httpapi.Deps{
		Auth:          authService,
		Users:         userService,
		Invitations:   inviteService,
		Settings:      settings,
		Sessions:      sessionManager,
		Trips:         trip.NewService(store.Trips()),
		AdminToken:    cfg.AdminToken,
		SecureCookies: cfg.SecureCookies,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	api.Register(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// covers the provider round trip on /api/callback
		WriteTimeout: 10*time.Second + cfg.ProviderTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
			log.Printf("listening with TLS on %s", cfg.ListenAddr)
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}

		log.Printf("listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err = <-errCh
	case err = <-errCh:
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
