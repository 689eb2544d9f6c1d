// Command sessiond keeps one authentication session alive: it restores the stored
// session, refreshes it ahead of expiry and serves lifecycle metrics on /metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	xoauth2 "golang.org/x/oauth2"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/provider/gotrue"
	"github.com/MrEthical07/goSession/provider/oauth2"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/session/sqlite"
)

func main() {
	configPath := flag.String("config", os.Getenv(envPrefix+"CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessiond: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessiond: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sessiond: exiting", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg daemonConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.LogFormat {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
}

func run(ctx context.Context, cfg daemonConfig, logger *slog.Logger) error {
	storage, closeStorage, err := openStorage(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStorage()

	provider, signIn, err := newProvider(cfg, storage, logger)
	if err != nil {
		return err
	}

	builder := goSession.New().
		WithConfig(cfg.managerConfig()).
		WithProvider(provider).
		WithLogger(logger).
		WithInvalidationHandler(goSession.InvalidationFunc(func(_ context.Context, inv goSession.Invalidation) {
			logger.Warn("sessiond: session invalidated, sign in again",
				"reason", inv.Reason, "error", inv.Err)
		}))
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goSession.NewJSONWriterSink(os.Stdout))
	}
	manager, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build manager: %w", err)
	}
	defer manager.Close()

	if _, err := manager.SetupAuthSubscription(func(sess *goSession.Session) {
		if sess == nil {
			logger.Info("sessiond: signed out")
			return
		}
		logger.Info("sessiond: session updated", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	}); err != nil {
		return err
	}

	if manager.GetInitialSession(ctx) == nil && signIn != nil {
		if err := signIn(ctx); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.NewPrometheusExporter(manager).Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if manager.State() == goSession.StateNoSession {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = io.WriteString(w, manager.State().String()+"\n")
	})
	mux.Handle("/session", middleware.RequireSession(manager)(http.HandlerFunc(sessionInfo)))
	srv := &http.Server{Addr: cfg.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sessiond: listening", "addr", cfg.Listen, "provider", cfg.Provider, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve metrics: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sessionInfo reports the identity of the held session without exposing its tokens.
func sessionInfo(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		UserID    string    `json:"user_id"`
		Email     string    `json:"email,omitempty"`
		ExpiresAt time.Time `json:"expires_at"`
	}{sess.UserID, sess.Email, sess.ExpiresAt})
}

func openStorage(ctx context.Context, cfg storeConfig) (session.Storage, func(), error) {
	switch cfg.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return session.NewStore(client, cfg.Prefix), func() { _ = client.Close() }, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}

// newProvider returns the configured provider and, when credentials allow it, a
// function signing in on startup.
func newProvider(cfg daemonConfig, storage session.Storage, logger *slog.Logger) (goSession.Provider, func(context.Context) error, error) {
	switch cfg.Provider {
	case "oauth2":
		p, err := oauth2.New(oauth2.Config{
			OAuth2: &xoauth2.Config{
				ClientID:     cfg.OAuth2.ClientID,
				ClientSecret: cfg.OAuth2.ClientSecret,
				RedirectURL:  cfg.OAuth2.RedirectURL,
				Scopes:       cfg.OAuth2.Scopes,
				Endpoint: xoauth2.Endpoint{
					AuthURL:  cfg.OAuth2.AuthURL,
					TokenURL: cfg.OAuth2.TokenURL,
				},
			},
			RevocationURL: cfg.OAuth2.RevocationURL,
			PersistTTL:    cfg.Store.TTL,
			Logger:        logger,
		}, storage)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	default:
		c, err := gotrue.New(gotrue.Config{
			URL:        cfg.GoTrue.URL,
			APIKey:     cfg.GoTrue.APIKey,
			PersistTTL: cfg.Store.TTL,
			Logger:     logger,
		}, storage)
		if err != nil {
			return nil, nil, err
		}
		if cfg.GoTrue.Email == "" || cfg.GoTrue.Password == "" {
			return c, nil, nil
		}
		return c, func(ctx context.Context) error {
			_, err := c.SignInWithPassword(ctx, cfg.GoTrue.Email, cfg.GoTrue.Password)
			return err
		}, nil
	}
}
