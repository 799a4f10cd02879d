package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinoosan/cashbook/internal/config"
	"github.com/tinoosan/cashbook/internal/dictionary"
	"github.com/tinoosan/cashbook/internal/finance"
	httpapi "github.com/tinoosan/cashbook/internal/httpapi/v1"
	"github.com/tinoosan/cashbook/internal/storage/memory"
	mongostore "github.com/tinoosan/cashbook/internal/storage/mongo"
	pgstore "github.com/tinoosan/cashbook/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cashbook",
		Short:        "Personal cash book: daily income and expense records over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			logger := buildLogger(cfg)
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	})
	return root
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	store, closeFn, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	api := httpapi.New(store, logger,
		httpapi.WithAuth(httpapi.AuthConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer, Audience: cfg.Auth.Audience}),
		httpapi.WithDefaultCurrency(cfg.DefaultCurrency),
		httpapi.WithIdempotency(cfg.Idempotency.Size, cfg.Idempotency.TTL),
	)
	if cfg.DevMode() {
		logger.Warn("JWT_HS256_SECRET not set; trusting the X-User-ID header")
	}
	if cfg.DevSeed || cfg.Backend() == config.BackendMemory {
		seedDev(ctx, logger, api, cfg.Backend(), cfg.DevUser)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cashbook service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		logger.Error("server error", "err", err)
		return err
	}
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (httpapi.Store, func(), error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		if cfg.AutoMigrate {
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			return nil, nil, err
		}
		logger.Info("storage backend: postgres")
		return pg, pg.Close, nil
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		m, err := mongostore.Open(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Error("failed to connect to mongo", "err", err)
			return nil, nil, err
		}
		logger.Info("storage backend: mongo", "database", cfg.MongoDatabase)
		return m, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.Close(ctx); err != nil {
				logger.Error("mongo disconnect", "err", err)
			}
		}, nil
	default:
		logger.Info("storage backend: memory")
		return memory.New(), func() {}, nil
	}
}

// seedDev registers the starter categories for the dev user so a fresh
// backend has something to pick from.
func seedDev(ctx context.Context, l *slog.Logger, api *httpapi.Server, backend config.Backend, userID string) {
	cats := api.Categories()
	seeded := map[string][]string{}
	for _, k := range finance.Kinds {
		for _, name := range dictionary.Labels(k) {
			c, err := cats.Ensure(ctx, userID, k, name)
			if err != nil {
				l.Error("dev seed failed", "kind", k, "category", name, "err", err)
				return
			}
			seeded[string(k)] = append(seeded[string(k)], c.Name)
		}
	}
	l.Info("DEV seed ("+string(backend)+")", "user_id", userID, "categories", seeded)
	printDevSeedBanner(userID, seeded)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of the user id
func printDevSeedBanner(userID string, seeded map[string][]string) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("user_id (X-User-ID): %s\n", userID)
	for _, k := range finance.Kinds {
		fmt.Printf("%s categories: %s\n", k, strings.Join(seeded[string(k)], ", "))
	}
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
