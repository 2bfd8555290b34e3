package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chepyr/go-todo-tracker/internal/auth"
	"github.com/chepyr/go-todo-tracker/internal/config"
	"github.com/chepyr/go-todo-tracker/tasks-service/db"
	"github.com/chepyr/go-todo-tracker/tasks-service/handlers"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the todo HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}
		configureLogging(cfg)

		dbConn, err := initDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		authenticator, err := initAuth(cfg)
		if err != nil {
			return err
		}
		handler := initHandlers(cfg, dbConn, authenticator)
		defer handler.RateLimiter.Stop()

		return startServer(initServer(cfg, handler.Routes()))
	},
}

func configureLogging(cfg *config.Config) {
	log.SetLevel(cfg.LogLevel)
	switch cfg.LogFormat {
	case config.LogFormatJSON:
		log.SetFormatter(log.JSONFormatter)
	case config.LogFormatLogfmt:
		log.SetFormatter(log.LogfmtFormatter)
	default:
		log.SetFormatter(log.TextFormatter)
	}
	log.SetReportTimestamp(true)
}

// initDB connects and brings the schema up to date.
func initDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dbConn, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx, dbConn, cfg.DatabaseDriver); err != nil {
		dbConn.Close()
		return nil, err
	}
	return dbConn, nil
}

func initAuth(cfg *config.Config) (auth.Authenticator, error) {
	if cfg.JWTPublicKeyFile != "" {
		pub, err := auth.LoadEd25519PublicKey(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, err
		}
		log.Info("verifying EdDSA tokens", "key", cfg.JWTPublicKeyFile)
		return auth.NewEd25519(pub, cfg.JWTAudience, cfg.JWTIssuer), nil
	}
	return auth.NewHMAC([]byte(cfg.JWTSecret), cfg.JWTAudience, cfg.JWTIssuer), nil
}

func initHandlers(cfg *config.Config, dbConn *sql.DB, authenticator auth.Authenticator) *handlers.Handler {
	store := db.NewStore(dbConn, cfg.DatabaseDriver, db.WithAutoPrune(cfg.TagsAutoPrune))
	return &handlers.Handler{
		TaskRepo:       db.NewTaskRepository(store),
		TagRepo:        db.NewTagRepository(store),
		Auth:           authenticator,
		RateLimiter:    handlers.NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		Timeout:        cfg.RequestTimeout,
		TrustedProxies: cfg.TrustedProxies,
	}
}

func initServer(cfg *config.Config, routes http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startServer(server *http.Server) error {
	log.Info("starting tasks server", "addr", server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
