package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/task-sync/internal/config"
	"github.com/yukikurage/task-sync/internal/database"
	"github.com/yukikurage/task-sync/internal/handlers"
	"github.com/yukikurage/task-sync/internal/logging"
	"github.com/yukikurage/task-sync/internal/repository"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/sources"
	"github.com/yukikurage/task-sync/internal/store"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cfg, skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run migrations on startup")
	return cmd
}

func runServe(cfg *config.Config, skipMigrate bool) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	if !skipMigrate {
		if err := database.Migrate(db, log); err != nil {
			return err
		}
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Setup session middleware with Redis
	sessionStore, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	r.Use(sessions.Sessions("task_session", sessionStore))

	// Initialize AI service
	var generator services.TaskGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewAIService(cfg.OpenAIAPIKey)
	}

	factory := sources.NewFactory(cfg, repository.NewTaskRepository(db), log)
	registry := store.NewRegistry(factory, cfg.PollInterval, log)
	defer registry.Shutdown()

	handlers.RegisterRoutes(r, handlers.Dependencies{
		Workspaces: services.NewWorkspaceService(repository.NewWorkspaceRepository(db)),
		Tasks:      services.NewTaskService(registry, generator, log),
		Registry:   registry,
		Origins:    factory,
		Logger:     log,
	})

	return listen(r, cfg.ListenAddr, log)
}

func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	s, err := redisStore.NewStore(
		10,                        // Redis pool size
		"tcp",                     // network type
		redisAddr,                 // Redis address from config
		"",                        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis store: %w", err)
	}
	// Configure session options based on environment
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// listen serves until SIGINT or SIGTERM, then drains in-flight requests
func listen(handler http.Handler, addr string, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
