package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinygems/tinygems/internal/api"
	"github.com/tinygems/tinygems/internal/api/middleware"
	"github.com/tinygems/tinygems/internal/artist"
	"github.com/tinygems/tinygems/internal/config"
	"github.com/tinygems/tinygems/internal/database"
	"github.com/tinygems/tinygems/internal/event"
	"github.com/tinygems/tinygems/internal/logging"
	"github.com/tinygems/tinygems/internal/match"
	"github.com/tinygems/tinygems/internal/resolve"
	"github.com/tinygems/tinygems/internal/version"
	"github.com/tinygems/tinygems/internal/webhook"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(cfg.Logging)
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()
	if err := database.Migrate(ctx, db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))
	go newMaintenance(cfg, db, logger).Run(ctx, cfg.Database.OptimizeInterval)

	registry := buildRegistry(cfg, logger)
	if registry.Len() == 0 {
		return errors.New("no platforms configured")
	}
	coordinator, closeCache, err := buildCoordinator(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	eventBus := event.NewBus(logger, 256)
	notifier := webhook.NewDispatcher(cfg.Webhooks, logger)
	defer notifier.Wait()
	eventBus.SubscribeAll(notifier.HandleEvent)
	eventBus.SubscribeAll(func(e event.Event) {
		logger.Debug("session event",
			slog.String("type", string(e.Type)),
			slog.String("session_id", e.SessionID()))
	})
	go eventBus.Start()
	defer eventBus.Stop()
	if len(cfg.Webhooks) > 0 {
		logger.Info("webhooks configured", slog.Int("count", len(cfg.Webhooks)))
	}

	artists := artist.NewService(db)
	resolver := resolve.NewResolver(coordinator, registry, logger,
		resolve.WithStore(artists),
		resolve.WithMaxCandidates(cfg.Search.MaxCandidates),
		resolve.WithScorer(match.NewScorer(cfg.Search.Weights)),
		resolve.WithPublisher(eventBus),
	)

	sessions := api.NewSessionRegistry(api.DefaultSessionTTL, logger)
	go sessions.Run(ctx, 5*time.Minute)

	router := api.NewRouter(api.RouterDeps{
		Resolver:       resolver,
		Sessions:       sessions,
		Artists:        artists,
		Registry:       registry,
		SessionLimiter: middleware.NewIPRateLimiter(ctx, 2*time.Second, 10),
		Logger:         logger,
		BasePath:       cfg.Server.BasePath,
	})

	go func() {
		err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
			logManager.Reconfigure(next.Logging)
			logger.Info("logging reconfigured", slog.String("logging", next.Logging.String()))
		})
		if err != nil {
			logger.Warn("config watching disabled", slog.String("error", err.Error()))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Searching every platform can take a full platform timeout.
		WriteTimeout: cfg.Search.PlatformTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting tinygems",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.Int("platforms", registry.Len()))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
