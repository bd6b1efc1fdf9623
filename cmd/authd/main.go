package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/goliatone/go-auth-session/config"
	"github.com/goliatone/go-auth-session/redisstore"
	"github.com/goliatone/go-auth-session/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

const (
	shutdownTimeout = 15 * time.Second
	cleanupInterval = time.Hour
)

func main() {
	envFile := flag.String("env", ".env", "path to the .env file")
	flag.Parse()

	settings, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(settings)

	if err := run(settings, logger); err != nil {
		logger.Error("authd stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(s *config.Settings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if s.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(s *config.Settings, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := s.AuthConfig()
	if err != nil {
		return err
	}

	db, err := repository.OpenAndMigrate(ctx, repository.Options{
		Driver: s.DBDriver,
		DSN:    s.DatabaseURL,
		Debug:  s.DBDebug,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db, auth.WithHashidUserIDs(cfg.HashidUserIDs))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := auth.NewMetrics(reg)

	tasks := auth.NewTaskQueue(s.TaskQueueSize,
		auth.WithTaskLogger(logger),
		auth.WithTaskMetrics(metrics),
	)
	tasks.Start(context.Background(), s.TaskWorkers)

	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
		auth.WithTasks(tasks),
		auth.WithHasher(auth.NewBcryptHasher(s.BcryptCost)),
		auth.WithNotifier(auth.NewLogNotifier(logger, "", auth.WithRevealedTokens(!s.IsProduction()))),
		auth.WithProvisioner(auth.NewDirectoryProvisioner(afero.NewOsFs(), s.UploadsRoot)),
		auth.WithActivitySink(activitymap.Sink(func(r activitymap.Record) error {
			logger.Info("activity",
				"verb", r.Verb,
				"actor_id", r.ActorID,
				"channel", r.Channel,
				"metadata", r.Metadata,
			)
			return nil
		})),
	}

	if strings.EqualFold(s.SessionBackend, "redis") {
		client, err := redisstore.Open(ctx, s.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		opts = append(opts, auth.WithSessionRegistry(
			redisstore.New(client, redisstore.WithTTL(cfg.AccessTTL)),
		))
		logger.Info("using redis session registry")
	}

	svc, err := auth.NewService(cfg, repo, opts...)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "authd",
		ErrorHandler:          auth.HTTPErrorHandler,
		DisableStartupMessage: s.IsProduction(),
	})
	app.Use(recover.New())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	auth.NewHTTPController(svc,
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(!s.IsProduction()),
	).RegisterRoutes(app)

	go scheduleCleanup(ctx, tasks, repo, logger)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", s.HTTPAddr)
		errc <- app.Listen(s.HTTPAddr)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	if err := tasks.Close(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("task queue shutdown", "error", err)
	}

	return nil
}

// scheduleCleanup periodically purges expired refresh tokens through the
// task queue
func scheduleCleanup(ctx context.Context, tasks auth.TaskSubmitter, repo auth.RepositoryManager, logger auth.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			err := tasks.Submit(auth.Task{
				Name: "purge-refresh-tokens",
				Run: func(ctx context.Context) error {
					n, err := repo.RefreshTokens().DeleteExpired(ctx, now)
					if err != nil {
						return err
					}
					logger.Debug("purged expired refresh tokens", "count", n)
					return nil
				},
			})
			if err != nil {
				logger.Warn("cleanup not scheduled", "error", err)
			}
		}
	}
}
