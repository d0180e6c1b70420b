package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/orgsync/directory-sync/internal/api/http"
	"github.com/orgsync/directory-sync/internal/api/http/handlers"
	"github.com/orgsync/directory-sync/internal/auth"
	"github.com/orgsync/directory-sync/internal/config"
	"github.com/orgsync/directory-sync/internal/directory"
	"github.com/orgsync/directory-sync/internal/events"
	"github.com/orgsync/directory-sync/internal/lock"
	"github.com/orgsync/directory-sync/internal/observability"
	"github.com/orgsync/directory-sync/internal/persistence"
	"github.com/orgsync/directory-sync/internal/repository"
	"github.com/orgsync/directory-sync/internal/service"
	"github.com/orgsync/directory-sync/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	departmentRepo := repository.NewDepartmentRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	statusRepo := repository.NewSyncStatusRepository(redis.Client, cfg.Sync.LockName)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	service.NewNotificationService(dispatcher, logger.Named("notifications"), cfg.Notification).RegisterHandlers()

	syncService := service.NewDirectorySyncService(*cfg, service.SyncDependencies{
		Source:         directory.NewClient(cfg.Directory, logger.Named("directory")),
		DepartmentRepo: departmentRepo,
		UserRepo:       userRepo,
		StatusRepo:     statusRepo,
		Locker:         lock.NewRedisLocker(redis.Client),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger.Named("sync"),
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Sync:           handlers.NewSyncHandler(syncService),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	scheduler := worker.NewSyncScheduler(syncService, cfg.Sync, logger.Named("scheduler"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
	}
}
