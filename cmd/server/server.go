package main

import (
	"context"
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/todo/api/handler"
	"github.com/fastygo/todo/api/view"
	"github.com/fastygo/todo/internal/config"
	"github.com/fastygo/todo/internal/infrastructure/boltdb"
	"github.com/fastygo/todo/internal/infrastructure/google"
	"github.com/fastygo/todo/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/todo/internal/infrastructure/postgres"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
	redisInfra "github.com/fastygo/todo/internal/infrastructure/redis"
	"github.com/fastygo/todo/internal/metrics"
	"github.com/fastygo/todo/internal/middleware"
	"github.com/fastygo/todo/internal/router"
	"github.com/fastygo/todo/internal/security"
	"github.com/fastygo/todo/internal/services/lifecycle"
	"github.com/fastygo/todo/pkg/httpcontext"
	"github.com/fastygo/todo/repository"
	boltRepo "github.com/fastygo/todo/repository/bolt"
	"github.com/fastygo/todo/repository/postgres"
	redisRepo "github.com/fastygo/todo/repository/redis"
	authUC "github.com/fastygo/todo/usecase/auth"
	"github.com/fastygo/todo/usecase/authstate"
	"github.com/fastygo/todo/usecase/calendarlink"
	profileUC "github.com/fastygo/todo/usecase/profile"
	taskUC "github.com/fastygo/todo/usecase/task"
)

type storage struct {
	users    repository.UserRepository
	tasks    repository.TaskRepository
	sessions repository.SessionRepository
	bus      realtime.Bus
	checks   []monitor.Check
}

func serve(parent context.Context, cfg *config.Config, zapLogger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx := manager.Watch(parent)

	store, err := openStorage(appCtx, cfg, manager, zapLogger)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		return err
	}

	mon := monitor.New(store.checks, cfg.Monitor.Interval, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	m := metrics.New()

	var federated authUC.FederatedProvider
	if cfg.Google.Enabled() {
		federated = google.NewOAuth(cfg.Google)
	} else {
		zapLogger.Warn("google sign-in disabled: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}
	calendar := google.NewCalendarClient(cfg.Calendar, nil, m)

	tokens := security.NewTokens(cfg.JWT.Secret, cfg.JWT.Issuer)
	authUseCase := authUC.New(authUC.Deps{
		Users:    store.users,
		Sessions: store.sessions,
		Hasher:   security.NewHasher(cfg.Session.BcryptCost),
		Tokens:   tokens,
		Google:   federated,
		Bus:      store.bus,
		Metrics:  m,
		TTL:      cfg.Session.TTL,
		Logger:   zapLogger,
	})
	taskUseCase := taskUC.New(store.tasks, store.bus, calendar, m, zapLogger)
	profileUseCase := profileUC.New(store.users, zapLogger)
	flow := calendarlink.New(taskUseCase, calendar, cfg.Calendar.DefaultTimeZone, zapLogger)
	authState := authstate.NewProvider(authUseCase, store.bus, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	cookie := middleware.SessionCookie{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}

	views, err := view.New(authUseCase, taskUseCase, flow, cookie, ctxAdapter, zapLogger)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		return fmt.Errorf("parse templates: %w", err)
	}

	handlers := router.Handlers{
		View:     views,
		Auth:     apiHandler.NewAuthHandler(authUseCase, cookie, ctxAdapter, zapLogger),
		Profile:  apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:     apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Calendar: apiHandler.NewCalendarHandler(flow, taskUseCase, ctxAdapter, zapLogger),
		Stream:   apiHandler.NewStreamHandler(appCtx, authState, taskUseCase, store.bus, m, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, cfg.Storage.Driver, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = m.Handler()
	}

	auth := middleware.NewAuth(tokens, authUseCase, cookie, cfg.Context.RequestTimeout, zapLogger)
	r := router.New(handlers, router.Middlewares{
		Require:  auth.Require,
		Optional: auth.Optional,
	}, cfg.HTTP.EnablePprof)

	// No WriteTimeout: event streams stay open for the life of the page.
	server := &fasthttp.Server{
		Handler:         middleware.AccessLog(zapLogger)(r.Handler),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		Concurrency:     cfg.HTTP.MaxConn,
		Name:            cfg.AppName,
		CloseOnShutdown: true,
	}

	manager.Go("http_server", func() error {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("google", cfg.Google.Enabled()),
		)
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	shutdownErr := manager.Shutdown(context.Background())
	if shutdownErr != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(shutdownErr))
	}
	if err := manager.Err(); err != nil {
		return err
	}
	return shutdownErr
}

func openStorage(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, manager, zapLogger)
	default:
		return openBolt(cfg, manager, zapLogger)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) (*storage, error) {
	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	manager.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(ctx, cfg.Redis, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	manager.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})

	return &storage{
		users:    postgres.NewUserRepository(pool),
		tasks:    postgres.NewTaskRepository(pool),
		sessions: redisRepo.NewSessionRepository(redisClient, cfg.Session.TTL),
		bus:      realtime.NewRedisBus(redisClient),
		checks: []monitor.Check{
			monitor.PostgresCheck(pool),
			monitor.RedisCheck(redisClient),
		},
	}, nil
}

func openBolt(cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) (*storage, error) {
	store, err := boltdb.Open(cfg.Bolt.Path, boltRepo.Buckets...)
	if err != nil {
		return nil, fmt.Errorf("boltdb: %w", err)
	}
	manager.Register("boltdb", func(context.Context) error {
		return store.Close()
	})

	sessions := boltRepo.NewSessionRepository(store, cfg.Session.TTL)
	sweeper := boltRepo.NewSessionSweeper(sessions, cfg.Bolt.SweepInterval, zapLogger)
	sweeper.Start()
	manager.Register("session_sweeper", func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})

	zapLogger.Info("using embedded storage", zap.String("path", cfg.Bolt.Path))
	return &storage{
		users:    boltRepo.NewUserRepository(store),
		tasks:    boltRepo.NewTaskRepository(store),
		sessions: sessions,
		bus:      realtime.NewMemoryBus(),
		checks:   []monitor.Check{monitor.BoltCheck(store)},
	}, nil
}
