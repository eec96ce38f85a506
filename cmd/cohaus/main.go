package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cohaus/cohaus/internal/admin"
	"github.com/cohaus/cohaus/internal/app"
	"github.com/cohaus/cohaus/internal/audit"
	"github.com/cohaus/cohaus/internal/auth"
	"github.com/cohaus/cohaus/internal/bookings"
	"github.com/cohaus/cohaus/internal/finance"
	"github.com/cohaus/cohaus/internal/houses"
	"github.com/cohaus/cohaus/internal/observability"
	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/platform/cache"
	"github.com/cohaus/cohaus/internal/platform/db"
	"github.com/cohaus/cohaus/internal/shared"
	"github.com/cohaus/cohaus/internal/tasks"
	"github.com/cohaus/cohaus/internal/users"
	"github.com/cohaus/cohaus/jobs"
)

// userDirectory adapts the users service to the console's directory port.
type userDirectory struct {
	users *users.Service
}

func (d userDirectory) Get(ctx context.Context, id string) (*admin.User, error) {
	user, err := d.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &admin.User{ID: user.ID, Email: user.Email, Name: user.Name}, nil
}

func (d userDirectory) List(ctx context.Context) ([]admin.User, error) {
	all, err := d.users.List(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]admin.User, 0, len(all))
	for _, user := range all {
		accounts = append(accounts, admin.User{ID: user.ID, Email: user.Email, Name: user.Name})
	}
	return accounts, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "cohaus_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	roleStore := perm.NewPGStore(pool)
	cachedRoles := perm.NewCachedStore(roleStore, redisClient, cfg.RoleCacheTTL, logger)
	metrics := observability.NewMetrics()
	rbac := perm.Middleware{Store: cachedRoles, Logger: logger, Denials: metrics}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	authService := auth.NewService(usersService)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	housesRepo := houses.NewRepository(pool)
	housesService := houses.NewService(housesRepo, roleStore, cachedRoles, usersService, auditService, jobsClient)
	housesHandler := houses.NewHandler(logger, housesService, rbac)

	bookingsRepo := bookings.NewRepository(pool)
	bookingsService := bookings.NewService(bookingsRepo)
	bookingsHandler := bookings.NewHandler(logger, bookingsService, rbac)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo)
	financeHandler := finance.NewHandler(logger, financeService, housesService, rbac)

	tasksRepo := tasks.NewRepository(pool)
	tasksService := tasks.NewService(tasksRepo)
	tasksHandler := tasks.NewHandler(logger, tasksService, rbac)

	adminRepo := admin.NewRepository(pool)
	adminService := admin.NewService(adminRepo, usersService, housesService, auditService,
		roleStore, cachedRoles, userDirectory{users: usersService})
	adminHandler := admin.NewHandler(logger, adminService, housesService, rbac)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		RBAC:            rbac,
		AuthHandler:     authHandler,
		UsersHandler:    usersHandler,
		HousesHandler:   housesHandler,
		BookingsHandler: bookingsHandler,
		FinanceHandler:  financeHandler,
		TasksHandler:    tasksHandler,
		AdminHandler:    adminHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
