package cmd

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

	"github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	authPostgres "github.com/frahmantamala/hoa-reimbursement/internal/auth/postgres"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	entryPostgres "github.com/frahmantamala/hoa-reimbursement/internal/entry/postgres"
	"github.com/frahmantamala/hoa-reimbursement/internal/metrics"
	"github.com/frahmantamala/hoa-reimbursement/internal/notification"
	"github.com/frahmantamala/hoa-reimbursement/internal/nudge"
	nudgePostgres "github.com/frahmantamala/hoa-reimbursement/internal/nudge/postgres"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	settingsPostgres "github.com/frahmantamala/hoa-reimbursement/internal/settings/postgres"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport/middleware"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport/rest"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	userPostgres "github.com/frahmantamala/hoa-reimbursement/internal/user/postgres"
	"github.com/frahmantamala/hoa-reimbursement/pkg/logger"
	"github.com/frahmantamala/hoa-reimbursement/pkg/telemetry"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// version is stamped at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Services is the wired domain layer, shared by the server and the CLI
// commands that need it.
type Services struct {
	Settings *settings.Service
	Users    *user.Service
	Auth     *auth.Service
	Entries  *entry.Service
	Nudges   *nudge.Service
	Metrics  *metrics.Service
}

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	Gorm        *gorm.DB
	Router      *chi.Mux
	EventBus    *events.EventBus
	Telemetry   *telemetry.Metrics
	RateLimiter *middleware.RateLimiter
	Notifier    *notification.Publisher
	Services    *Services
	Logger      *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if _, err := deps.Services.Settings.EnsureSeeded(ctx); err != nil {
		deps.Logger.Error("failed to seed settings", "error", err)
		os.Exit(1)
	}

	setupRoutes(deps)
	go deps.RateLimiter.Run(ctx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "version", version)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Close()
	deps.Logger.Info("Server stopped")
}

// Close drains in-flight events before closing the sinks they write to.
func (d *Dependencies) Close() {
	if d.EventBus != nil {
		d.EventBus.Shutdown()
	}
	if d.Notifier != nil {
		if err := d.Notifier.Close(); err != nil {
			d.Logger.Error("Notifier close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func setupRoutes(deps *Dependencies) {
	svc := deps.Services
	obs := deps.Config.Observability

	handlers := rest.Handlers{
		Health:   rest.NewHealthHandler(deps.DB),
		Auth:     auth.NewHandler(svc.Auth, svc.Users),
		Roles:    auth.NewRoleAuthorization(deps.Logger),
		User:     user.NewHandler(svc.Users),
		Settings: settings.NewHandler(svc.Settings),
		Entry:    entry.NewHandler(svc.Entries),
		Nudge:    nudge.NewHandler(svc.Nudges),
		Metrics:  metrics.NewHandler(svc.Metrics),
	}

	opts := rest.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		RateLimiter:    deps.RateLimiter,
	}
	if obs.Metrics.Enabled {
		opts.Telemetry = deps.Telemetry
		opts.MetricsPath = obs.Metrics.Path
	}

	rest.RegisterAllRoutes(deps.Router, handlers, opts, deps.Logger)
}

func initializeDependencies(path string) (*Dependencies, error) {
	config, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithLevel(config.Environment, config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db, config.Environment)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	bus, err := events.NewEventBus(lg, config.Events.WorkerPoolSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}

	tel := telemetry.New()
	tel.SetBuildInfo(version, config.Environment)

	deps := &Dependencies{
		Config:      config,
		DB:          db,
		Gorm:        gormDB,
		Router:      chi.NewRouter(),
		EventBus:    bus,
		Telemetry:   tel,
		RateLimiter: middleware.NewRateLimiter(config.RateLimit.PerSecond, config.RateLimit.Burst),
		Logger:      lg,
	}

	if config.Notifications.Enabled {
		notifier, err := notification.NewKafkaPublisher(config.Notifications, lg)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to create notification publisher: %w", err)
		}
		notifier.Register(bus)
		deps.Notifier = notifier
	}

	deps.Services = buildServices(config, gormDB, bus, tel, lg)
	return deps, nil
}

func buildServices(cfg *internal.Config, db *gorm.DB, bus *events.EventBus, tel *telemetry.Metrics, lg *slog.Logger) *Services {
	settingsSvc := settings.NewService(settingsPostgres.NewSettingsRepository(db), settings.FromWorkflowConfig(cfg.Workflow), lg)
	userSvc := user.NewService(userPostgres.NewUserRepository(db), lg)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authSvc := auth.NewService(authPostgres.NewRepository(db), tokens, cfg.Security.BCryptCost, lg)

	entrySvc := entry.NewService(entryPostgres.NewEntryRepository(db), settingsSvc, userSvc, bus, tel, lg)
	nudgeSvc := nudge.NewService(nudgePostgres.NewNudgeRepository(db), userSvc, entrySvc, settingsSvc, bus, lg)
	metricsSvc := metrics.NewService(entrySvc, userSvc, settingsSvc, tel, lg)

	return &Services{
		Settings: settingsSvc,
		Users:    userSvc,
		Auth:     authSvc,
		Entries:  entrySvc,
		Nudges:   nudgeSvc,
		Metrics:  metricsSvc,
	}
}

// initDB opens the shared pgx pool. gorm and the health check both use it.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func initGorm(db *sqlx.DB, env string) (*gorm.DB, error) {
	level := gormLogger.Warn
	if env != "production" {
		level = gormLogger.Info
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(level),
	})
}
