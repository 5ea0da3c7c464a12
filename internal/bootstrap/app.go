package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"quantum-dashboard/internal/ai"
	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/cache"
	"quantum-dashboard/internal/collab"
	"quantum-dashboard/internal/config"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/platform/database"
	rabbitmqClient "quantum-dashboard/internal/platform/rabbitmq"
	redisClient "quantum-dashboard/internal/platform/redis"
	"quantum-dashboard/internal/ratelimit"
	"quantum-dashboard/internal/repository"
	"quantum-dashboard/internal/simulator"
	"quantum-dashboard/internal/worker"
)

// Services groups the application services handlers are built from.
type Services struct {
	Auth       *app.AuthService
	Jobs       *app.JobService
	Analytics  *app.AnalyticsService
	Backends   *app.BackendService
	Sessions   *app.SessionService
	Workspaces *app.WorkspaceService
	Learning   *app.LearningService
	Admin      *app.AdminService
}

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	// MQConn is nil when the broker could not be reached at startup.
	MQConn        *amqp.Connection
	ChatPublisher *rabbitmqClient.ChatPublisher
	ChatWorker    *worker.ChatPersistWorker
	Simulator     *simulator.Simulator
	Hub           *collab.Hub
	RateLimiter   *ratelimit.SlidingWindowLimiter
	Services      Services

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	var mqConn *amqp.Connection
	if conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
		logger.Warn("rabbitmq unavailable, chat messages will be written synchronously", "error", err)
	} else {
		mqConn = conn
	}

	return Assemble(ctx, cfg, logger, db, redisCli, mqConn)
}

// Assemble wires services, the hub and background workers on top of already
// opened clients. mqConn may be nil. On error every client is closed.
func Assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *gorm.DB, redisCli *redis.Client, mqConn *amqp.Connection) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Redis:     redisCli,
		MQConn:    mqConn,
		StartedAt: time.Now(),
	}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	users := repository.NewUserRepository(a.DB)
	jobs := repository.NewJobRepository(a.DB)
	backends := repository.NewBackendRepository(a.DB)
	sessions := repository.NewSessionRepository(a.DB)
	messages := repository.NewChatMessageRepository(a.DB)
	workspaces := repository.NewWorkspaceRepository(a.DB)
	projects := repository.NewProjectRepository(a.DB)
	scores := repository.NewScoreRepository(a.DB)
	plans := repository.NewPricingPlanRepository(a.DB)

	historyCache := cache.NewHistoryCache(
		a.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	statsCache := cache.NewStatsCache(a.Redis, time.Duration(cfg.Redis.StatsTTLSeconds)*time.Second)

	var publisher app.ChatPublisher
	if a.MQConn != nil {
		a.ChatPublisher = rabbitmqClient.NewChatPublisher(a.MQConn, cfg.RabbitMQ.ChatPersistQueue)
		publisher = a.ChatPublisher

		a.ChatWorker = worker.NewChatPersistWorker(a.MQConn, messages, historyCache, cfg.RabbitMQ.ChatPersistQueue, a.Logger)
		if err := a.ChatWorker.Start(ctx); err != nil {
			return fmt.Errorf("start chat persist worker failed: %w", err)
		}
	}

	authService := app.NewAuthService(users, cfg.Auth.JWTSecret, cfg.JWTExpiration())
	backendService := app.NewBackendService(backends)
	if err := backendService.Seed(); err != nil {
		return fmt.Errorf("seed backends failed: %w", err)
	}
	created, err := authService.EnsureAdmin(cfg.Auth.InitialAdmin)
	if err != nil {
		return fmt.Errorf("ensure initial admin failed: %w", err)
	}
	if created {
		a.Logger.Info("initial admin created", "username", cfg.Auth.InitialAdmin.Username)
	}

	sessionService, err := app.NewSessionService(sessions, projects, messages, publisher, historyCache, a.Logger)
	if err != nil {
		return err
	}

	var hints app.HintClient
	if llm := ai.NewClient(cfg.LLM); llm.Configured() {
		hints = llm
	}

	a.Services = Services{
		Auth:       authService,
		Jobs:       app.NewJobService(jobs, backends, statsCache),
		Analytics:  app.NewAnalyticsService(jobs, backends, statsCache),
		Backends:   backendService,
		Sessions:   sessionService,
		Workspaces: app.NewWorkspaceService(workspaces, projects),
		Learning:   app.NewLearningService(scores, hints),
		Admin:      app.NewAdminService(users, plans),
	}

	a.Hub = collab.NewHub(sessionService, sessionService, collab.HubConfig{
		ChatHistoryLimit: cfg.Collab.ChatHistoryLimit,
		EditHistoryLimit: cfg.Collab.EditHistoryLimit,
		MaxMessageRunes:  cfg.Collab.MaxMessageRunes,
	}, a.Logger)

	if cfg.RateLimit.Enabled {
		a.RateLimiter = ratelimit.NewSlidingWindowLimiter(a.Redis, ratelimit.Config{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowSize:        time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		}, "ratelimit:api:")
	}

	if cfg.Simulator.Enabled {
		a.Simulator = simulator.New(jobs, backends, statsCache, cfg.Simulator, a.Logger.With("component", "simulator"))
		a.Simulator.Start(ctx)
	}
	return nil
}

// Shutdown stops background producers before the resources they use are closed.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Simulator != nil {
		if err := a.Simulator.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop simulator failed: %w", err))
		}
	}
	if a.Hub != nil {
		a.Hub.Close(ctx)
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) Close() error {
	var closeErr error
	if a.ChatWorker != nil {
		a.ChatWorker.Close()
	}
	if a.ChatPublisher != nil {
		if err := a.ChatPublisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
