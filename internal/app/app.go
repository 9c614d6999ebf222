package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ecosystia_backend/database"
	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/cache"
	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/config"
	"ecosystia_backend/internal/email"
	"ecosystia_backend/internal/events"
	"ecosystia_backend/internal/handlers"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/middleware"
	"ecosystia_backend/internal/push"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/routes"
	"ecosystia_backend/internal/services"
	"ecosystia_backend/internal/telemetry"
	"ecosystia_backend/internal/validator"
	"ecosystia_backend/internal/workers"
	"ecosystia_backend/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

// Run starts the notification service and blocks until SIGINT or SIGTERM.
func Run() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Server.Env,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracing", "error", err)
	}

	logger.Info("Connecting to database...")
	gormDB, err := database.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	if err := database.Migrate(gormDB); err != nil {
		logger.Fatal("Database migration failed", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	logger.Info("Database connected")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Redis unavailable", "error", err)
		}
		logger.Info("Redis connected", "addr", cfg.Redis.Addr)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := channels.NewHub()
	tokens := auth.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.TTL)*time.Minute)

	var broker channels.Broker
	var redisBroker *channels.RedisBroker
	var guard cache.DedupGuard
	if redisClient != nil {
		redisBroker = channels.NewRedisBroker(redisClient, hub, "")
		broker = redisBroker
		guard = cache.NewRedisGuard(redisClient)
	} else {
		logger.Warn("Redis disabled: frames and dedup flags stay in this process")
		broker = channels.NewLocalBroker(hub)
		guard = cache.NewMemoryGuard()
	}

	repos := repositories.NewContainer(gormDB)
	svc := services.NewServiceContainer(services.Dependencies{
		Repos:   repos,
		Broker:  broker,
		Metrics: m,
		Mailer:  initializeMailer(cfg),
		Pusher:  initializePusher(ctx, cfg),
		Tokens:  tokens,
	})

	if err := svc.AuthService.EnsureStaff(ctx, cfg.FirstStaffEmail, cfg.FirstStaffPassword); err != nil {
		logger.Fatal("Failed to seed first staff account", "error", err)
	}

	// The manager installs the hub's eviction hook, so it must exist before the hub runs.
	wsManager := ws.NewWebSocketManager(ws.Deps{
		Hub:      hub,
		Tokens:   tokens,
		Inbox:    svc.InboxService,
		Notifier: svc.NotificationService,
		Projects: svc.ProjectService,
		Meetings: svc.MeetingService,
		Users:    repos.Users,
		Metrics:  m,
	}, wsOptions(cfg))

	var wg sync.WaitGroup
	background := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			logger.Info("Background component stopped", "component", name)
		}()
	}

	background("hub", func() { wsManager.Run(ctx) })
	if redisBroker != nil {
		background("redis_relay", func() {
			if err := redisBroker.Relay(ctx, nil); err != nil {
				logger.Error("Redis relay stopped", "error", err)
			}
		})
	}

	worker := workers.NewNotificationWorker(repos, svc.NotificationService, svc.DigestService, guard, m, cfg.Scheduler)
	worker.Start(ctx)

	if cfg.Kafka.Enabled {
		reader := events.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		consumer := events.NewConsumer(reader, svc, m)
		background("kafka_consumer", func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("Kafka consumer stopped", "error", err)
			}
		})
	}

	router := initializeGinRouter(cfg, m)
	routes.RegisterRoutes(
		router,
		handlers.NewAppHandlers(svc, worker, validator.New()),
		ws.NewWebSocketHandler(wsManager),
		tokens,
		promhttp.Handler(),
		healthChecks(gormDB, redisClient),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           otelhttp.NewHandler(router, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	worker.Wait()
	wg.Wait()

	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Database close failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}

func initializeMailer(cfg *config.Config) email.Provider {
	renderer := email.NewTemplateManager()
	if !cfg.Email.Enabled {
		logger.Warn("Email delivery disabled: messages are logged only")
		return email.NewLogProvider(renderer)
	}

	smtp := email.NewSMTPProvider(email.ConfigFrom(cfg), renderer)
	if err := smtp.Validate(); err != nil {
		logger.Fatal("Invalid SMTP configuration", "error", err)
	}
	return smtp
}

func initializePusher(ctx context.Context, cfg *config.Config) push.Provider {
	if !cfg.Push.Enabled {
		return push.LogProvider{}
	}
	provider, err := push.NewSNSProviderFromRegion(ctx, cfg.Push.Region)
	if err != nil {
		logger.Fatal("Failed to initialize push provider", "error", err)
	}
	return provider
}

func wsOptions(cfg *config.Config) ws.Options {
	opts := ws.DefaultOptions()
	opts.AllowedOrigins = cfg.Server.AllowedOrigins
	return opts
}

func initializeGinRouter(cfg *config.Config, m *metrics.Metrics) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.CORSMiddleware(cfg.Server))
	return router
}

func healthChecks(db *gorm.DB, redisClient *redis.Client) map[string]routes.HealthCheck {
	checks := map[string]routes.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
