package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MandraVEVO/ecommerce/internal/cache"
	"github.com/MandraVEVO/ecommerce/internal/config"
	"github.com/MandraVEVO/ecommerce/internal/database"
	"github.com/MandraVEVO/ecommerce/internal/events"
	"github.com/MandraVEVO/ecommerce/internal/handlers"
	"github.com/MandraVEVO/ecommerce/internal/jobs"
	"github.com/MandraVEVO/ecommerce/internal/log"
	"github.com/MandraVEVO/ecommerce/internal/metrics"
	"github.com/MandraVEVO/ecommerce/internal/middleware"
	"github.com/MandraVEVO/ecommerce/internal/repository"
	"github.com/MandraVEVO/ecommerce/internal/security"
	"github.com/MandraVEVO/ecommerce/internal/server"
	"github.com/MandraVEVO/ecommerce/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.New(registry)

	hasher, err := security.NewPasswordHasher(cfg.Security.BcryptCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid bcrypt cost")
	}
	tokens, err := security.NewTokenCodec(security.TokenCodecConfig{
		Secret: cfg.Security.JWTSecret,
		Issuer: cfg.Security.JWTIssuer,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token codec")
	}

	publisher := newPublisher(cfg.Events, logger)

	users := repository.NewUserRepository(dbPool)
	blacklist := cache.NewBlacklistCache(
		repository.NewBlacklistRepository(dbPool),
		redisClient,
		cache.BlacklistCacheConfig{
			Prefix:      cfg.Blacklist.CachePrefix,
			NegativeTTL: cfg.Blacklist.NegativeTTL,
		},
		authMetrics,
		logger,
	)

	authService := service.NewAuthService(service.AuthDeps{
		Users:     users,
		Sessions:  repository.NewRefreshTokenRepository(dbPool),
		Blacklist: blacklist,
		Hasher:    hasher,
		Tokens:    tokens,
		Policy: security.PasswordPolicy{
			MinLength: cfg.Security.PasswordMinLength,
			MaxLength: cfg.Security.PasswordMaxLength,
		},
		AccessTTL:  cfg.Security.AccessTTL,
		RefreshTTL: cfg.Security.RefreshTTL,
		Events:     publisher,
		Metrics:    authMetrics,
		Log:        logger,
	})
	authenticator := service.NewAuthenticator(tokens, authService, users, authMetrics, logger)

	var rateLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		rateLimit = middleware.RateLimit(cfg.RateLimit, redisClient, logger)
	}

	pingRedis := func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}
	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Config:        cfg,
		Auth:          authService,
		Authenticator: authenticator,
		RateLimit:     rateLimit,
		Checks: map[string]handlers.Pinger{
			"postgres": handlers.PingFunc(dbPool.Ping),
			"redis":    handlers.PingFunc(pingRedis),
		},
		Metrics: authMetrics,
		Log:     logger,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, registry)

	scheduler := jobs.NewScheduler(redisClient, cfg.Queue.Stream, cfg.Blacklist.PurgeSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, publisher, dbPool, redisClient)
}

func newPublisher(cfg config.EventsConfig, logger zerolog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp unavailable, session events disabled")
		return events.Nop{}
	}
	return pub
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, publisher events.Publisher, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	if closer, ok := publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error().Err(err).Msg("amqp close error")
		}
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
