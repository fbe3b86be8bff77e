package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/infra/config"
	"github.com/arklim/petclub-iam/internal/infra/database"
	kafkainfra "github.com/arklim/petclub-iam/internal/infra/kafka"
	"github.com/arklim/petclub-iam/internal/infra/logger"
	"github.com/arklim/petclub-iam/internal/infra/mail"
	redisinfra "github.com/arklim/petclub-iam/internal/infra/redis"
	"github.com/arklim/petclub-iam/internal/infra/security"
	"github.com/arklim/petclub-iam/internal/infra/telemetry"
	"github.com/arklim/petclub-iam/internal/repository/memory"
	postgresrepo "github.com/arklim/petclub-iam/internal/repository/postgres"
	redisrepo "github.com/arklim/petclub-iam/internal/repository/redis"
	"github.com/arklim/petclub-iam/internal/repository/session"
	"github.com/arklim/petclub-iam/internal/transport/http/middleware"
	"github.com/arklim/petclub-iam/internal/transport/http/routes"
	"github.com/arklim/petclub-iam/internal/usecase"
)

const memorySweepInterval = time.Minute

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

// New wires every dependency selected by cfg. Resources opened before a
// failure are released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	users, err := a.userRepository(ctx)
	if err != nil {
		return nil, err
	}

	kv, rateStore, err := a.sessionBackend(ctx)
	if err != nil {
		return nil, err
	}
	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)
	issuer := security.NewTokenIssuer(jwtManager, security.TokenIssuerConfig{
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
	})
	sessions := session.NewStore(kv, session.Config{
		SessionPrefix:   cfg.Session.SessionPrefix,
		BlacklistPrefix: cfg.Session.BlacklistPrefix,
		SessionTTL:      issuer.RefreshTTL(),
		BlacklistTTL:    cfg.Session.BlacklistTTL,
	})

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
		MinScore:  cfg.Password.MinScore,
	})

	mailer := mail.NewMailer(cfg.Mail, log)
	events := a.eventPublisher()

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer, "")
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	authService := usecase.NewAuthService(usecase.AuthDeps{
		Users:    users,
		Sessions: sessions,
		Tokens:   issuer,
		Hasher:   hasher,
		Policy:   policy,
		Mailer:   mailer,
		Events:   events,
		Metrics:  authMetrics,
		Logger:   log,
	}, domain.SignUpPolicy{RestrictAdminUserCreation: cfg.Auth.RestrictAdminUserCreation})
	resetService := usecase.NewPasswordResetService(users, hasher, policy, mailer, events, usecase.PasswordResetConfig{
		TTL:         cfg.PasswordReset.TTL,
		LinkBaseURL: cfg.PasswordReset.LinkBaseURL,
	})

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateStore, log),
		Services: routes.ServiceSet{
			Auth:          authService,
			PasswordReset: resetService,
			Users:         usecase.NewUserService(users),
			Gate:          usecase.NewAuthorizationGate(issuer, sessions),
		},
		JWTManager:     jwtManager,
		AccessTTL:      issuer.AccessTTL(),
		Metrics:        httpMetrics,
		Gatherer:       prometheus.DefaultGatherer,
		TracerProvider: a.tracer.Provider(),
		Database:       users,
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return a, nil
}

// userRepository selects the users backend. Postgres is migrated on start when auto_migrate is set.
func (a *Application) userRepository(ctx context.Context) (port.UserRepository, error) {
	if a.cfg.Users.Backend == "memory" {
		a.logger.Warn("using in-memory user repository; data is lost on restart")
		return memory.NewUserRepository(), nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	if a.cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pool, a.logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return postgresrepo.NewUserRepository(pool), nil
}

// sessionBackend selects where sessions, the blacklist and rate-limit windows live.
func (a *Application) sessionBackend(ctx context.Context) (port.KeyValueStore, port.RateLimitStore, error) {
	window := a.cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	if a.cfg.Session.Backend == "memory" {
		a.logger.Warn("using in-memory session store; sessions are not shared between instances")
		return memory.NewKeyValueStore(memorySweepInterval), memory.NewRateLimitStore(2 * window), nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client

	rateStore := redisrepo.NewRateLimitRepository(client.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "auth:rate-limit",
		TTL:       2 * window,
	})
	return redisrepo.NewKeyValueStore(client.Client()), rateStore, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
	}

	a.logger.Info("starting IAM API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("IAM API stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}
