package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/infra/config"
	"github.com/arklim/petclub-iam/internal/infra/security"
	"github.com/arklim/petclub-iam/internal/transport/http/handlers"
	"github.com/arklim/petclub-iam/internal/transport/http/middleware"
	"github.com/arklim/petclub-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	PasswordReset *usecase.PasswordResetService
	Users         *usecase.UserService
	Gate          *usecase.AuthorizationGate
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	Services       ServiceSet
	JWTManager     *security.JWTManager
	AccessTTL      time.Duration
	Metrics        *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Table is the access policy of every route Register installs.
func Table() usecase.RouteTable {
	staff := []domain.Role{domain.RoleAdmin, domain.RoleRoot}
	return usecase.RouteTable{
		{Method: http.MethodPost, Path: "/auth/signup"}:                 usecase.Public(),
		{Method: http.MethodPost, Path: "/auth/signin"}:                 usecase.Public(),
		{Method: http.MethodPost, Path: "/auth/refresh-tokens"}:         usecase.Private(),
		{Method: http.MethodPost, Path: "/auth/signout"}:                usecase.Private(),
		{Method: http.MethodPost, Path: "/auth/request-password-reset"}: usecase.Public(),
		{Method: http.MethodPost, Path: "/auth/reset-password"}:         usecase.Public(),

		{Method: http.MethodGet, Path: "/users/me"}:  usecase.Private(),
		{Method: http.MethodGet, Path: "/users"}:     usecase.Private(staff...),
		{Method: http.MethodGet, Path: "/users/:id"}: usecase.Private(staff...),
		{Method: http.MethodPost, Path: "/users"}:    usecase.Private(staff...),

		{Method: http.MethodGet, Path: "/healthz"}:               usecase.Public(),
		{Method: http.MethodGet, Path: "/readyz"}:                usecase.Public(),
		{Method: http.MethodGet, Path: "/metrics"}:               usecase.Public(),
		{Method: http.MethodGet, Path: "/.well-known/jwks.json"}: usecase.Public(),
	}
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(middleware.TracingOptions{
		ServiceName:    deps.Config.Telemetry.ServiceName,
		TracerProvider: deps.TracerProvider,
	}))
	r.Use(deps.Metrics.Handler())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(deps.Config.HTTP.AllowedOrigins))
	if deps.Services.Gate != nil {
		r.Use(middleware.Authorize(deps.Services.Gate, Table()))
	}

	checks := make(map[string]handlers.HealthCheck, 2)
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	health := handlers.NewHealthHandler(checks)
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Ready)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.JWTManager != nil {
		r.GET("/.well-known/jwks.json", handlers.NewJWKSHandler(deps.JWTManager).Keys)
	}

	if deps.Services.Auth == nil {
		return r
	}

	cookieMaxAge := deps.AccessTTL
	if cookieMaxAge <= 0 {
		cookieMaxAge = deps.Config.JWT.AccessTokenTTL
	}
	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.PasswordReset, handlers.CookieConfig{
		Domain: deps.Config.HTTP.CookieDomain,
		Secure: deps.Config.HTTP.CookieSecure,
		MaxAge: cookieMaxAge,
	})

	auth := r.Group("/auth")
	{
		auth.POST("/signup", withLimit(deps, "auth_signup_ip", deps.Config.RateLimit.SignUpMaxAttempts, authHandler.SignUp)...)
		auth.POST("/signin", withLimit(deps, "auth_signin_ip", deps.Config.RateLimit.SignInMaxAttempts, authHandler.SignIn)...)
		auth.POST("/refresh-tokens", authHandler.RefreshTokens)
		auth.POST("/signout", authHandler.SignOut)
		auth.POST("/request-password-reset", withLimit(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts, authHandler.RequestPasswordReset)...)
		auth.POST("/reset-password", withLimit(deps, "password_reset_confirm_ip", deps.Config.RateLimit.PasswordResetMaxAttempts, authHandler.ResetPassword)...)
	}

	userHandler := handlers.NewUserHandler(deps.Services.Users, deps.Services.Auth)
	users := r.Group("/users")
	{
		users.GET("/me", userHandler.Me)
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
	}

	return r
}

// withLimit prefixes handler with an IP-scoped rate limit when one is configured.
func withLimit(deps Dependencies, name string, limit int, handler gin.HandlerFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return []gin.HandlerFunc{handler}
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}
	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule), handler}
}
