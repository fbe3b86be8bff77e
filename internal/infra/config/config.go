package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App           AppSettings           `mapstructure:"app"`
	HTTP          HTTPSettings          `mapstructure:"http"`
	Postgres      PostgresSettings      `mapstructure:"postgres"`
	Redis         RedisSettings         `mapstructure:"redis"`
	Users         UsersSettings         `mapstructure:"users"`
	Session       SessionSettings       `mapstructure:"session"`
	JWT           JWTSettings           `mapstructure:"jwt"`
	Auth          AuthSettings          `mapstructure:"auth"`
	PasswordReset PasswordResetSettings `mapstructure:"password_reset"`
	Password      PasswordSettings      `mapstructure:"password"`
	Mail          MailSettings          `mapstructure:"mail"`
	Kafka         KafkaSettings         `mapstructure:"kafka"`
	Telemetry     TelemetrySettings     `mapstructure:"telemetry"`
	RateLimit     RateLimitSettings     `mapstructure:"rate_limit"`
	Argon2        Argon2Settings        `mapstructure:"argon2"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// HTTPSettings holds server timeouts and the sign-in cookie attributes.
type HTTPSettings struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	CookieDomain      string        `mapstructure:"cookie_domain"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	// URL, when set, overrides the discrete connection fields (redis:// or rediss://).
	URL        string `mapstructure:"url"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// UsersSettings selects where user records live: "postgres" or "memory".
type UsersSettings struct {
	Backend string `mapstructure:"backend"`
}

// SessionSettings configures the session and blacklist key-value backend.
type SessionSettings struct {
	Backend         string        `mapstructure:"backend"`
	SessionPrefix   string        `mapstructure:"session_prefix"`
	BlacklistPrefix string        `mapstructure:"blacklist_prefix"`
	BlacklistTTL    time.Duration `mapstructure:"blacklist_ttl"`
}

type JWTSettings struct {
	KeyDirectory    string        `mapstructure:"key_directory"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// AuthSettings carries sign-up escalation policy switches.
type AuthSettings struct {
	RestrictAdminUserCreation bool `mapstructure:"restrict_admin_user_creation"`
}

type PasswordResetSettings struct {
	TTL         time.Duration `mapstructure:"ttl"`
	LinkBaseURL string        `mapstructure:"link_base_url"`
}

// PasswordSettings configures the password acceptance policy.
type PasswordSettings struct {
	MinLength int `mapstructure:"min_length"`
	MaxLength int `mapstructure:"max_length"`
	MinScore  int `mapstructure:"min_score"`
}

// MailSettings configures outbound SMTP. An empty host selects the logging mailer.
type MailSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	TLSMode  string `mapstructure:"tls_mode"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	SignInMaxAttempts        int           `mapstructure:"signin_max_attempts"`
	SignUpMaxAttempts        int           `mapstructure:"signup_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"http.read_header_timeout",
	"http.read_timeout",
	"http.write_timeout",
	"http.idle_timeout",
	"http.shutdown_timeout",
	"http.cookie_domain",
	"http.cookie_secure",
	"http.allowed_origins",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.schema",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"postgres.auto_migrate",
	"redis.url",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.pool_size",
	"users.backend",
	"session.backend",
	"session.session_prefix",
	"session.blacklist_prefix",
	"session.blacklist_ttl",
	"jwt.key_directory",
	"jwt.issuer",
	"jwt.audience",
	"jwt.access_token_ttl",
	"jwt.refresh_token_ttl",
	"auth.restrict_admin_user_creation",
	"password_reset.ttl",
	"password_reset.link_base_url",
	"password.min_length",
	"password.max_length",
	"password.min_score",
	"mail.host",
	"mail.port",
	"mail.username",
	"mail.password",
	"mail.from",
	"mail.from_name",
	"mail.tls_mode",
	"kafka.enabled",
	"kafka.brokers",
	"kafka.topic_prefix",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.signin_max_attempts",
	"rate_limit.signup_max_attempts",
	"rate_limit.password_reset_max_attempts",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
}

// Load reads configuration from defaults and the environment.
func Load() (*AppConfig, error) {
	return LoadFile("")
}

// LoadFile is Load with an optional YAML/JSON/TOML config file layered under the environment.
func LoadFile(path string) (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IAM")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := bindEnvs(v, envKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Users.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown users.backend %q", c.Users.Backend)
	}
	switch c.Session.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown session.backend %q", c.Session.Backend)
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		return fmt.Errorf("config: token ttls must be positive")
	}
	if c.Session.BlacklistTTL <= 0 {
		return fmt.Errorf("config: session.blacklist_ttl must be positive")
	}
	if c.PasswordReset.TTL <= 0 {
		return fmt.Errorf("config: password_reset.ttl must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *AppConfig) IsProduction() bool {
	return c.App.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "petclub-iam")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("http.read_header_timeout", "5s")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.cookie_domain", "")
	v.SetDefault("http.cookie_secure", true)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "petclub")
	v.SetDefault("postgres.password", "petclub_password")
	v.SetDefault("postgres.database", "petclub")
	v.SetDefault("postgres.schema", "public")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("users.backend", "postgres")

	v.SetDefault("session.backend", "redis")
	v.SetDefault("session.session_prefix", "auth:session")
	v.SetDefault("session.blacklist_prefix", "auth:blacklist")
	v.SetDefault("session.blacklist_ttl", "24h")

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.issuer", "petclub-iam")
	v.SetDefault("jwt.audience", "petclub-api")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "24h")

	v.SetDefault("auth.restrict_admin_user_creation", false)

	v.SetDefault("password_reset.ttl", "5m")
	v.SetDefault("password_reset.link_base_url", "http://localhost:3000/recovery/set-new-password")

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.max_length", 128)
	v.SetDefault("password.min_score", 0)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@petclub.local")
	v.SetDefault("mail.from_name", "Pet Club")
	v.SetDefault("mail.tls_mode", "starttls")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "petclub")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "petclub-iam")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.signin_max_attempts", 5)
	v.SetDefault("rate_limit.signup_max_attempts", 3)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
