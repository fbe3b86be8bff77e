package logger

import (
	"context"
	"net"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "petclub-iam"

var (
	lg   *zap.Logger
	once sync.Once
)

// New builds the process-wide logger once. Production emits JSON at info,
// everything else gets the colored development encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if env == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "ts"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		cfg.InitialFields = map[string]any{"service": serviceName, "env": env}

		lg, err = cfg.Build()
	})

	return lg, err
}

// WithContext returns the logger enriched with the request id and, when a
// span is recording, the trace id.
func WithContext(ctx context.Context) *zap.Logger {
	base := lg
	if base == nil {
		base, _ = zap.NewDevelopment()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 2)
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// RequestIDKey is the context key the HTTP middleware stores the request id under.
type RequestIDKey struct{}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey{}).(string)
	return id
}

// MaskEmail keeps up to three leading characters of the local part:
// john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***"
	}
	if len(local) > 3 {
		local = local[:3]
	}
	if local == "" {
		return "***@" + domain
	}
	return local + "***@" + domain
}

// MaskIP hides the host part: two octets of IPv4, four groups of IPv6 survive.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return "***"
	case parsed.To4() != nil && strings.Contains(ip, "."):
		parts := strings.Split(ip, ".")
		return parts[0] + "." + parts[1] + ".*.*"
	default:
		parts := strings.Split(ip, ":")
		if len(parts) < 4 {
			return "***"
		}
		return strings.Join(parts[:4], ":") + ":*:*:*:*"
	}
}

// MaskToken keeps the last 6 characters of a bearer or reset token for correlation.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return "***" + token[len(token)-6:]
}
