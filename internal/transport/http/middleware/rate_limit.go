package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/port"
	appLogger "github.com/arklim/petclub-iam/internal/infra/logger"
)

// IdentifierFunc extracts the identifier a limit is scoped to. ok=false skips the rule.
type IdentifierFunc func(*gin.Context) (id string, ok bool)

// RateLimitRule is a sliding-window limit: at most Limit requests per Window per identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

func (r RateLimitRule) usable() bool {
	return r.Identifier != nil && r.Limit > 0 && r.Window > 0
}

// RateLimiter enforces sliding-window limits on the unauthenticated auth routes.
// Store failures fail open.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// window is the state of one rule for one identifier at a point in time.
type window struct {
	rule       RateLimitRule
	identifier string
	allowed    bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// tighter reports whether w should drive the response headers instead of other.
func (w window) tighter(other window) bool {
	if w.allowed != other.allowed {
		return !w.allowed
	}
	if w.remaining != other.remaining {
		return w.remaining < other.remaining
	}
	return w.reset.Before(other.reset)
}

func (w window) retrySeconds() int {
	return max(int(math.Ceil(w.retryAfter.Seconds())), 0)
}

func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule to gin's resolved client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a middleware enforcing every usable rule. The first rule
// over its limit rejects the request with 429.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.usable() {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var shown *window

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			w, err := rl.check(c.Request.Context(), rule, identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskIP(identifier)),
					zap.Error(err),
				)
				continue
			}

			if !w.allowed {
				writeRateLimitHeaders(c, w)
				rl.reject(c, w)
				return
			}
			if shown == nil || w.tighter(*shown) {
				shown = &w
			}
		}

		if shown != nil {
			writeRateLimitHeaders(c, *shown)
		}
		c.Next()
	}
}

// check evaluates rule for identifier and records the attempt when it is allowed.
func (rl *RateLimiter) check(ctx context.Context, rule RateLimitRule, identifier string, now time.Time) (window, error) {
	key := rule.Name + ":" + identifier

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return window{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return window{}, err
	}
	oldest, found, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return window{}, err
	}

	w := window{rule: rule, identifier: identifier, reset: now.Add(rule.Window)}
	if found {
		w.reset = oldest.Add(rule.Window)
	}
	w.retryAfter = max(w.reset.Sub(now), 0)

	if count >= rule.Limit {
		return w, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return window{}, err
	}
	w.allowed = true
	w.remaining = max(rule.Limit-count-1, 0)
	return w, nil
}

func writeRateLimitHeaders(c *gin.Context, w window) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(w.rule.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(w.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(w.reset.Unix(), 10))
	if !w.allowed {
		h.Set("Retry-After", strconv.Itoa(w.retrySeconds()))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, w window) {
	seconds := w.retrySeconds()
	rl.logger.Warn("rate limit exceeded",
		zap.String("rule", w.rule.Name),
		zap.String("identifier", appLogger.MaskIP(w.identifier)),
		zap.Int("retry_after", seconds),
	)

	msg := fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, NewErrorResponse(c, msg))
}
