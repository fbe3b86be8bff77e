package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/petclub-iam/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// ActiveUserKey holds the *domain.ActiveUser attached by Authorize.
	ActiveUserKey = "active_user"
	// AccessTokenKey holds the raw bearer token attached by Authorize.
	AccessTokenKey = "access_token"

	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext adds trace ID and request context to each request
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}

// GetActiveUser returns the identity of the bearer token, if the request carried a valid one.
func GetActiveUser(c *gin.Context) (*domain.ActiveUser, bool) {
	val, exists := c.Get(ActiveUserKey)
	if !exists {
		return nil, false
	}
	user, ok := val.(*domain.ActiveUser)
	return user, ok && user != nil
}

// GetAccessToken returns the raw bearer token accepted by Authorize.
func GetAccessToken(c *gin.Context) string {
	return c.GetString(AccessTokenKey)
}
