package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/petclub-iam/internal/core/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message uses the error's public message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

var domainErrorCases = []ErrorCase{
	{Err: domain.ErrInvalidInput, Status: http.StatusBadRequest},
	{Err: domain.ErrUnauthorized, Status: http.StatusUnauthorized},
	{Err: domain.ErrForbidden, Status: http.StatusForbidden},
	{Err: domain.ErrNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrConflict, Status: http.StatusConflict},
}

// DomainErrorCases returns a copy of the domain error taxonomy shared by the
// middleware and the handlers.
func DomainErrorCases() []ErrorCase {
	return append([]ErrorCase(nil), domainErrorCases...)
}

// StatusFromError maps domain error kinds to HTTP status codes. Anything else is a 500.
func StatusFromError(err error) int {
	for _, cs := range domainErrorCases {
		if errors.Is(err, cs.Err) {
			return cs.Status
		}
	}
	return http.StatusInternalServerError
}

// AbortWithError writes the mapped status and public message of err.
// Internal errors are recorded on the gin context for the access log and never echoed.
func AbortWithError(c *gin.Context, err error) {
	status := StatusFromError(err)
	message := domain.PublicMessage(err, http.StatusText(status))
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, NewErrorResponse(c, message))
}
