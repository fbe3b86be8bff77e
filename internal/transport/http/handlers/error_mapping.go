package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/transport/http/middleware"
)

type ErrorCase = middleware.ErrorCase

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			message := cs.Message
			if message == "" {
				message = domain.PublicMessage(err, http.StatusText(cs.Status))
			}
			c.JSON(cs.Status, NewErrorResponse(c, message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

var domainErrorCases = middleware.DomainErrorCases()

// RespondWithError writes err using the domain error taxonomy.
func RespondWithError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, domainErrorCases, http.StatusInternalServerError, "internal server error")
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, message))
}
