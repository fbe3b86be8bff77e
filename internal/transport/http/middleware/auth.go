package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/arklim/petclub-iam/internal/usecase"
)

// Authorize applies the route table to every request. It is installed once on
// the engine; handlers read the caller with GetActiveUser and GetAccessToken.
func Authorize(gate *usecase.AuthorizationGate, table usecase.RouteTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			// Unmatched routes fall through to gin's 404 handler.
			c.Next()
			return
		}

		decision, err := gate.Authorize(c.Request.Context(), table, c.Request.Method, path, c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if decision.User != nil {
			c.Set(ActiveUserKey, decision.User)
			c.Set(AccessTokenKey, decision.Token)
			GetRequestContext(c).UserID = decision.User.ID
		}

		c.Next()
	}
}
