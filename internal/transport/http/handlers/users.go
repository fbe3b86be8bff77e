package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/transport/http/middleware"
	"github.com/arklim/petclub-iam/internal/usecase"
)

// UserHandler exposes the role-gated /users endpoints.
type UserHandler struct {
	users *usecase.UserService
	auth  *usecase.AuthService
}

func NewUserHandler(users *usecase.UserService, auth *usecase.AuthService) *UserHandler {
	return &UserHandler{users: users, auth: auth}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	active, ok := middleware.GetActiveUser(c)
	if !ok {
		RespondWithError(c, domain.Unauthorized("authentication required"))
		return
	}
	h.respondUser(c, active.ID)
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	h.respondUser(c, c.Param("id"))
}

func (h *UserHandler) respondUser(c *gin.Context, id string) {
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// List handles GET /users?limit=&offset=.
func (h *UserHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondBadRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		respondBadRequest(c, "offset must be an integer")
		return
	}

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	c.JSON(http.StatusOK, UserListResponse{Users: out, Limit: limit, Offset: offset})
}

// Create handles POST /users: an ADMIN or ROOT creates an account, which mails the credentials.
func (h *UserHandler) Create(c *gin.Context) {
	in, ok := bindSignUp(c)
	if !ok {
		return
	}

	actor, _ := middleware.GetActiveUser(c)
	user, err := h.auth.SignUp(c.Request.Context(), in, actor)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(user))
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
