package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/transport/http/middleware"
	"github.com/arklim/petclub-iam/internal/usecase"
)

// AccessTokenCookie is the cookie set on sign-in.
const AccessTokenCookie = "accessToken"

// CookieConfig controls the access token cookie attributes.
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler exposes the /auth endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	reset  *usecase.PasswordResetService
	cookie CookieConfig
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, reset *usecase.PasswordResetService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, reset: reset, cookie: cookie}
}

// SignUp handles POST /auth/signup. A caller that presents a valid bearer
// token signs up on behalf of that identity, which is how ADMIN and ROOT
// accounts get created.
func (h *AuthHandler) SignUp(c *gin.Context) {
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

func bindSignUp(c *gin.Context) (usecase.SignUpInput, bool) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid sign-up payload")
		return usecase.SignUpInput{}, false
	}

	in := usecase.SignUpInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Role != "" {
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			respondBadRequest(c, "unknown role")
			return usecase.SignUpInput{}, false
		}
		in.Role = role
	}
	return in, true
}

// SignIn handles POST /auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid sign-in payload")
		return
	}

	result, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	h.setAccessCookie(c, result.AccessToken, h.cookie.MaxAge)
	c.JSON(http.StatusOK, newAuthResponse(result))
}

// RefreshTokens handles POST /auth/refresh-tokens. The bearer token of the
// request is the access token that gets blacklisted.
func (h *AuthHandler) RefreshTokens(c *gin.Context) {
	var req RefreshTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid refresh payload")
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, middleware.GetAccessToken(c))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	h.setAccessCookie(c, result.AccessToken, h.cookie.MaxAge)
	c.JSON(http.StatusOK, newAuthResponse(result))
}

// SignOut handles POST /auth/signout.
func (h *AuthHandler) SignOut(c *gin.Context) {
	user, ok := middleware.GetActiveUser(c)
	if !ok {
		RespondWithError(c, domain.Unauthorized("authentication required"))
		return
	}

	if err := h.auth.SignOut(c.Request.Context(), user.ID, middleware.GetAccessToken(c)); err != nil {
		RespondWithError(c, err)
		return
	}

	h.setAccessCookie(c, "", -1)
	c.JSON(http.StatusOK, MessageResponse{Message: "signed out"})
}

// RequestPasswordReset handles POST /auth/request-password-reset.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req RequestPasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid password reset payload")
		return
	}

	if err := h.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset email sent"})
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid password reset payload")
		return
	}

	if err := h.reset.Reset(c.Request.Context(), req.Email, req.NewPassword, req.ResetToken); err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, value string, maxAge time.Duration) {
	seconds := int(maxAge.Seconds())
	if maxAge < 0 {
		seconds = -1
	}
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(AccessTokenCookie, value, seconds, "/", h.cookie.Domain, h.cookie.Secure, true)
}
