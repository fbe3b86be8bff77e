package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/transport/http/middleware"
	"github.com/arklim/petclub-iam/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse = middleware.ErrorResponse

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return middleware.NewErrorResponse(c, errorMsg)
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignUpRequest is the body of POST /auth/signup and POST /users.
type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokensRequest is the body of POST /auth/refresh-tokens.
type RefreshTokensRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type RequestPasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
	ResetToken  string `json:"resetToken" binding:"required"`
}

// UserResponse is the public view of a user. It never carries the password hash or reset ticket.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}

func newUserResponse(u domain.User) UserResponse {
	resp := UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

// AuthResponse is returned by sign-in and refresh.
type AuthResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         UserResponse `json:"user"`
}

func newAuthResponse(r usecase.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         newUserResponse(r.User),
	}
}

// UserListResponse is a page of users.
type UserListResponse struct {
	Users  []UserResponse `json:"users"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// HealthResponse describes liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadinessResponse reports each dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
