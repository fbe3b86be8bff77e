package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/infra/logger"
	"github.com/arklim/petclub-iam/internal/infra/mail"
	"github.com/arklim/petclub-iam/internal/infra/telemetry"
	"github.com/arklim/petclub-iam/internal/repository"
)

// SignUpInput carries the fields of a new account. An empty Role means USER.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// AuthResult is what sign-in and refresh hand back: the new pair and the signed-in user.
type AuthResult struct {
	domain.TokenPair
	User domain.User
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users    port.UserRepository
	Sessions port.SessionStore
	Tokens   port.TokenIssuer
	Hasher   port.PasswordHasher
	Policy   port.PasswordPolicy
	Mailer   port.Mailer
	Events   port.EventPublisher
	Metrics  port.AuthMetrics
	Logger   *zap.Logger
}

// AuthService coordinates sign-up, sign-in, refresh rotation and sign-out.
type AuthService struct {
	users    port.UserRepository
	sessions port.SessionStore
	tokens   port.TokenIssuer
	hasher   port.PasswordHasher
	policy   port.PasswordPolicy
	mailer   port.Mailer
	events   port.EventPublisher
	metrics  port.AuthMetrics
	signUp   domain.SignUpPolicy
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps AuthDeps, signUp domain.SignUpPolicy) *AuthService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:    deps.Users,
		sessions: deps.Sessions,
		tokens:   deps.Tokens,
		hasher:   deps.Hasher,
		policy:   deps.Policy,
		mailer:   deps.Mailer,
		events:   deps.Events,
		metrics:  deps.Metrics,
		signUp:   signUp,
		logger:   log,
		now:      time.Now,
	}
}

// SignUp creates an account. actor is the authenticated caller, nil for anonymous sign-up.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput, actor *domain.ActiveUser) (domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, domain.InvalidInput("Unknown role")
	}

	actorRole := actor.RoleRef()
	if !s.signUp.CanCreate(actorRole, role) {
		return domain.User{}, domain.Forbidden("Insufficient permissions")
	}

	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" || in.Password == "" {
		return domain.User{}, domain.InvalidInput("name, email and password are required")
	}

	if s.policy != nil {
		if err := s.policy.Validate(in.Password, email, name); err != nil {
			return domain.User{}, &domain.AuthError{Kind: domain.ErrInvalidInput, Message: err.Error(), Err: err}
		}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.User{}, domain.Conflict("User already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := domain.NewUser(uuid.NewString(), name, email, hash, role)
	if err != nil {
		return domain.User{}, &domain.AuthError{Kind: domain.ErrInvalidInput, Message: "Invalid user", Err: err}
	}
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, domain.Conflict("User already exists")
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	if domain.NotifiesOnCreate(actorRole) {
		s.sendCredentials(ctx, user, in.Password)
	}

	event := domain.AuthEvent{Type: domain.EventUserSignedUp, UserID: user.ID, Role: user.Role}
	if actor != nil {
		event.ActorID = actor.ID
	}
	s.publish(ctx, event)

	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) sendCredentials(ctx context.Context, user domain.User, password string) {
	if s.mailer == nil {
		return
	}
	log := logger.WithContext(ctx)
	msg, err := mail.CredentialsMessage(user.Email, user.Name, password, user.Role.String())
	if err != nil {
		log.Error("render credentials email", zap.Error(err))
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error("send credentials email",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}
}

// SignIn checks credentials and starts a new session, replacing any existing one.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.observeSignIn(telemetry.OutcomeFailure)
			return AuthResult{}, domain.Unauthorized("User not found")
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return AuthResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.observeSignIn(telemetry.OutcomeFailure)
		return AuthResult{}, domain.Unauthorized("Invalid credentials")
	}

	result, err := s.generateTokens(ctx, *user)
	if err != nil {
		return AuthResult{}, err
	}

	s.observeSignIn(telemetry.OutcomeSuccess)
	s.publish(ctx, domain.AuthEvent{Type: domain.EventUserSignedIn, UserID: user.ID, Role: user.Role})
	return result, nil
}

func (s *AuthService) generateTokens(ctx context.Context, user domain.User) (AuthResult, error) {
	pair, err := s.tokens.GenerateTokenPair(ctx, user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate token pair: %w", err)
	}
	if err := s.sessions.Insert(ctx, user.ID, pair.RefreshTokenID); err != nil {
		return AuthResult{}, err
	}
	user.PasswordHash = ""
	user.ResetTicket = nil
	return AuthResult{TokenPair: pair, User: user}, nil
}

// Refresh rotates the session: the presented refresh token must be the live one,
// the caller's access token is blacklisted and a new pair replaces the slot.
// Both tokens must belong to the same user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, accessToken string) (AuthResult, error) {
	identity, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.observeRefresh(telemetry.OutcomeFailure)
		return AuthResult{}, &domain.AuthError{Kind: domain.ErrUnauthorized, Message: "Invalid refresh token", Err: err}
	}

	bearer, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		s.observeRefresh(telemetry.OutcomeFailure)
		return AuthResult{}, &domain.AuthError{Kind: domain.ErrUnauthorized, Message: "Invalid access token", Err: err}
	}
	if bearer.ID != identity.UserID {
		s.observeRefresh(telemetry.OutcomeFailure)
		logger.WithContext(ctx).Warn("refresh token presented with another user's access token",
			zap.String("user_id", identity.UserID))
		return AuthResult{}, domain.Unauthorized("Token subject mismatch")
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.observeRefresh(telemetry.OutcomeFailure)
			return AuthResult{}, domain.Unauthorized("User not found")
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if _, err := s.sessions.Validate(ctx, user.ID, identity.RefreshTokenID); err != nil {
		if errors.Is(err, domain.ErrInvalidatedRefreshToken) {
			s.observeRefresh(telemetry.OutcomeReuse)
			logger.WithContext(ctx).Warn("refresh token reuse detected", zap.String("user_id", user.ID))
			s.publish(ctx, domain.AuthEvent{Type: domain.EventRefreshReuseDetected, UserID: user.ID, Role: user.Role})
			return AuthResult{}, domain.AccessDenied(err)
		}
		return AuthResult{}, err
	}

	if err := s.sessions.AddToBlacklist(ctx, accessToken); err != nil {
		return AuthResult{}, err
	}
	s.observeRevocation(telemetry.ReasonRefresh)

	if err := s.sessions.Invalidate(ctx, user.ID); err != nil {
		return AuthResult{}, err
	}

	result, err := s.generateTokens(ctx, *user)
	if err != nil {
		return AuthResult{}, err
	}

	s.observeRefresh(telemetry.OutcomeSuccess)
	s.publish(ctx, domain.AuthEvent{Type: domain.EventSessionRefreshed, UserID: user.ID, Role: user.Role})
	return result, nil
}

// SignOut blacklists accessToken and drops the user's session.
func (s *AuthService) SignOut(ctx context.Context, userID, accessToken string) error {
	if err := s.sessions.AddToBlacklist(ctx, accessToken); err != nil {
		return err
	}
	s.observeRevocation(telemetry.ReasonSignOut)

	if err := s.sessions.Invalidate(ctx, userID); err != nil {
		return err
	}

	s.publish(ctx, domain.AuthEvent{Type: domain.EventSessionSignedOut, UserID: userID})
	return nil
}

// publish is best effort; a failed publish never fails the auth operation.
func (s *AuthService) publish(ctx context.Context, event domain.AuthEvent) {
	publishEvent(ctx, s.events, event, s.now)
}

func publishEvent(ctx context.Context, events port.EventPublisher, event domain.AuthEvent, now func() time.Time) {
	if events == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.OccurredAt = now().UTC()
	if err := events.PublishAuthEvent(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish auth event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (s *AuthService) observeSignIn(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveSignIn(outcome)
	}
}

func (s *AuthService) observeRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveRefresh(outcome)
	}
}

func (s *AuthService) observeRevocation(reason string) {
	if s.metrics != nil {
		s.metrics.ObserveRevocation(reason)
	}
}
