package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/infra/logger"
	"github.com/arklim/petclub-iam/internal/infra/mail"
	"github.com/arklim/petclub-iam/internal/infra/security"
	"github.com/arklim/petclub-iam/internal/repository"
)

const defaultResetTTL = 5 * time.Minute

// PasswordResetConfig controls ticket lifetime and the link mailed to the user.
type PasswordResetConfig struct {
	TTL         time.Duration
	LinkBaseURL string
}

// PasswordResetService issues and redeems single-use password reset tickets.
type PasswordResetService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	policy port.PasswordPolicy
	mailer port.Mailer
	events port.EventPublisher
	cfg    PasswordResetConfig
	now    func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicy,
	mailer port.Mailer,
	events port.EventPublisher,
	cfg PasswordResetConfig,
) *PasswordResetService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultResetTTL
	}
	return &PasswordResetService{
		users:  users,
		hasher: hasher,
		policy: policy,
		mailer: mailer,
		events: events,
		cfg:    cfg,
		now:    time.Now,
	}
}

// RequestReset stores a fresh ticket for email and mails the reset link.
// A delivery failure is returned and leaves the ticket pending.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}

	ticket, err := domain.NewPasswordResetTicket(uuid.NewString(), s.now().Add(s.cfg.TTL))
	if err != nil {
		return fmt.Errorf("build reset ticket: %w", err)
	}
	if err := s.users.SetResetTicket(ctx, user.ID, &ticket); err != nil {
		return fmt.Errorf("store reset ticket: %w", err)
	}

	link, err := mail.ResetLink(s.cfg.LinkBaseURL, user.Email, ticket.Token)
	if err != nil {
		return fmt.Errorf("build reset link: %w", err)
	}
	msg, err := mail.ResetPasswordMessage(user.Email, user.Name, link, s.cfg.TTL.String())
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	logger.WithContext(ctx).Info("password reset requested", zap.String("email", logger.MaskEmail(user.Email)))
	publishEvent(ctx, s.events, domain.AuthEvent{Type: domain.EventPasswordResetRequested, UserID: user.ID, Role: user.Role}, s.now)
	return nil
}

// CheckTicket fails with "request expired" when user has no live ticket, clearing any stale one.
func (s *PasswordResetService) CheckTicket(ctx context.Context, user *domain.User) error {
	if user.ResetTicket != nil && user.ResetTicket.Token != "" && !user.ResetTicket.Expired(s.now()) {
		return nil
	}
	if err := s.users.SetResetTicket(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("clear reset ticket: %w", err)
	}
	user.ResetTicket = nil
	return domain.Unauthorized("request expired")
}

// Reset redeems token for email and stores newPassword. The ticket is cleared in the same write.
func (s *PasswordResetService) Reset(ctx context.Context, email, newPassword, token string) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}

	if err := s.CheckTicket(ctx, user); err != nil {
		return err
	}

	if !security.SecureCompare(token, user.ResetTicket.Token) {
		return domain.Unauthorized("Invalid reset token")
	}

	if s.policy != nil {
		if err := s.policy.Validate(newPassword, user.Email, user.Name); err != nil {
			return &domain.AuthError{Kind: domain.ErrInvalidInput, Message: err.Error(), Err: err}
		}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.ResetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	publishEvent(ctx, s.events, domain.AuthEvent{Type: domain.EventPasswordResetCompleted, UserID: user.ID, Role: user.Role}, s.now)
	return nil
}

func (s *PasswordResetService) lookup(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}
