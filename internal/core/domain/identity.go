package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidUser is returned when a user record fails construction checks.
var ErrInvalidUser = errors.New("domain: invalid user")

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	ResetTicket  *PasswordResetTicket
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser validates the credential fields and returns a User without a reset ticket.
func NewUser(id, name, email, passwordHash string, role Role) (User, error) {
	u := User{
		ID:           strings.TrimSpace(id),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	return u, nil
}

// Validate checks the invariants every stored user must hold.
func (u User) Validate() error {
	switch {
	case u.ID == "":
		return wrapInvalid("id is required")
	case u.Name == "":
		return wrapInvalid("name is required")
	case u.Email == "":
		return wrapInvalid("email is required")
	case u.PasswordHash == "":
		return wrapInvalid("password hash is required")
	case !u.Role.Valid():
		return wrapInvalid("role is invalid")
	}
	if u.ResetTicket != nil {
		if err := u.ResetTicket.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PasswordResetTicket is a pending, single-use password reset grant.
type PasswordResetTicket struct {
	Token     string
	ExpiresAt time.Time
}

// NewPasswordResetTicket builds a ticket and checks the token is a UUID.
func NewPasswordResetTicket(token string, expiresAt time.Time) (PasswordResetTicket, error) {
	t := PasswordResetTicket{Token: token, ExpiresAt: expiresAt}
	if err := t.Validate(); err != nil {
		return PasswordResetTicket{}, err
	}
	return t, nil
}

// Validate enforces that token and expiry are set together and the token is a UUID.
func (t PasswordResetTicket) Validate() error {
	if t.Token == "" || t.ExpiresAt.IsZero() {
		return wrapInvalid("reset token and expiry must be set together")
	}
	if _, err := uuid.Parse(t.Token); err != nil {
		return wrapInvalid("reset token must be a uuid")
	}
	return nil
}

// Expired reports whether the ticket can no longer be redeemed at now.
// The deadline itself is still redeemable.
func (t PasswordResetTicket) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func wrapInvalid(msg string) error {
	return &invalidUserError{msg: msg}
}

type invalidUserError struct{ msg string }

func (e *invalidUserError) Error() string { return "domain: invalid user: " + e.msg }

func (e *invalidUserError) Is(target error) bool { return target == ErrInvalidUser }
