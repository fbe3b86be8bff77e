package security

import (
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// Violation codes reported in PasswordValidationError.Code.
const (
	ViolationMinLength = "min_length"
	ViolationMaxLength = "max_length"
	ViolationWeak      = "weak_password"
)

const maxStrengthScore = 4

// PasswordValidationError is the first policy rule a password broke.
// Message is safe to show to the client.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordPolicyConfig holds the acceptance thresholds for new passwords.
type PasswordPolicyConfig struct {
	MinLength int
	// MaxLength of zero means unbounded.
	MaxLength int
	// MinScore is the minimum zxcvbn score (0-4). Zero disables the strength check.
	MinScore int
}

// PasswordPolicy validates new passwords, feeding user inputs such as the
// email and name into the strength estimator.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 1
	}
	if cfg.MinScore > maxStrengthScore {
		cfg.MinScore = maxStrengthScore
	}
	return &PasswordPolicy{cfg: cfg}
}

// Validate checks length first, then strength, and returns a *PasswordValidationError.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	length := utf8.RuneCountInString(password)

	switch {
	case length < p.cfg.MinLength:
		return &PasswordValidationError{
			Code:    ViolationMinLength,
			Message: fmt.Sprintf("password must be at least %d characters long", p.cfg.MinLength),
		}
	case p.cfg.MaxLength > 0 && length > p.cfg.MaxLength:
		return &PasswordValidationError{
			Code:    ViolationMaxLength,
			Message: fmt.Sprintf("password must be at most %d characters long", p.cfg.MaxLength),
		}
	}

	if p.cfg.MinScore > 0 && zxcvbn.PasswordStrength(password, userInputs).Score < p.cfg.MinScore {
		return &PasswordValidationError{
			Code:    ViolationWeak,
			Message: "password is too weak; choose a more complex value",
		}
	}
	return nil
}
