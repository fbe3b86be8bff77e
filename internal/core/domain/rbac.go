package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	RoleRoot  Role = "ROOT"
)

// Roles lists every valid role, lowest privilege first.
var Roles = []Role{RoleUser, RoleAdmin, RoleRoot}

// ParseRole accepts the canonical upper-case names, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		names := make([]string, len(Roles))
		for i, known := range Roles {
			names[i] = known.String()
		}
		return "", fmt.Errorf("domain: unknown role %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// In reports whether r appears in allowed. An empty set allows every role.
func (r Role) In(allowed ...Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}

// SignUpPolicy decides which actor may create an account with which role.
type SignUpPolicy struct {
	// RestrictAdminUserCreation forbids ADMIN actors from creating USER accounts.
	RestrictAdminUserCreation bool
}

// CanCreate reports whether actor (nil for anonymous) may create an account with role target.
func (p SignUpPolicy) CanCreate(actor *Role, target Role) bool {
	switch target {
	case RoleRoot:
		return actor != nil && *actor == RoleRoot
	case RoleUser:
		if p.RestrictAdminUserCreation && actor != nil && *actor == RoleAdmin {
			return false
		}
		return true
	case RoleAdmin:
		return true
	}
	return false
}

// NotifiesOnCreate reports whether an account created by actor should receive its credentials by mail.
func NotifiesOnCreate(actor *Role) bool {
	return actor != nil && (*actor == RoleAdmin || *actor == RoleRoot)
}
