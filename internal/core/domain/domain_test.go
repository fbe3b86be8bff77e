package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" admin ")
	if err != nil || r != RoleAdmin {
		t.Fatalf("expected ADMIN, got %q (%v)", r, err)
	}
	_, err = ParseRole("superuser")
	if err == nil {
		t.Fatalf("expected unknown role to fail")
	}
	if !strings.Contains(err.Error(), "USER, ADMIN, ROOT") {
		t.Fatalf("expected the known roles in %q", err)
	}
	for _, known := range Roles {
		if !known.Valid() {
			t.Fatalf("%s should be valid", known)
		}
	}
}

func TestSignUpPolicyCanCreate(t *testing.T) {
	user, admin, root := RoleUser, RoleAdmin, RoleRoot

	cases := []struct {
		name   string
		policy SignUpPolicy
		actor  *Role
		target Role
		want   bool
	}{
		{"anonymous user", SignUpPolicy{}, nil, RoleUser, true},
		{"anonymous admin", SignUpPolicy{}, nil, RoleAdmin, true},
		{"anonymous root", SignUpPolicy{}, nil, RoleRoot, false},
		{"user creates root", SignUpPolicy{}, &user, RoleRoot, false},
		{"admin creates root", SignUpPolicy{}, &admin, RoleRoot, false},
		{"root creates root", SignUpPolicy{}, &root, RoleRoot, true},
		{"admin creates user", SignUpPolicy{}, &admin, RoleUser, true},
		{"restricted admin creates user", SignUpPolicy{RestrictAdminUserCreation: true}, &admin, RoleUser, false},
		{"restricted root creates user", SignUpPolicy{RestrictAdminUserCreation: true}, &root, RoleUser, true},
		{"invalid target", SignUpPolicy{}, &root, Role("GUEST"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.CanCreate(tc.actor, tc.target); got != tc.want {
				t.Fatalf("CanCreate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRoleIn(t *testing.T) {
	if !RoleUser.In() {
		t.Fatalf("empty set should allow every role")
	}
	if RoleUser.In(RoleAdmin, RoleRoot) {
		t.Fatalf("USER should not be in ADMIN/ROOT")
	}
	if !RoleRoot.In(RoleAdmin, RoleRoot) {
		t.Fatalf("ROOT should be in ADMIN/ROOT")
	}
}

func TestNewUserValidation(t *testing.T) {
	if _, err := NewUser("id-1", "Jane", "Jane@Example.com ", "hash", RoleUser); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, _ := NewUser("id-1", "Jane", "Jane@Example.com ", "hash", RoleUser)
	if u.Email != "jane@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}

	bad := []struct {
		id, name, email, hash string
		role                  Role
	}{
		{"", "Jane", "j@x.io", "h", RoleUser},
		{"1", "", "j@x.io", "h", RoleUser},
		{"1", "Jane", "", "h", RoleUser},
		{"1", "Jane", "j@x.io", "", RoleUser},
		{"1", "Jane", "j@x.io", "h", Role("GUEST")},
	}
	for _, b := range bad {
		if _, err := NewUser(b.id, b.name, b.email, b.hash, b.role); !errors.Is(err, ErrInvalidUser) {
			t.Fatalf("expected ErrInvalidUser for %+v, got %v", b, err)
		}
	}
}

func TestPasswordResetTicket(t *testing.T) {
	now := time.Now()

	if _, err := NewPasswordResetTicket("not-a-uuid", now.Add(time.Minute)); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
	if _, err := NewPasswordResetTicket(uuid.NewString(), time.Time{}); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected missing expiry error, got %v", err)
	}

	ticket, err := NewPasswordResetTicket(uuid.NewString(), now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Expired(now) {
		t.Fatalf("fresh ticket should not be expired")
	}
	if ticket.Expired(now.Add(5 * time.Minute)) {
		t.Fatalf("ticket should still be valid at its deadline")
	}
	if !ticket.Expired(now.Add(5*time.Minute + time.Nanosecond)) {
		t.Fatalf("ticket should expire right after its deadline")
	}
}

func TestAuthErrorKinds(t *testing.T) {
	err := AccessDenied(errors.New("mismatch"))
	if !errors.Is(err, ErrInvalidatedRefreshToken) {
		t.Fatalf("expected invalidated kind")
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("invalidated refresh token should also be unauthorized")
	}
	if PublicMessage(err, "x") != "Access Denied" {
		t.Fatalf("unexpected public message %q", PublicMessage(err, "x"))
	}
	if errors.Is(Forbidden("nope"), ErrUnauthorized) {
		t.Fatalf("forbidden must not match unauthorized")
	}
	if PublicMessage(errors.New("boom"), "fallback") != "fallback" {
		t.Fatalf("expected fallback for plain errors")
	}
}
