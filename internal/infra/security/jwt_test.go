package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/petclub-iam/internal/core/domain"
)

func newTestIssuer(t *testing.T, now func() time.Time) (*TokenIssuer, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	mgr := NewJWTManager(NewStaticKeyProvider("test", key))
	issuer := NewTokenIssuer(mgr, TokenIssuerConfig{
		Issuer:     "petclub-iam",
		Audience:   "petclub-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, WithClock(now))
	return issuer, key
}

func testUser() domain.User {
	return domain.User{ID: "user-1", Name: "Jane", Email: "jane@example.com", Role: domain.RoleAdmin}
}

func TestGenerateTokenPairRoundTrip(t *testing.T) {
	issuer, _ := newTestIssuer(t, time.Now)

	pair, err := issuer.GenerateTokenPair(context.Background(), testUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	active, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if active.ID != "user-1" || active.Email != "jane@example.com" || active.Name != "Jane" || active.Role != domain.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", active)
	}

	ref, err := issuer.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if ref.UserID != "user-1" || ref.RefreshTokenID != pair.RefreshTokenID {
		t.Fatalf("unexpected refresh identity: %+v", ref)
	}
}

func TestRefreshTokenUsesRefreshTTL(t *testing.T) {
	issuer, _ := newTestIssuer(t, time.Now)

	pair, err := issuer.GenerateTokenPair(context.Background(), testUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	lifetime := func(raw string) time.Duration {
		claims := &TokenClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			t.Fatalf("parse: %v", err)
		}
		return claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	}
	if got := lifetime(pair.RefreshToken); got != 24*time.Hour || got != issuer.RefreshTTL() {
		t.Fatalf("expected 24h refresh lifetime, got %s", got)
	}
	if got := lifetime(pair.AccessToken); got != issuer.AccessTTL() {
		t.Fatalf("expected access lifetime %s, got %s", issuer.AccessTTL(), got)
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	issuer, _ := newTestIssuer(t, time.Now)
	pair, err := issuer.GenerateTokenPair(context.Background(), testUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if _, err := issuer.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	current := time.Now()
	issuer, _ := newTestIssuer(t, func() time.Time { return current })

	token, err := issuer.Sign("user-1", time.Minute, TokenClaims{Role: "USER"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsForeignAudienceAndKey(t *testing.T) {
	issuer, _ := newTestIssuer(t, time.Now)
	other, _ := newTestIssuer(t, time.Now)

	token, err := other.Sign("user-1", time.Minute, TokenClaims{Role: "USER"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature failure, got %v", err)
	}

	foreign := NewTokenIssuer(issuer.keys, TokenIssuerConfig{Issuer: "petclub-iam", Audience: "other-api", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	token, err = foreign.Sign("user-1", time.Minute, TokenClaims{Role: "USER"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected audience failure, got %v", err)
	}

	if _, err := issuer.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected malformed failure, got %v", err)
	}
}

func TestSignWithoutKeyFails(t *testing.T) {
	issuer := NewTokenIssuer(NewJWTManager(NewStaticKeyProvider("none", nil)), TokenIssuerConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	if _, err := issuer.Sign("user-1", time.Minute, TokenClaims{}); !errors.Is(err, ErrSigning) {
		t.Fatalf("expected ErrSigning, got %v", err)
	}
	if _, err := issuer.GenerateTokenPair(context.Background(), testUser()); !errors.Is(err, ErrSigning) {
		t.Fatalf("expected ErrSigning from pair, got %v", err)
	}
}

func TestSuccessiveTokensDiffer(t *testing.T) {
	fixed := time.Now()
	issuer, _ := newTestIssuer(t, func() time.Time { return fixed })

	a, _ := issuer.Sign("user-1", time.Minute, TokenClaims{Role: "USER"})
	b, _ := issuer.Sign("user-1", time.Minute, TokenClaims{Role: "USER"})
	if a == b {
		t.Fatal("tokens signed in the same instant must still be distinct")
	}
}

func TestFileKeyProviderAndJWKS(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteKeyPair(dir, "2026-01", 2048); err != nil {
		t.Fatalf("WriteKeyPair: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitkeep"), nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	provider, err := NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider: %v", err)
	}
	kid, key, err := provider.GetSigningKey()
	if err != nil || kid != "2026-01" || key == nil {
		t.Fatalf("unexpected signing key: %q %v", kid, err)
	}

	payload, err := NewJWTManager(provider).JWKS()
	if err != nil {
		t.Fatalf("JWKS: %v", err)
	}
	var set struct {
		Keys []map[string]string `json:"keys"`
	}
	if err := json.Unmarshal(payload, &set); err != nil {
		t.Fatalf("decode jwks: %v", err)
	}
	if len(set.Keys) != 1 || set.Keys[0]["kid"] != "2026-01" || set.Keys[0]["alg"] != "RS256" {
		t.Fatalf("unexpected jwks: %s", payload)
	}
}

func TestNewKeyProviderFallsBackOutsideProduction(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")

	if _, err := NewKeyProvider("production", missing); err == nil {
		t.Fatal("production must require a key directory")
	}
	provider, err := NewKeyProvider("development", missing)
	if err != nil {
		t.Fatalf("development fallback: %v", err)
	}
	if kid, _, err := provider.GetSigningKey(); err != nil || kid != "ephemeral" {
		t.Fatalf("expected ephemeral key, got %q %v", kid, err)
	}
}
