package security

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arklim/petclub-iam/internal/core/domain"
)

// ErrKeyIDMissing indicates no kid is associated with the supplied key.
var ErrKeyIDMissing = errors.New("jwt: missing key identifier")

// ErrKeyNotRegistered indicates a supplied kid is unknown to the JWT manager.
var ErrKeyNotRegistered = errors.New("jwt: key not registered")

var (
	// ErrSigning is returned when a token cannot be signed with the configured key.
	ErrSigning = errors.New("jwt: signing failed")
	// ErrInvalidToken covers every verification failure: signature, audience, issuer, shape.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrTokenExpired is the expiry flavour of ErrInvalidToken.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// JWTManager coordinates signing key retrieval and JWKS generation.
type JWTManager struct {
	KeyProvider KeyProvider
	mu          sync.RWMutex
	publicKeys  map[string]*rsa.PublicKey
}

// NewJWTManager constructs a JWTManager for the supplied key provider.
func NewJWTManager(provider KeyProvider) *JWTManager {
	mgr := &JWTManager{
		KeyProvider: provider,
		publicKeys:  make(map[string]*rsa.PublicKey),
	}

	if provider != nil {
		for kid, key := range provider.ListVerificationKeys() {
			_ = mgr.RegisterPublicKey(kid, key)
		}
	}

	return mgr
}

// RegisterPublicKey associates a kid with a public key for JWKS publication and future lookup.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.publicKeys[kid] = key
	return nil
}

// GetSigningKey retrieves the active signing key and kid from the provider.
func (m *JWTManager) GetSigningKey() (string, *rsa.PrivateKey, error) {
	if m.KeyProvider == nil {
		return "", nil, fmt.Errorf("jwt: key provider not configured")
	}
	return m.KeyProvider.GetSigningKey()
}

// GetVerificationKey retrieves a public key by kid.
func (m *JWTManager) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	m.mu.RLock()
	key, ok := m.publicKeys[kid]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	if m.KeyProvider != nil {
		fetched, err := m.KeyProvider.GetVerificationKey(kid)
		if err == nil {
			_ = m.RegisterPublicKey(kid, fetched)
			return fetched, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
}

// JWKS produces the JSON Web Key Set for registered keys.
func (m *JWTManager) JWKS() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kids := make([]string, 0, len(m.publicKeys))
	for kid := range m.publicKeys {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	keys := make([]map[string]string, 0, len(kids))
	for _, kid := range kids {
		keys = append(keys, buildJWK(kid, m.publicKeys[kid]))
	}

	return json.Marshal(map[string]any{"keys": keys})
}

func buildJWK(kid string, key *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

// TokenClaims is the union of access and refresh token payloads.
// Access tokens carry email/name/role; refresh tokens carry refreshTokenId.
type TokenClaims struct {
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role,omitempty"`
	RefreshTokenID string `json:"refreshTokenId,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig carries the audience, issuer and lifetimes of issued tokens.
type TokenIssuerConfig struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer signs and verifies access and refresh tokens.
type TokenIssuer struct {
	keys *JWTManager
	cfg  TokenIssuerConfig
	now  func() time.Time
}

// TokenIssuerOption customises a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(keys *JWTManager, cfg TokenIssuerConfig, opts ...TokenIssuerOption) *TokenIssuer {
	i := &TokenIssuer{keys: keys, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AccessTTL returns the configured access token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

// Sign produces a token for userID valid for ttl. extra fills the private claims.
func (i *TokenIssuer) Sign(userID string, ttl time.Duration, extra TokenClaims) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: subject is required", ErrSigning)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", ErrSigning)
	}

	kid, key, err := i.keys.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("%w: get signing key: %v", ErrSigning, err)
	}
	if key == nil {
		return "", fmt.Errorf("%w: signing key unavailable", ErrSigning)
	}

	now := i.now().UTC()
	claims := extra
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.cfg.Issuer,
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Verify checks signature, audience, issuer and expiry and returns the claims.
func (i *TokenIssuer) Verify(raw string) (*TokenClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyAccess verifies an access token and returns the identity it carries.
// Refresh tokens are rejected.
func (i *TokenIssuer) VerifyAccess(raw string) (*domain.ActiveUser, error) {
	claims, err := i.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.RefreshTokenID != "" {
		return nil, fmt.Errorf("%w: refresh token presented as access token", ErrInvalidToken)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &domain.ActiveUser{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  role,
	}, nil
}

// VerifyRefresh verifies a refresh token and returns its subject and refresh token id.
func (i *TokenIssuer) VerifyRefresh(raw string) (domain.RefreshIdentity, error) {
	claims, err := i.Verify(raw)
	if err != nil {
		return domain.RefreshIdentity{}, err
	}
	if claims.RefreshTokenID == "" {
		return domain.RefreshIdentity{}, fmt.Errorf("%w: missing refreshTokenId", ErrInvalidToken)
	}
	return domain.RefreshIdentity{UserID: claims.Subject, RefreshTokenID: claims.RefreshTokenID}, nil
}

// GenerateTokenPair signs a fresh access/refresh pair for user concurrently.
func (i *TokenIssuer) GenerateTokenPair(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	pair := domain.TokenPair{RefreshTokenID: uuid.NewString()}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		signed, err := i.Sign(user.ID, i.cfg.AccessTTL, TokenClaims{
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role.String(),
		})
		pair.AccessToken = signed
		return err
	})
	g.Go(func() error {
		signed, err := i.Sign(user.ID, i.cfg.RefreshTTL, TokenClaims{
			RefreshTokenID: pair.RefreshTokenID,
		})
		pair.RefreshToken = signed
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (i *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}
	return i.keys.GetVerificationKey(kid)
}
