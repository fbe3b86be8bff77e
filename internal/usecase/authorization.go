package usecase

import (
	"context"
	"strings"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
)

// RouteKey identifies a route by method and registered path pattern.
type RouteKey struct {
	Method string
	Path   string
}

// RoutePolicy is the access rule attached to a route.
// Roles is ignored on public routes; an empty Roles allows any authenticated user.
type RoutePolicy struct {
	Public bool
	Roles  []domain.Role
}

// Public marks a route as reachable without a token.
func Public() RoutePolicy { return RoutePolicy{Public: true} }

// Private requires a valid token and, when roles are given, one of those roles.
func Private(roles ...domain.Role) RoutePolicy { return RoutePolicy{Roles: roles} }

// RouteTable maps routes to their policy. Routes absent from the table are private.
type RouteTable map[RouteKey]RoutePolicy

// Lookup returns the policy of method+path, defaulting to Private().
func (t RouteTable) Lookup(method, path string) RoutePolicy {
	if p, ok := t[RouteKey{Method: strings.ToUpper(method), Path: path}]; ok {
		return p
	}
	return Private()
}

// Decision is the outcome of a successful authorization.
type Decision struct {
	User  *domain.ActiveUser
	Token string
}

// AuthorizationGate checks bearer tokens against the issuer and the blacklist
// and applies route policies.
type AuthorizationGate struct {
	tokens   port.TokenIssuer
	sessions port.SessionStore
}

func NewAuthorizationGate(tokens port.TokenIssuer, sessions port.SessionStore) *AuthorizationGate {
	return &AuthorizationGate{tokens: tokens, sessions: sessions}
}

// AccessTokenCheck validates the Authorization header value and returns the
// identity and raw token. Blacklist store failures are returned as-is.
func (g *AuthorizationGate) AccessTokenCheck(ctx context.Context, header string) (*domain.ActiveUser, string, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, "", domain.Unauthorized("Missing bearer token")
	}

	user, err := g.tokens.VerifyAccess(token)
	if err != nil {
		return nil, "", &domain.AuthError{Kind: domain.ErrUnauthorized, Message: "Invalid token", Err: err}
	}

	revoked, err := g.sessions.IsBlacklisted(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if revoked {
		return nil, "", domain.Unauthorized("Token has been revoked")
	}
	return user, token, nil
}

// Authorize applies the policy of method+path from table to the request.
func (g *AuthorizationGate) Authorize(ctx context.Context, table RouteTable, method, path, header string) (Decision, error) {
	policy := table.Lookup(method, path)

	if policy.Public {
		var decision Decision
		if header != "" {
			if user, token, err := g.AccessTokenCheck(ctx, header); err == nil {
				decision.User, decision.Token = user, token
			}
		}
		return decision, nil
	}

	user, token, err := g.AccessTokenCheck(ctx, header)
	if err != nil {
		return Decision{}, err
	}
	if !user.Role.In(policy.Roles...) {
		return Decision{}, domain.Forbidden("Insufficient permissions")
	}
	return Decision{User: user, Token: token}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
