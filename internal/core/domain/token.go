package domain

// ActiveUser is the identity carried by a verified access token.
type ActiveUser struct {
	ID    string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// RoleRef returns a pointer to the user's role, or nil for a nil receiver.
func (a *ActiveUser) RoleRef() *Role {
	if a == nil {
		return nil
	}
	r := a.Role
	return &r
}

// RefreshIdentity is what a verified refresh token yields.
type RefreshIdentity struct {
	UserID         string
	RefreshTokenID string
}

// TokenPair is the access/refresh pair issued at sign-in and on every refresh.
type TokenPair struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID string
}
