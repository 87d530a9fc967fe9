// Package identity is the boundary to the identity service: sign-up, sign-in,
// token refresh, code exchange and resolving a user from an access token.
// The rest of the service only ever sees the Provider interface and the
// Verifier built on top of it.
package identity

import (
	"context"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
)

// User is a verified identity as reported by the identity service.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	EmailConfirmed bool   `json:"-"`
}

// Session is an access/refresh token pair minted by the identity service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"-"`
}

//go:generate mockgen -destination=mock/provider.go -package=mock budgettracker/internal/identity Provider

// Provider is the identity service contract.
type Provider interface {
	// SignUp creates an identity. The identity cannot sign in until its email is confirmed.
	SignUp(ctx context.Context, email, password, fullName string) (*User, error)
	// SignIn exchanges credentials for a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// Refresh mints a new session from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	// GetUser resolves the user an access token belongs to.
	GetUser(ctx context.Context, accessToken string) (*User, error)
	// ExchangeCode trades an authorization code (e.g. from a confirmation email) for a session.
	ExchangeCode(ctx context.Context, code, verifier string) (*Session, error)
}

// Verifier turns a token into a verified identity. It holds no cache: every
// call goes to the identity service, which stays the source of truth for
// revocation.
type Verifier struct {
	provider Provider
}

// NewVerifier creates a Verifier backed by provider.
func NewVerifier(provider Provider) *Verifier {
	return &Verifier{provider: provider}
}

// Verify returns the token's user or ErrUnauthorized. Transport failures,
// expired and malformed tokens all collapse into ErrUnauthorized.
func (v *Verifier) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	user, err := v.provider.GetUser(ctx, token)
	if err != nil {
		logger.Named("identity").Debugw("token rejected", "error", err)
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, err)
	}
	if user == nil || user.ID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}
