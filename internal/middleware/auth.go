package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/identity"
	"budgettracker/internal/logger"
)

// Context keys set by Authorize.
const (
	userIDKey = "userID"
	emailKey  = "email"
	userKey   = "user"
)

// ErrNoToken is returned when a request carries no usable credential.
var ErrNoToken = apperrors.WithMessage(apperrors.ErrUnauthorized, "Authentication required")

// TokenSource records where a resolved token came from.
type TokenSource int

const (
	SourceNone TokenSource = iota
	SourceHeader
	SourceAccessCookie
	SourceRefresh
)

// Result is the outcome of authenticating a request: either Authorized or Unauthorized.
type Result interface {
	isResult()
}

// Authorized carries the verified identity.
type Authorized struct {
	User *identity.User
}

// Unauthorized carries the reason authentication failed. The reason is for
// logs only and is never sent to the client.
type Unauthorized struct {
	Reason error
}

func (Authorized) isResult()   {}
func (Unauthorized) isResult() {}

// Authenticator resolves and verifies credentials for protected routes.
type Authenticator struct {
	provider identity.Provider
	verifier *identity.Verifier
	cookies  CookieOptions
}

// NewAuthenticator creates an Authenticator backed by provider.
func NewAuthenticator(provider identity.Provider, cookies CookieOptions) *Authenticator {
	return &Authenticator{
		provider: provider,
		verifier: identity.NewVerifier(provider),
		cookies:  cookies,
	}
}

// ResolveToken extracts a credential. A present Authorization header is
// final. Otherwise the access cookie is used, and when it is missing the
// refresh cookie is exchanged for a new pair, which is written back as cookies.
func (a *Authenticator) ResolveToken(c *gin.Context) (string, TokenSource, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", SourceNone, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format")
		}
		return token, SourceHeader, nil
	}

	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, SourceAccessCookie, nil
	}

	token, err := a.refresh(c)
	if err != nil {
		return "", SourceNone, err
	}
	return token, SourceRefresh, nil
}

// Authenticate resolves and verifies the request's credential. An access
// cookie the identity service rejects gets one refresh attempt.
func (a *Authenticator) Authenticate(c *gin.Context) Result {
	token, source, err := a.ResolveToken(c)
	if err != nil {
		return Unauthorized{Reason: err}
	}

	user, err := a.verifier.Verify(c.Request.Context(), token)
	if err == nil {
		return Authorized{User: user}
	}
	if source != SourceAccessCookie {
		return Unauthorized{Reason: err}
	}

	token, err = a.refresh(c)
	if err != nil {
		return Unauthorized{Reason: err}
	}
	user, err = a.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		return Unauthorized{Reason: err}
	}
	return Authorized{User: user}
}

// refresh exchanges the refresh cookie for a new session and rotates both
// cookies. Cookies the identity service rejected are cleared; they are kept
// when the service was unavailable or rate limited.
func (a *Authenticator) refresh(c *gin.Context) (string, error) {
	refreshToken, err := c.Cookie(RefreshTokenCookie)
	if err != nil || refreshToken == "" {
		return "", ErrNoToken
	}

	session, err := a.provider.Refresh(c.Request.Context(), refreshToken)
	if err != nil || session == nil || session.AccessToken == "" {
		logger.Named("auth").Debugw("session refresh failed",
			"refresh_token", logger.Fingerprint(refreshToken),
			"error", err,
		)
		if !isTransient(err) {
			ClearSessionCookies(c, a.cookies)
		}
		return "", ErrNoToken
	}

	SetSessionCookies(c, session, a.cookies)
	return session.AccessToken, nil
}

// Authorize rejects unauthenticated requests with 401 and stores the verified
// user in the Gin context for handlers.
func (a *Authenticator) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch res := a.Authenticate(c).(type) {
		case Authorized:
			setUser(c, res.User)
			c.Next()
		case Unauthorized:
			logger.Named("auth").Debugw("request rejected",
				"path", c.Request.URL.Path,
				"reason", res.Reason,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(apperrors.ErrUnauthorized))
		}
	}
}

func isTransient(err error) bool {
	return errors.Is(err, apperrors.ErrInternalServer) || errors.Is(err, apperrors.ErrRateLimited)
}

func setUser(c *gin.Context, user *identity.User) {
	c.Set(userIDKey, user.ID)
	c.Set(emailKey, user.Email)
	c.Set(userKey, user)
}

// FromContext returns the user stored by Authorize.
func FromContext(c *gin.Context) (*identity.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*identity.User)
	return user, ok
}
