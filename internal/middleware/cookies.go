package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"budgettracker/internal/config"
	"budgettracker/internal/identity"
)

// Session cookie names.
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// CookieOptions holds the attributes applied to both session cookies.
type CookieOptions struct {
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// CookieOptionsFromConfig derives cookie attributes from the environment:
// Secure and SameSite=Strict in production, SameSite=Lax otherwise.
func CookieOptionsFromConfig(cfg *config.Config) CookieOptions {
	return CookieOptions{
		MaxAge:   cfg.CookieMaxAge,
		Secure:   cfg.IsProduction(),
		SameSite: cfg.CookieSameSite(),
	}
}

// SetSessionCookies writes the access/refresh pair. It must run before the
// response body is written.
func SetSessionCookies(c *gin.Context, session *identity.Session, opts CookieOptions) {
	maxAge := int(opts.MaxAge.Seconds())
	http.SetCookie(c.Writer, opts.cookie(AccessTokenCookie, session.AccessToken, maxAge))
	http.SetCookie(c.Writer, opts.cookie(RefreshTokenCookie, session.RefreshToken, maxAge))
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(c *gin.Context, opts CookieOptions) {
	http.SetCookie(c.Writer, opts.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(c.Writer, opts.cookie(RefreshTokenCookie, "", -1))
}

func (o CookieOptions) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}
