package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ProtectedPagePrefixes are the browser routes that require a session.
var ProtectedPagePrefixes = []string{"/dashboard", "/budgets"}

// ProtectPages redirects unauthenticated navigations under prefixes to
// loginPath, after the same refresh attempt API requests get.
func (a *Authenticator) ProtectPages(loginPath string, prefixes ...string) gin.HandlerFunc {
	if len(prefixes) == 0 {
		prefixes = ProtectedPagePrefixes
	}
	return func(c *gin.Context) {
		if !matchesPrefix(c.Request.URL.Path, prefixes) {
			c.Next()
			return
		}

		if res, ok := a.Authenticate(c).(Authorized); ok {
			setUser(c, res.User)
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, loginPath)
		c.Abort()
	}
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
