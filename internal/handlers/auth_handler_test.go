package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/identity"
	"budgettracker/internal/identity/mock"
	"budgettracker/internal/middleware"
)

var testCookieOptions = middleware.CookieOptions{MaxAge: 30 * 24 * time.Hour, SameSite: http.SameSiteLaxMode}

func setupAuthRouter(provider identity.Provider) *gin.Engine {
	r := gin.New()
	handler := NewAuthHandler(provider, testCookieOptions, "http://localhost:3000/")
	r.POST("/api/register", handler.Register)
	r.POST("/api/login", handler.Login)
	r.GET("/api/logout", handler.Logout)
	r.POST("/api/logout", handler.Logout)
	r.GET("/auth/callback", handler.Callback)
	auth := middleware.NewAuthenticator(provider, testCookieOptions)
	r.GET("/api/session", auth.Authorize(), handler.Session)
	return r
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

var testSession = &identity.Session{
	AccessToken:  "access-1",
	RefreshToken: "refresh-1",
	ExpiresIn:    3600,
	ExpiresAt:    1700003600,
	User:         &identity.User{ID: testUserID, Email: "alice@example.com", FullName: "Alice", EmailConfirmed: true},
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().
			SignUp(gomock.Any(), "alice@example.com", "secret1", "Alice").
			Return(&identity.User{ID: testUserID, Email: "alice@example.com", FullName: "Alice"}, nil)

		rec := doRequest(setupAuthRouter(provider), http.MethodPost, "/api/register",
			`{"email":"alice@example.com","password":"secret1","full_name":" Alice "}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["success"] != true {
			t.Errorf("expected success true, got %v", result["success"])
		}
		user := result["user"].(map[string]interface{})
		if user["id"] != testUserID || user["email"] != "alice@example.com" {
			t.Errorf("unexpected user: %v", user)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Error("registration must not start a session")
		}
	})

	t.Run("accepts camelCase fullName", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().
			SignUp(gomock.Any(), "alice@example.com", "secret1", "Alice").
			Return(&identity.User{ID: testUserID, Email: "alice@example.com", FullName: "Alice"}, nil)

		rec := doRequest(setupAuthRouter(provider), http.MethodPost, "/api/register",
			`{"email":"alice@example.com","password":"secret1","fullName":"Alice"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing full name", `{"email":"alice@example.com","password":"secret1"}`},
		{"blank full name", `{"email":"alice@example.com","password":"secret1","full_name":"  ","fullName":""}`},
		{"invalid email", `{"email":"not-an-email","password":"secret1","full_name":"A"}`},
		{"short password", `{"email":"alice@example.com","password":"123","full_name":"A"}`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			provider := mock.NewMockProvider(ctrl)

			rec := doRequest(setupAuthRouter(provider), http.MethodPost, "/api/register", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("maps identity failures", func(t *testing.T) {
		for _, appErr := range []*apperrors.AppError{apperrors.ErrDuplicateEmail, apperrors.ErrRateLimited} {
			ctrl := gomock.NewController(t)
			provider := mock.NewMockProvider(ctrl)
			provider.EXPECT().SignUp(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, appErr)

			rec := doRequest(setupAuthRouter(provider), http.MethodPost, "/api/register",
				`{"email":"alice@example.com","password":"secret1","full_name":"Alice"}`)

			if rec.Code != appErr.StatusCode {
				t.Errorf("%s: expected %d, got %d", appErr.Code, appErr.StatusCode, rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), appErr.Code)
		}
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("sets cookies and returns session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().SignIn(gomock.Any(), "alice@example.com", "secret1").Return(testSession, nil)

		rec := doRequest(setupAuthRouter(provider), http.MethodPost, "/api/login",
			`{"email":"alice@example.com","password":"secret1"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		session := result["session"].(map[string]interface{})
		if session["access_token"] != "access-1" || session["refresh_token"] != "refresh-1" {
			t.Errorf("unexpected session: %v", session)
		}
		if result["user"].(map[string]interface{})["full_name"] != "Alice" {
			t.Errorf("unexpected user: %v", result["user"])
		}

		cookies := cookiesByName(rec)
		access, refresh := cookies[middleware.AccessTokenCookie], cookies[middleware.RefreshTokenCookie]
		if access == nil || refresh == nil {
			t.Fatalf("expected both session cookies, got %v", cookies)
		}
		if access.Value != "access-1" || !access.HttpOnly || access.Path != "/" || access.MaxAge != 30*24*3600 {
			t.Errorf("unexpected access cookie: %+v", access)
		}
		if refresh.Value != "refresh-1" {
			t.Errorf("unexpected refresh cookie: %+v", refresh)
		}
	})

	t.Run("rejects unconfirmed email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		unconfirmed := *testSession
		unconfirmed.User = &identity.User{ID: testUserID, Email: "alice@example.com"}
		provider.EXPECT().SignIn(gomock.Any(), gomock.Any(), gomock.Any()).Return(&unconfirmed, nil)

		rec := doRequest(setupAuthRouter(provider), http.MethodPost, "/api/login",
			`{"email":"alice@example.com","password":"secret1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EMAIL_NOT_CONFIRMED")
		if len(rec.Result().Cookies()) != 0 {
			t.Error("no cookies may be set for an unconfirmed email")
		}
	})

	t.Run("returns 400 on bad credentials", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().SignIn(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperrors.ErrInvalidCredentials)

		rec := doRequest(setupAuthRouter(provider), http.MethodPost, "/api/login",
			`{"email":"alice@example.com","password":"wrong-password"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_CREDENTIALS")
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := setupAuthRouter(mock.NewMockProvider(ctrl))

	t.Run("GET redirects to site", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/api/logout", "")

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "http://localhost:3000/" {
			t.Errorf("unexpected Location %q", loc)
		}
		assertCleared(t, rec)
	})

	t.Run("POST returns JSON", func(t *testing.T) {
		rec := doRequest(r, http.MethodPost, "/api/logout", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["success"] != true {
			t.Error("expected success true")
		}
		assertCleared(t, rec)
	})
}

func assertCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	cookies := cookiesByName(rec)
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := cookies[name]
		if c == nil || c.Value != "" || c.MaxAge >= 0 {
			t.Errorf("expected %s to be cleared, got %+v", name, c)
		}
	}
}

func TestAuthHandler_Callback(t *testing.T) {
	t.Run("exchanges code and redirects home", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().ExchangeCode(gomock.Any(), "abc123", "").Return(testSession, nil)

		rec := doRequest(setupAuthRouter(provider), http.MethodGet, "/auth/callback?code=abc123", "")

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "http://localhost:3000/" {
			t.Errorf("unexpected Location %q", loc)
		}
		if cookiesByName(rec)[middleware.AccessTokenCookie].Value != "access-1" {
			t.Error("expected access cookie to be set")
		}
	})

	t.Run("invalid code redirects to login", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().ExchangeCode(gomock.Any(), "stale", gomock.Any()).Return(nil, apperrors.ErrInvalidCode)

		rec := doRequest(setupAuthRouter(provider), http.MethodGet, "/auth/callback?code=stale", "")

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "http://localhost:3000/login?error=invalid_code" {
			t.Errorf("unexpected Location %q", loc)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Error("no cookies may be set on failure")
		}
	})

	t.Run("provider failure detail stays out of the redirect", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().ExchangeCode(gomock.Any(), "abc123", gomock.Any()).
			Return(nil, apperrors.Internal(errors.New("dial tcp 10.0.0.5:9999: connection refused")))

		rec := doRequest(setupAuthRouter(provider), http.MethodGet, "/auth/callback?code=abc123", "")

		loc := rec.Header().Get("Location")
		if loc != "http://localhost:3000/login?error=exchange_failed" {
			t.Errorf("unexpected Location %q", loc)
		}
		if strings.Contains(loc, "10.0.0.5") {
			t.Errorf("redirect leaks provider detail: %q", loc)
		}
	})

	t.Run("missing code redirects to login", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		rec := doRequest(setupAuthRouter(mock.NewMockProvider(ctrl)), http.MethodGet, "/auth/callback", "")

		if loc := rec.Header().Get("Location"); loc != "http://localhost:3000/login?error=missing_code" {
			t.Errorf("unexpected Location %q", loc)
		}
	})
}

func TestAuthHandler_Session(t *testing.T) {
	t.Run("returns current user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock.NewMockProvider(ctrl)
		provider.EXPECT().GetUser(gomock.Any(), "access-1").Return(testSession.User, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/session", http.NoBody)
		req.Header.Set("Authorization", "Bearer access-1")
		rec := httptest.NewRecorder()
		setupAuthRouter(provider).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["email"] != "alice@example.com" {
			t.Errorf("unexpected user: %v", user)
		}
	})

	t.Run("returns 401 without credentials", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		rec := doRequest(setupAuthRouter(mock.NewMockProvider(ctrl)), http.MethodGet, "/api/session", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		assertErrorCode(t, result, "UNAUTHORIZED")
		if _, leaked := result["user"]; leaked {
			t.Error("401 body must not carry user data")
		}
	})
}
