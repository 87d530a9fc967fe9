package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"budgettracker/internal/handlers"
	"budgettracker/internal/identity"
	"budgettracker/internal/logger"
	"budgettracker/internal/middleware"
	"budgettracker/internal/services"
	"budgettracker/internal/testutil"
	"budgettracker/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Provider *identity.LocalProvider
}

var testCookies = middleware.CookieOptions{MaxAge: time.Hour, SameSite: http.SameSiteLaxMode}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite and the built-in identity provider.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	provider := identity.NewLocalProvider(db, identity.LocalOptions{
		Secret:  "integration-secret",
		SiteURL: "http://localhost:3000",
	})
	authenticator := middleware.NewAuthenticator(provider, testCookies)

	guard := services.NewOwnershipGuard(db)
	auditService := services.NewAuditService(db)
	h := &handlers.Handlers{
		Auth:        handlers.NewAuthHandler(provider, testCookies, "http://localhost:3000"),
		Budget:      handlers.NewBudgetHandler(services.NewBudgetService(db, guard), auditService),
		Category:    handlers.NewCategoryHandler(services.NewCategoryService(db, guard), auditService),
		Transaction: handlers.NewTransactionHandler(services.NewTransactionService(db, guard), auditService),
		Health:      handlers.NewHealthHandler(nil),
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.CORS([]string{"http://localhost:3000"}))
	router.Use(middleware.ErrorHandler())
	router.Use(authenticator.ProtectPages("/login", middleware.ProtectedPagePrefixes...))
	h.RegisterRoutes(router, authenticator)

	return &testApp{DB: db, Router: router, Provider: provider}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	return app.send(method, path, body, token)
}

// requestWithCookies makes a request carrying cookies instead of a header.
func (app *testApp) requestWithCookies(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return app.send(method, path, body, "", cookies...)
}

// send makes a request with an optional bearer token and cookies.
func (app *testApp) send(method, path, body, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// parseJSONArray parses a list response body.
func parseJSONArray(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var result []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON array: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// expectStatus fails the test when rec does not carry want.
func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// errorCode returns error.code from an error body.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := parseJSON(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// responseCookie returns the named Set-Cookie of a response.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// session is what a signed-in test user carries.
type session struct {
	UserID  string
	Token   string
	Cookies []*http.Cookie
}

// signUp registers, confirms and signs in a user.
func (app *testApp) signUp(t *testing.T, email string) session {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":"password123","full_name":"Test User"}`, email)
	rec := app.request(http.MethodPost, "/api/register", body, "")
	expectStatus(t, rec, http.StatusCreated)

	if err := app.Provider.ConfirmEmail(context.Background(), email); err != nil {
		t.Fatalf("confirm email: %v", err)
	}
	return app.login(t, email, "password123")
}

// login signs in and returns the session from the response.
func (app *testApp) login(t *testing.T, email, password string) session {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request(http.MethodPost, "/api/login", body, "")
	expectStatus(t, rec, http.StatusOK)

	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	sess := result["session"].(map[string]interface{})
	return session{
		UserID:  user["id"].(string),
		Token:   sess["access_token"].(string),
		Cookies: []*http.Cookie{responseCookie(rec, middleware.AccessTokenCookie), responseCookie(rec, middleware.RefreshTokenCookie)},
	}
}

// createBudget creates a monthly budget and returns its ID.
func (app *testApp) createBudget(t *testing.T, token, name string) string {
	t.Helper()
	rec := app.request(http.MethodPost, "/api/budgets",
		fmt.Sprintf(`{"name":%q,"amount":500,"period":"monthly"}`, name), token)
	expectStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["id"].(string)
}

// createTransaction records a transaction and returns its ID.
func (app *testApp) createTransaction(t *testing.T, token, budgetID, body string) string {
	t.Helper()
	rec := app.request(http.MethodPost, "/api/budgets/"+budgetID+"/transactions", body, token)
	expectStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["id"].(string)
}
