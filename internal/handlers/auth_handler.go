package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/identity"
	"budgettracker/internal/middleware"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	provider identity.Provider
	cookies  middleware.CookieOptions
	siteURL  string
}

// NewAuthHandler creates a new AuthHandler. siteURL is where logout and the
// email callback send the browser.
func NewAuthHandler(provider identity.Provider, cookies middleware.CookieOptions, siteURL string) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		cookies:  cookies,
		siteURL:  strings.TrimRight(siteURL, "/"),
	}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	FullName string `json:"full_name" binding:"omitempty,max=200"`
	// FullNameAlt is the camelCase spelling older web clients send.
	FullNameAlt string `json:"fullName" binding:"omitempty,max=200"`
}

// Name returns the full name under either spelling.
func (r RegisterRequest) Name() string {
	if name := strings.TrimSpace(r.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(r.FullNameAlt)
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// RegisterResponse is returned once an identity is created.
type RegisterResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	User    *identity.User `json:"user"`
}

// LoginResponse carries the signed-in user and session metadata. The same
// tokens are also set as HTTP-only cookies.
type LoginResponse struct {
	Success bool              `json:"success"`
	User    *identity.User    `json:"user"`
	Session *identity.Session `json:"session"`
}

// Register handles user registration
// @Summary     Register a new user
// @Description Create an identity. The email must be confirmed before login succeeds.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} RegisterResponse "User registered"
// @Failure     400 {object} ErrorResponse "Invalid input or email already registered"
// @Failure     429 {object} ErrorResponse "Rate limited"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidBody(err))
		return
	}

	fullName := req.Name()
	if fullName == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Missing required fields: email, password, full_name"))
		return
	}

	user, err := h.provider.SignUp(c.Request.Context(), req.Email, req.Password, fullName)
	if err != nil {
		respondWithError(c, err)
		return
	}

	requestLogger(c).Infow("user registered", "new_user_id", user.ID)
	c.JSON(http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "User created. Check your email to confirm the account",
		User:    user,
	})
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate with email and password. Sets the session cookies.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} LoginResponse "User authenticated"
// @Failure     400 {object} ErrorResponse "Invalid credentials or email not confirmed"
// @Failure     429 {object} ErrorResponse "Rate limited"
// @Router      /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidBody(err))
		return
	}

	session, err := h.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if session == nil || session.User == nil || session.AccessToken == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidCredentials, "Could not obtain user or session"))
		return
	}
	if !session.User.EmailConfirmed {
		respondWithError(c, apperrors.ErrEmailNotConfirmed)
		return
	}

	middleware.SetSessionCookies(c, session, h.cookies)
	c.JSON(http.StatusOK, LoginResponse{Success: true, User: session.User, Session: session})
}

// Logout clears the session cookies. Browser navigations (GET) are sent back
// to the site; API calls (POST) get a JSON body.
// @Summary     Logout
// @Description Clear both session cookies
// @Tags        auth
// @Produce     json
// @Success     200 {object} SuccessResponse "Logged out"
// @Success     302 "Redirect to the site"
// @Router      /logout [post]
// @Router      /logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSessionCookies(c, h.cookies)

	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, h.siteURL+"/")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Logged out"})
}

// Callback exchanges the code from a confirmation email for a session,
// sets the cookies and redirects home. Failures redirect to the login page.
// @Summary     Auth callback
// @Description Exchange an authorization code for a session
// @Tags        auth
// @Param       code          query string true  "Authorization code"
// @Param       code_verifier query string false "PKCE code verifier"
// @Success     302 "Redirect home, or to /login?error= on failure"
// @Router      /auth/callback [get]
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		h.redirectToLogin(c, "missing_code")
		return
	}

	session, err := h.provider.ExchangeCode(c.Request.Context(), code, c.Query("code_verifier"))
	if err != nil {
		requestLogger(c).Infow("code exchange failed", "error", err)
		h.redirectToLogin(c, callbackFailureReason(err))
		return
	}

	middleware.SetSessionCookies(c, session, h.cookies)
	c.Redirect(http.StatusFound, h.siteURL+"/")
}

// callbackFailureReason maps an exchange failure to the reason shown on the
// login page. Provider messages stay in the log.
func callbackFailureReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, apperrors.ErrRateLimited):
		return "rate_limited"
	default:
		return "exchange_failed"
	}
}

func (h *AuthHandler) redirectToLogin(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, h.siteURL+"/login?error="+url.QueryEscape(reason))
}

// Session returns the user the request authenticated as.
// @Summary     Current session
// @Description Return the authenticated user
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} identity.User "Current user"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	user, ok := middleware.FromContext(c)
	if !ok {
		respondWithError(c, apperrors.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
