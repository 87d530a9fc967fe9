// Package client provides an HTTP client for the budget tracker API. It signs
// in with the API's session cookies, keeps them in a cookie jar and exposes
// the resulting sign-in state through a Session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/identity"
)

// Session cookie names set by the API.
const (
	accessCookie  = "sb-access-token"
	refreshCookie = "sb-refresh-token"
)

// ErrSignedOut is returned when an operation needs a session and none is left.
var ErrSignedOut = errors.New("client: signed out")

// APIError is a non-2xx response decoded from the API's error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Is matches application error sentinels by code, so callers can test
// errors.Is(err, apperrors.ErrBudgetNotFound).
func (e *APIError) Is(target error) bool {
	var appErr *apperrors.AppError
	if errors.As(target, &appErr) {
		return appErr.Code == e.Code
	}
	return false
}

// Client talks to the budget tracker API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    *Session
	store      TokenStore
	mirrored   Tokens
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses hc for requests. A cookie jar is added when hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.httpClient = &copied
	}
}

// WithTokenStore mirrors the session cookies into store.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		session:    NewSession(),
		store:      &MemoryStore{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Session returns the client's session state.
func (c *Client) Session() *Session {
	return c.session
}

// Register creates an account. The account must confirm its email before Login succeeds.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (*identity.User, error) {
	body := map[string]string{"email": email, "password": password, "full_name": fullName}
	var result struct {
		User *identity.User `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/register", body, &result); err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}
	return result.User, nil
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*identity.User, error) {
	body := map[string]string{"email": email, "password": password}
	var result struct {
		User *identity.User `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/login", body, &result); err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	c.session.signIn(result.User)
	return result.User, nil
}

// Logout ends the session. Local state is cleared even when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
	c.forget()
	if err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// Refresh asks the API who the session belongs to. When the access cookie
// has expired the API rotates the pair through the refresh cookie; when that
// fails too the session ends and ErrSignedOut is returned.
func (c *Client) Refresh(ctx context.Context) (*identity.User, error) {
	_, previous := c.session.Current()
	if err := c.session.beginRefresh(); err != nil {
		return nil, err
	}

	var result struct {
		User *identity.User `json:"user"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/session", nil, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, ErrSignedOut
		}
		// The API never answered for the session, so keep what we had.
		if previous != nil {
			c.session.signIn(previous)
		} else {
			c.session.signOut()
		}
		return nil, fmt.Errorf("refreshing session: %w", err)
	}
	c.session.signIn(result.User)
	return result.User, nil
}

// Restore seeds the cookie jar from the token store and refreshes.
func (c *Client) Restore(ctx context.Context) (*identity.User, error) {
	tokens, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, ErrSignedOut
	}
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{
		{Name: accessCookie, Value: tokens.AccessToken, Path: "/"},
		{Name: refreshCookie, Value: tokens.RefreshToken, Path: "/"},
	})
	c.mirrored = *tokens
	return c.Refresh(ctx)
}

// forget drops the local copy of the session.
func (c *Client) forget() {
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{
		{Name: accessCookie, Path: "/", MaxAge: -1},
		{Name: refreshCookie, Path: "/", MaxAge: -1},
	})
	c.mirrored = Tokens{}
	_ = c.store.Clear()
	c.session.signOut()
}

// mirror copies the jar's session cookies into the token store when they changed.
func (c *Client) mirror() error {
	var current Tokens
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		switch cookie.Name {
		case accessCookie:
			current.AccessToken = cookie.Value
		case refreshCookie:
			current.RefreshToken = cookie.Value
		}
	}
	if current.AccessToken == c.mirrored.AccessToken && current.RefreshToken == c.mirrored.RefreshToken {
		return nil
	}
	if current.AccessToken == "" && current.RefreshToken == "" {
		c.mirrored = Tokens{}
		return c.store.Clear()
	}
	current.SavedAt = time.Now().UTC()
	c.mirrored = current
	return c.store.Save(&current)
}

// do sends a JSON request and decodes a JSON response into out. A 401 ends
// the session.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.mirror(); err != nil {
		return nil, fmt.Errorf("saving tokens: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp)
		if resp.StatusCode == http.StatusUnauthorized {
			c.forget()
		}
		return nil, apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.Header, nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
