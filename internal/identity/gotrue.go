package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "budgettracker/internal/errors"
)

// GoTrueProvider talks to a hosted GoTrue (Supabase Auth) instance over its REST API.
type GoTrueProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGoTrueProvider creates a GoTrue client. baseURL is the project URL; the
// /auth/v1 prefix is appended per request.
func NewGoTrueProvider(baseURL, apiKey string, httpClient *http.Client) *GoTrueProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoTrueProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type gotrueUser struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	EmailConfirmedAt *string                `json:"email_confirmed_at"`
	UserMetadata     map[string]interface{} `json:"user_metadata"`
}

func (u *gotrueUser) toUser() *User {
	fullName, _ := u.UserMetadata["full_name"].(string)
	return &User{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       fullName,
		EmailConfirmed: u.EmailConfirmedAt != nil && *u.EmailConfirmedAt != "",
	}
}

type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *gotrueUser `json:"user"`
}

func (s *gotrueSession) toSession() *Session {
	session := &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
	}
	if s.User != nil {
		session.User = s.User.toUser()
	}
	return session
}

// SignUp registers an identity. With email confirmation enabled GoTrue returns
// the bare user; with auto-confirm it returns a session wrapping the user.
func (p *GoTrueProvider) SignUp(ctx context.Context, email, password, fullName string) (*User, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	var resp struct {
		gotrueUser
		User *gotrueUser `json:"user"`
	}
	if err := p.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.User != nil {
		return resp.User.toUser(), nil
	}
	return resp.gotrueUser.toUser(), nil
}

// SignIn uses the password grant.
func (p *GoTrueProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp gotrueSession
	if err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// Refresh uses the refresh_token grant.
func (p *GoTrueProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp gotrueSession
	if err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// GetUser asks GoTrue who the access token belongs to.
func (p *GoTrueProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var resp gotrueUser
	if err := p.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toUser(), nil
}

// ExchangeCode uses the pkce grant.
func (p *GoTrueProvider) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	var resp gotrueSession
	if err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=pkce", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (p *GoTrueProvider) do(ctx context.Context, method, path, bearer string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("marshaling request: %w", err))
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("apikey", p.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("identity service unreachable: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeGoTrueError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Internal(fmt.Errorf("decoding identity response: %w", err))
	}
	return nil
}

// decodeGoTrueError maps a GoTrue error body onto the application error taxonomy.
func decodeGoTrueError(resp *http.Response) error {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	msg := firstNonEmpty(body.Msg, body.ErrorDescription, body.Message, body.Error)
	if msg == "" {
		msg = fmt.Sprintf("identity service returned status %d", resp.StatusCode)
	}
	lower := strings.ToLower(msg)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || strings.Contains(lower, "rate limit"):
		return apperrors.ErrRateLimited
	case body.ErrorCode == "user_already_exists" || strings.Contains(lower, "already registered"):
		return apperrors.ErrDuplicateEmail
	case body.ErrorCode == "email_not_confirmed" || strings.Contains(lower, "email not confirmed"):
		return apperrors.ErrEmailNotConfirmed
	case body.ErrorCode == "invalid_credentials" || strings.Contains(lower, "invalid login credentials"):
		return apperrors.ErrInvalidCredentials
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.WithMessage(apperrors.ErrUnauthorized, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return apperrors.Internal(errors.New(msg))
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, msg)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
