package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BuzzLyutic/todo-api/internal/model"
)

// ProviderError is a non-2xx answer from GoTrue.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gotrue: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gotrue: %d: %s", e.Status, e.Message)
}

type GoTrue struct {
	baseURL    string
	apiKey     string
	jwtSecret  []byte
	httpClient *http.Client
}

type Option func(*GoTrue)

// WithJWTSecret enables local HS256 verification in GetUser.
func WithJWTSecret(secret string) Option {
	return func(g *GoTrue) {
		if secret != "" {
			g.jwtSecret = []byte(secret)
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *GoTrue) { g.httpClient = c }
}

// NewGoTrue builds a client for the auth API of the project at projectURL.
func NewGoTrue(projectURL, apiKey string, opts ...Option) *GoTrue {
	g := &GoTrue{
		baseURL:    strings.TrimRight(projectURL, "/") + "/auth/v1",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         gotrueUser `json:"user"`
}

type signUpResponse struct {
	gotrueUser
	User *gotrueUser `json:"user"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (g *GoTrue) SignUp(ctx context.Context, email, password string) (model.User, error) {
	var resp signUpResponse
	err := g.do(ctx, http.MethodPost, "/signup", "", credentials{email, password}, &resp)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && (pe.Code == "user_already_exists" || strings.Contains(strings.ToLower(pe.Message), "already registered")) {
			return model.User{}, ErrUserExists
		}
		if pe != nil && pe.Status < http.StatusInternalServerError {
			return model.User{}, fmt.Errorf("%w: %w", ErrSignUpRejected, pe)
		}
		return model.User{}, errors.Wrap(err, "sign up")
	}
	u := resp.gotrueUser
	if resp.User != nil {
		u = *resp.User
	}
	return newUser(u.ID, u.Email)
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (model.AuthResult, error) {
	var resp tokenResponse
	err := g.do(ctx, http.MethodPost, "/token?grant_type=password", "", credentials{email, password}, &resp)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && (pe.Status == http.StatusBadRequest || pe.Code == "invalid_credentials") {
			return model.AuthResult{}, ErrInvalidCredentials
		}
		return model.AuthResult{}, errors.Wrap(err, "sign in")
	}
	return resp.authResult()
}

func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	return errors.Wrap(g.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil), "sign out")
}

func (g *GoTrue) GetUser(ctx context.Context, accessToken string) (model.User, error) {
	if len(g.jwtSecret) > 0 {
		return VerifyToken(accessToken, g.jwtSecret)
	}

	var resp gotrueUser
	err := g.do(ctx, http.MethodGet, "/user", accessToken, nil, &resp)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status < http.StatusInternalServerError {
			if strings.Contains(strings.ToLower(pe.Message), "expired") {
				return model.User{}, ErrTokenExpired
			}
			return model.User{}, ErrInvalidToken
		}
		return model.User{}, errors.Wrap(err, "get user")
	}
	return newUser(resp.ID, resp.Email)
}

func (g *GoTrue) Refresh(ctx context.Context, refreshToken string) (model.AuthResult, error) {
	var resp tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := g.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &resp); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status < http.StatusInternalServerError {
			return model.AuthResult{}, ErrInvalidToken
		}
		return model.AuthResult{}, errors.Wrap(err, "refresh session")
	}
	return resp.authResult()
}

func (g *GoTrue) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	body := map[string]string{"email": email}
	return errors.Wrap(g.do(ctx, http.MethodPost, path, "", body, nil), "request password reset")
}

func (g *GoTrue) UpdatePassword(ctx context.Context, accessToken, password string) error {
	body := map[string]string{"password": password}
	err := g.do(ctx, http.MethodPut, "/user", accessToken, body, nil)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status == http.StatusUnauthorized {
			return ErrInvalidToken
		}
	}
	return errors.Wrap(err, "update password")
}

func (r tokenResponse) authResult() (model.AuthResult, error) {
	user, err := newUser(r.User.ID, r.User.Email)
	if err != nil {
		return model.AuthResult{}, err
	}
	expiresAt := r.ExpiresAt
	if expiresAt == 0 && r.ExpiresIn > 0 {
		expiresAt = time.Now().Unix() + r.ExpiresIn
	}
	return model.AuthResult{
		User: user,
		Session: model.Session{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			ExpiresAt:    expiresAt,
		},
	}, nil
}

func (g *GoTrue) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.WithStack(err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer == "" {
		bearer = g.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		return &ProviderError{Status: resp.StatusCode, Code: er.code(), Message: er.message()}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.WithStack(json.Unmarshal(raw, out))
}

func (e errorResponse) message() string {
	for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if m != "" {
			return m
		}
	}
	return "unknown error"
}

func (e errorResponse) code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	return e.Error
}
