package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BuzzLyutic/todo-api/internal/auth"
	"github.com/BuzzLyutic/todo-api/internal/model"
	"github.com/BuzzLyutic/todo-api/pkg/respond"
)

// ErrSessionExpired is returned before any protected call when no usable session is cached.
var ErrSessionExpired = errors.New("Session expired")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status        int
	Message       string
	Code          string
	RequiresLogin bool
}

func (e *APIError) Error() string {
	return e.Message
}

// TokenSource supplies the session for protected calls and receives tokens the server renewed.
type TokenSource interface {
	Session() (model.Session, bool)
	UpdateTokens(accessToken, refreshToken string) error
}

type API struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewAPI creates a client for the server at baseURL (scheme and host, no /api suffix).
func NewAPI(baseURL string, tokens TokenSource) *API {
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
	}
}

func (a *API) Register(ctx context.Context, email, password string) (model.AuthResult, error) {
	var res model.AuthResult
	err := a.do(ctx, http.MethodPost, "/api/auth/register", false, credentials(email, password), &res)
	return res, err
}

func (a *API) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	var res model.AuthResult
	err := a.do(ctx, http.MethodPost, "/api/auth/login", false, credentials(email, password), &res)
	return res, err
}

func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", true, nil, nil)
}

func (a *API) ForgotPassword(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPost, "/api/auth/forgot-password", false, map[string]string{"email": email}, nil)
}

func (a *API) ResetPassword(ctx context.Context, password string) error {
	return a.do(ctx, http.MethodPost, "/api/auth/reset-password", true, map[string]string{"password": password}, nil)
}

func (a *API) CurrentUser(ctx context.Context) (model.User, error) {
	var res struct {
		User model.User `json:"user"`
	}
	err := a.do(ctx, http.MethodGet, "/api/user", true, nil, &res)
	return res.User, err
}

func (a *API) ListTasks(ctx context.Context) ([]model.Task, error) {
	var res struct {
		Data []model.Task `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/todos", true, nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (a *API) CreateTask(ctx context.Context, text string) (model.Task, error) {
	var task model.Task
	err := a.do(ctx, http.MethodPost, "/api/todos", true, map[string]string{"text": text}, &task)
	return task, err
}

func (a *API) GetTask(ctx context.Context, id int64) (model.Task, error) {
	var task model.Task
	err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/todos/%d", id), true, nil, &task)
	return task, err
}

func (a *API) UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	var task model.Task
	err := a.do(ctx, http.MethodPut, fmt.Sprintf("/api/todos/%d", id), true, patch, &task)
	return task, err
}

func (a *API) DeleteTask(ctx context.Context, id int64) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/api/todos/%d", id), true, nil, nil)
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func (a *API) do(ctx context.Context, method, path string, protected bool, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if protected {
		session, ok := a.tokens.Session()
		if !ok {
			return ErrSessionExpired
		}
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
		if session.RefreshToken != "" {
			req.Header.Set(auth.HeaderRefreshToken, session.RefreshToken)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if renewed := resp.Header.Get(auth.HeaderNewToken); renewed != "" && a.tokens != nil {
		if err := a.tokens.UpdateTokens(renewed, resp.Header.Get(auth.HeaderNewRefreshToken)); err != nil {
			return err
		}
	}

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body respond.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
		apiErr.Code = body.Code
		apiErr.RequiresLogin = body.RequiresLogin
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
