package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/apperr"
	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/model"
)

// MockProvider - мок провайдера идентификации
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) SignUp(ctx context.Context, email, password string) (model.User, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockProvider) SignIn(ctx context.Context, email, password string) (model.AuthResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.AuthResult), args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *MockProvider) GetUser(ctx context.Context, accessToken string) (model.User, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (model.AuthResult, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.AuthResult), args.Error(1)
}

func (m *MockProvider) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	return m.Called(ctx, email, redirectTo).Error(0)
}

func (m *MockProvider) UpdatePassword(ctx context.Context, accessToken, password string) error {
	return m.Called(ctx, accessToken, password).Error(0)
}

const (
	oldToken = "aaa.bbb.ccc"
	newToken = "ddd.eee.fff"
)

var ana = model.User{ID: "6f1b7a52-1c55-4c1e-9d0e-3f4a2b8c9d10", Email: "ana@example.com"}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		refresh     string
		setupMock   func(*MockProvider)
		wantOutcome Outcome
		wantErr     *apperr.Error
		wantToken   string
	}{
		{
			name:        "missing header",
			header:      "",
			setupMock:   func(m *MockProvider) {},
			wantOutcome: Rejected,
			wantErr:     ErrMissingToken,
		},
		{
			name:        "not a bearer header",
			header:      "Basic abc",
			setupMock:   func(m *MockProvider) {},
			wantOutcome: Rejected,
			wantErr:     ErrMissingToken,
		},
		{
			name:        "malformed token",
			header:      "Bearer not-a-jwt",
			setupMock:   func(m *MockProvider) {},
			wantOutcome: Rejected,
			wantErr:     ErrInvalidToken,
		},
		{
			name:   "valid token",
			header: "Bearer " + oldToken,
			setupMock: func(m *MockProvider) {
				m.On("GetUser", mock.Anything, oldToken).Return(ana, nil)
			},
			wantOutcome: Authenticated,
			wantToken:   oldToken,
		},
		{
			name:   "invalid token",
			header: "Bearer " + oldToken,
			setupMock: func(m *MockProvider) {
				m.On("GetUser", mock.Anything, oldToken).Return(model.User{}, identity.ErrInvalidToken)
			},
			wantOutcome: Rejected,
			wantErr:     ErrInvalidToken,
		},
		{
			name:   "provider failure is reported as invalid token",
			header: "Bearer " + oldToken,
			setupMock: func(m *MockProvider) {
				m.On("GetUser", mock.Anything, oldToken).Return(model.User{}, errors.New("connection refused"))
			},
			wantOutcome: Rejected,
			wantErr:     ErrInvalidToken,
		},
		{
			name:    "expired token refreshed",
			header:  "Bearer " + oldToken,
			refresh: "refresh-1",
			setupMock: func(m *MockProvider) {
				m.On("GetUser", mock.Anything, oldToken).Return(model.User{}, identity.ErrTokenExpired)
				m.On("Refresh", mock.Anything, "refresh-1").Return(model.AuthResult{
					User:    ana,
					Session: model.Session{AccessToken: newToken, RefreshToken: "refresh-2"},
				}, nil).Once()
			},
			wantOutcome: Refreshed,
			wantToken:   newToken,
		},
		{
			name:    "expired token and refresh fails",
			header:  "Bearer " + oldToken,
			refresh: "refresh-1",
			setupMock: func(m *MockProvider) {
				m.On("GetUser", mock.Anything, oldToken).Return(model.User{}, identity.ErrTokenExpired)
				m.On("Refresh", mock.Anything, "refresh-1").Return(model.AuthResult{}, identity.ErrInvalidToken).Once()
			},
			wantOutcome: Rejected,
			wantErr:     ErrSessionExpired,
		},
		{
			name:   "expired token without refresh token",
			header: "Bearer " + oldToken,
			setupMock: func(m *MockProvider) {
				m.On("GetUser", mock.Anything, oldToken).Return(model.User{}, identity.ErrTokenExpired)
			},
			wantOutcome: Rejected,
			wantErr:     ErrSessionExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(MockProvider)
			tt.setupMock(provider)

			a := NewAuthenticator(provider, zap.NewNop())
			res := a.Authenticate(context.Background(), tt.header, tt.refresh)

			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantErr, res.Err)
			if tt.wantToken != "" {
				assert.Equal(t, tt.wantToken, res.Identity.AccessToken)
				assert.Equal(t, ana, res.Identity.User)
			}
			provider.AssertExpectations(t)
		})
	}
}

func writeTestError(w http.ResponseWriter, r *http.Request, err error) {
	e, _ := apperr.As(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(err))
	json.NewEncoder(w).Encode(map[string]any{"message": e.Message, "code": e.Code, "requiresLogin": e.RequiresLogin})
}

func TestMiddleware(t *testing.T) {
	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("refreshed request continues with new token header", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GetUser", mock.Anything, oldToken).Return(model.User{}, identity.ErrTokenExpired)
		provider.On("Refresh", mock.Anything, "refresh-1").Return(model.AuthResult{
			User:    ana,
			Session: model.Session{AccessToken: newToken, RefreshToken: "refresh-2"},
		}, nil).Once()

		h := NewAuthenticator(provider, zap.NewNop()).Middleware(writeTestError)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
		req.Header.Set("Authorization", "Bearer "+oldToken)
		req.Header.Set(HeaderRefreshToken, "refresh-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, newToken, w.Header().Get(HeaderNewToken))
		assert.Equal(t, "refresh-2", w.Header().Get(HeaderNewRefreshToken))
		assert.Equal(t, newToken, seen.Scope().Token)
		assert.Equal(t, ana.ID, seen.Scope().OwnerID)
		provider.AssertExpectations(t)
	})

	t.Run("session expired is distinguished", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GetUser", mock.Anything, oldToken).Return(model.User{}, identity.ErrTokenExpired)
		provider.On("Refresh", mock.Anything, "refresh-1").Return(model.AuthResult{}, identity.ErrInvalidToken)

		h := NewAuthenticator(provider, zap.NewNop()).Middleware(writeTestError)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
		req.Header.Set("Authorization", "Bearer "+oldToken)
		req.Header.Set(HeaderRefreshToken, "refresh-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Header().Get(HeaderNewToken))

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, CodeTokenExpired, body["code"])
		assert.Equal(t, true, body["requiresLogin"])
	})

	t.Run("plain authentication sets no header", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GetUser", mock.Anything, oldToken).Return(ana, nil)

		h := NewAuthenticator(provider, zap.NewNop()).Middleware(writeTestError)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
		req.Header.Set("Authorization", "Bearer "+oldToken)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get(HeaderNewToken))
		assert.Equal(t, oldToken, seen.AccessToken)
	})
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer  abc ")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)

	_, ok = BearerToken("bearer abc")
	assert.False(t, ok)
}
