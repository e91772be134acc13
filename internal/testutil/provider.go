package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/model"
)

// MinPasswordLength matches the hosted provider's default password policy.
const MinPasswordLength = 6

// FakeProvider is an in-memory identity.Provider that issues real HS256 tokens.
type FakeProvider struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	users    map[string]fakeUser // by email
	refresh  map[string]string   // refresh token -> user id

	ResetRequests []string
	SignedOut     []string
	Passwords     map[string]string // user id -> last password set via UpdatePassword
}

type fakeUser struct {
	model.User
	password string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		secret:    []byte("test-jwt-secret"),
		tokenTTL:  time.Hour,
		users:     make(map[string]fakeUser),
		refresh:   make(map[string]string),
		Passwords: make(map[string]string),
	}
}

// SetTokenTTL changes the lifetime of tokens issued from now on. A negative TTL issues expired tokens.
func (p *FakeProvider) SetTokenTTL(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenTTL = d
}

// RevokeRefreshTokens makes every outstanding refresh token unusable.
func (p *FakeProvider) RevokeRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh = make(map[string]string)
}

func (p *FakeProvider) SignUp(_ context.Context, email, password string) (model.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[email]; ok {
		return model.User{}, identity.ErrUserExists
	}
	if len(password) < MinPasswordLength {
		return model.User{}, fmt.Errorf("%w: %w", identity.ErrSignUpRejected, &identity.ProviderError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "weak_password",
			Message: "Password should be at least 6 characters.",
		})
	}
	u := fakeUser{User: model.User{ID: uuid.NewString(), Email: email}, password: password}
	p.users[email] = u
	return u.User, nil
}

func (p *FakeProvider) SignIn(_ context.Context, email, password string) (model.AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[email]
	if !ok || u.password != password {
		return model.AuthResult{}, identity.ErrInvalidCredentials
	}
	return p.issue(u.User)
}

func (p *FakeProvider) SignOut(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SignedOut = append(p.SignedOut, accessToken)
	return nil
}

func (p *FakeProvider) GetUser(_ context.Context, accessToken string) (model.User, error) {
	return identity.VerifyToken(accessToken, p.secret)
}

func (p *FakeProvider) Refresh(_ context.Context, refreshToken string) (model.AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.refresh[refreshToken]
	if !ok {
		return model.AuthResult{}, identity.ErrInvalidToken
	}
	delete(p.refresh, refreshToken)

	for _, u := range p.users {
		if u.ID == userID {
			return p.issue(u.User)
		}
	}
	return model.AuthResult{}, identity.ErrInvalidToken
}

func (p *FakeProvider) RequestPasswordReset(_ context.Context, email, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResetRequests = append(p.ResetRequests, email)
	return nil
}

func (p *FakeProvider) UpdatePassword(_ context.Context, accessToken, password string) error {
	user, err := identity.VerifyToken(accessToken, p.secret)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for email, u := range p.users {
		if u.ID == user.ID {
			u.password = password
			p.users[email] = u
		}
	}
	p.Passwords[user.ID] = password
	return nil
}

// IssueToken signs an access token for user with the given lifetime.
func (p *FakeProvider) IssueToken(user model.User, ttl time.Duration) string {
	now := time.Now()
	claims := identity.Claims{
		Email: user.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		panic(err)
	}
	return token
}

func (p *FakeProvider) issue(user model.User) (model.AuthResult, error) {
	access := p.IssueToken(user, p.tokenTTL)
	refresh := uuid.NewString()
	p.refresh[refresh] = user.ID

	return model.AuthResult{
		User: user,
		Session: model.Session{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().Add(p.tokenTTL).Unix(),
		},
	}, nil
}
