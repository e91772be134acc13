package client

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/BuzzLyutic/todo-api/internal/model"
)

// AuthState is what the UI knows about the signed-in user.
type AuthState struct {
	User            *model.User
	Session         *model.Session
	IsAuthenticated bool
	IsLoading       bool
	Error           string
	// ErrorCode is the server's machine-readable code for Error, if any.
	ErrorCode string
}

// AuthAPI is the part of the REST client the auth store calls.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (model.AuthResult, error)
	Register(ctx context.Context, email, password string) (model.AuthResult, error)
	Logout(ctx context.Context) error
}

func authStarted(s AuthState) AuthState {
	s.IsLoading = true
	s.Error, s.ErrorCode = "", ""
	return s
}

func authSucceeded(res model.AuthResult) func(AuthState) AuthState {
	return func(AuthState) AuthState {
		user, session := res.User, res.Session
		return AuthState{User: &user, Session: &session, IsAuthenticated: true}
	}
}

func authFailed(err error) func(AuthState) AuthState {
	return func(s AuthState) AuthState {
		s.IsLoading = false
		s.Error = errorMessage(err, "Authentication failed")
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			s.ErrorCode = apiErr.Code
		}
		return s
	}
}

func authReset(AuthState) AuthState {
	return AuthState{}
}

func authRestored(p PersistedAuth) func(AuthState) AuthState {
	return func(s AuthState) AuthState {
		s.User, s.Session = p.User, p.Session
		s.IsAuthenticated = p.IsAuthenticated && p.Session != nil
		return s
	}
}

func authErrorCleared(s AuthState) AuthState {
	s.Error, s.ErrorCode = "", ""
	return s
}

type AuthStore struct {
	api   AuthAPI
	cache *SessionCache
	state *observable[AuthState]
	now   func() time.Time
}

// NewAuthStore creates a store backed by cache. Tokens the API client renews through the cache flow into the state.
func NewAuthStore(api AuthAPI, cache *SessionCache) *AuthStore {
	s := &AuthStore{
		api:   api,
		cache: cache,
		state: newObservable(AuthState{}),
		now:   time.Now,
	}
	cache.OnChange(func(p PersistedAuth) {
		s.state.apply(authRestored(p))
	})
	return s
}

func (s *AuthStore) State() AuthState {
	return s.state.get()
}

func (s *AuthStore) Subscribe(fn func(AuthState)) (unsubscribe func()) {
	return s.state.subscribe(fn)
}

func (s *AuthStore) Login(ctx context.Context, email, password string) error {
	return s.signIn(func() (model.AuthResult, error) {
		return s.api.Login(ctx, email, password)
	})
}

func (s *AuthStore) Register(ctx context.Context, email, password string) error {
	return s.signIn(func() (model.AuthResult, error) {
		return s.api.Register(ctx, email, password)
	})
}

func (s *AuthStore) signIn(call func() (model.AuthResult, error)) error {
	s.state.apply(authStarted)

	res, err := call()
	if err != nil {
		s.state.apply(authFailed(err))
		return err
	}

	user, session := res.User, res.Session
	if err := s.cache.Save(PersistedAuth{User: &user, Session: &session, IsAuthenticated: true}); err != nil {
		s.state.apply(authFailed(err))
		return err
	}
	s.state.apply(authSucceeded(res))
	return nil
}

// Logout always ends in the initial state; the provider's error is still returned.
func (s *AuthStore) Logout(ctx context.Context) error {
	s.state.apply(authStarted)

	err := s.api.Logout(ctx)
	if cerr := s.cache.Clear(); cerr != nil && err == nil {
		err = cerr
	}
	s.state.apply(authReset)
	return err
}

// CheckAuth trusts a cached, unexpired session without asking the server. Safe to call repeatedly.
// A stale session that cannot be removed from disk is reported through State().Error.
func (s *AuthStore) CheckAuth() bool {
	p, err := s.cache.Load()
	if err != nil || p.Session == nil || Expired(*p.Session, s.now()) {
		s.state.apply(authReset)
		if p.Session != nil || err != nil {
			// не удалось стереть файл: иначе следующий запуск снова поднимет старую сессию
			if cerr := s.cache.Clear(); cerr != nil {
				s.state.apply(authFailed(cerr))
			}
		}
		return false
	}

	s.state.apply(func(st AuthState) AuthState {
		st = authRestored(p)(st)
		st.IsAuthenticated = true
		st.IsLoading = false
		return st
	})
	return true
}

func (s *AuthStore) ClearError() {
	s.state.apply(authErrorCleared)
}

// errorMessage turns err into the text shown to the user.
func errorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
