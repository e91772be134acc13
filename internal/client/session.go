package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/model"
)

// ExpiryMargin is how long before expires_at a session already counts as expired.
const ExpiryMargin = 5 * time.Minute

// Expired reports whether s should no longer be used at now.
func Expired(s model.Session, now time.Time) bool {
	if s.AccessToken == "" {
		return true
	}
	return !now.Before(s.ExpiresAtTime().Add(-ExpiryMargin))
}

// PersistedAuth is the part of the auth state that survives restarts.
type PersistedAuth struct {
	User            *model.User    `json:"user"`
	Session         *model.Session `json:"session"`
	IsAuthenticated bool           `json:"isAuthenticated"`
}

// SessionCache keeps PersistedAuth in a JSON file and is the token source of the API client.
type SessionCache struct {
	mu        sync.Mutex
	path      string
	now       func() time.Time
	listeners []func(PersistedAuth)
}

func NewSessionCache(path string) *SessionCache {
	return &SessionCache{path: path, now: time.Now}
}

// Load returns the persisted state. A missing file is an empty state.
func (c *SessionCache) Load() (PersistedAuth, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *SessionCache) Save(p PersistedAuth) error {
	c.mu.Lock()
	err := c.save(p)
	listeners := append([]func(PersistedAuth){}, c.listeners...)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(p)
	}
	return nil
}

func (c *SessionCache) Clear() error {
	return c.Save(PersistedAuth{})
}

// OnChange registers fn to be called after every successful Save.
func (c *SessionCache) OnChange(fn func(PersistedAuth)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Session returns the cached session if there is one that has not expired.
func (c *SessionCache) Session() (model.Session, bool) {
	p, err := c.Load()
	if err != nil || p.Session == nil || Expired(*p.Session, c.now()) {
		return model.Session{}, false
	}
	return *p.Session, true
}

// UpdateTokens adopts tokens renewed by the server. An empty refreshToken keeps the current one.
func (c *SessionCache) UpdateTokens(accessToken, refreshToken string) error {
	p, err := c.Load()
	if err != nil {
		return err
	}
	if refreshToken == "" && p.Session != nil {
		refreshToken = p.Session.RefreshToken
	}

	session, err := identity.SessionFromToken(accessToken, refreshToken)
	if err != nil {
		return errors.Wrap(err, "adopt renewed token")
	}
	p.Session = &session
	p.IsAuthenticated = true
	return c.Save(p)
}

func (c *SessionCache) load() (PersistedAuth, error) {
	var p PersistedAuth
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, errors.Wrap(err, "read session file")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return PersistedAuth{}, errors.Wrap(err, "decode session file")
	}
	return p, nil
}

func (c *SessionCache) save(p PersistedAuth) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}

	// пишем во временный файл и переименовываем, чтобы не оставить полузаписанный JSON
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "write session file")
	}
	return errors.Wrap(os.Rename(tmp, c.path), "replace session file")
}
