// Package auth authenticates API requests against the identity provider.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/apperr"
	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/model"
)

const (
	HeaderNewToken        = "X-New-Token"
	HeaderNewRefreshToken = "X-New-Refresh-Token"
	HeaderRefreshToken    = "X-Refresh-Token"

	CodeTokenExpired = "TOKEN_EXPIRED"
)

var (
	ErrMissingToken   = &apperr.Error{Kind: apperr.ErrUnauthorized, Message: "Unauthorized: No valid token provided"}
	ErrInvalidToken   = &apperr.Error{Kind: apperr.ErrUnauthorized, Message: "Unauthorized: Invalid token"}
	ErrSessionExpired = &apperr.Error{
		Kind:          apperr.ErrUnauthorized,
		Message:       "Your session has expired. Please log in again to continue.",
		Code:          CodeTokenExpired,
		RequiresLogin: true,
	}
)

type Outcome int

const (
	Rejected Outcome = iota
	Authenticated
	Refreshed
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Refreshed:
		return "refreshed"
	default:
		return "rejected"
	}
}

// Identity is what a protected handler learns about its caller.
type Identity struct {
	User         model.User
	AccessToken  string
	RefreshToken string
}

func (i Identity) Scope() model.Scope {
	return model.Scope{OwnerID: i.User.ID, Token: i.AccessToken}
}

// Result of authenticating one request. Session is set only for Refreshed.
type Result struct {
	Outcome  Outcome
	Identity Identity
	Session  *model.Session
	Err      *apperr.Error
}

type Authenticator struct {
	provider identity.Provider
	logger   *zap.Logger
}

func NewAuthenticator(provider identity.Provider, logger *zap.Logger) *Authenticator {
	return &Authenticator{provider: provider, logger: logger}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// Authenticate resolves the caller. An expired token is refreshed at most once.
func (a *Authenticator) Authenticate(ctx context.Context, authorization, refreshToken string) Result {
	token, ok := BearerToken(authorization)
	if !ok {
		return Result{Outcome: Rejected, Err: ErrMissingToken}
	}
	if !identity.LooksLikeJWT(token) {
		return Result{Outcome: Rejected, Err: ErrInvalidToken}
	}

	user, err := a.provider.GetUser(ctx, token)
	switch {
	case err == nil:
		return Result{
			Outcome:  Authenticated,
			Identity: Identity{User: user, AccessToken: token, RefreshToken: refreshToken},
		}
	case errors.Is(err, identity.ErrTokenExpired):
		return a.refresh(ctx, refreshToken)
	default:
		if !errors.Is(err, identity.ErrInvalidToken) {
			a.logger.Warn("token resolution failed", zap.Error(err))
		}
		return Result{Outcome: Rejected, Err: ErrInvalidToken}
	}
}

func (a *Authenticator) refresh(ctx context.Context, refreshToken string) Result {
	if refreshToken == "" {
		return Result{Outcome: Rejected, Err: ErrSessionExpired}
	}

	res, err := a.provider.Refresh(ctx, refreshToken)
	if err != nil || res.Session.AccessToken == "" {
		if err != nil && !errors.Is(err, identity.ErrInvalidToken) {
			a.logger.Warn("silent token refresh failed", zap.Error(err))
		}
		return Result{Outcome: Rejected, Err: ErrSessionExpired}
	}

	session := res.Session
	return Result{
		Outcome: Refreshed,
		Identity: Identity{
			User:         res.User,
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
		},
		Session: &session,
	}
}

// ErrorWriter serializes a rejected authentication.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware rejects unauthenticated requests and attaches the Identity to the context.
func (a *Authenticator) Middleware(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := a.Authenticate(r.Context(), r.Header.Get("Authorization"), r.Header.Get(HeaderRefreshToken))

			switch res.Outcome {
			case Rejected:
				writeErr(w, r, res.Err)
				return
			case Refreshed:
				w.Header().Set(HeaderNewToken, res.Session.AccessToken)
				if res.Session.RefreshToken != "" {
					w.Header().Set(HeaderNewRefreshToken, res.Session.RefreshToken)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.Identity)))
		})
	}
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
