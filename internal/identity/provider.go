// Package identity adapts the hosted auth service (Supabase GoTrue) that owns users, sessions and password resets.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BuzzLyutic/todo-api/internal/model"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUserExists         = errors.New("user already registered")
	// ErrSignUpRejected оборачивает *ProviderError с причиной отказа (слабый пароль, неверный email).
	ErrSignUpRejected     = errors.New("sign up rejected")
)

// Provider is everything the server needs from the identity service.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (model.User, error)
	SignIn(ctx context.Context, email, password string) (model.AuthResult, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (model.User, error)
	Refresh(ctx context.Context, refreshToken string) (model.AuthResult, error)
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
}

// Claims is the subset of the provider's access-token claims we read.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var jwtShape = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// LooksLikeJWT reports whether token has the three-segment shape of a signed JWT.
func LooksLikeJWT(token string) bool {
	return jwtShape.MatchString(token)
}

// ParseUnverified decodes claims without checking the signature or expiry.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyToken checks an HS256 token against secret and returns the user it was issued to.
func VerifyToken(token string, secret []byte) (model.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.User{}, ErrTokenExpired
		}
		return model.User{}, ErrInvalidToken
	}
	return userFromClaims(claims)
}

// SessionFromToken rebuilds a session description from the tokens a caller presented.
func SessionFromToken(accessToken, refreshToken string) (model.Session, error) {
	claims, err := ParseUnverified(accessToken)
	if err != nil {
		return model.Session{}, err
	}
	s := model.Session{AccessToken: accessToken, RefreshToken: refreshToken}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return s, nil
}

func userFromClaims(c *Claims) (model.User, error) {
	return newUser(c.Subject, c.Email)
}

func newUser(id, email string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, ErrInvalidToken
	}
	return model.User{ID: id, Email: email}, nil
}
