package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "6f1b7a52-1c55-4c1e-9d0e-3f4a2b8c9d10"

func signToken(t *testing.T, secret string, sub string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Email: "ana@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func tokenBody(access string) map[string]any {
	return map[string]any{
		"access_token":  access,
		"refresh_token": "refresh-1",
		"expires_in":    3600,
		"expires_at":    1700000000,
		"user":          map[string]string{"id": testUserID, "email": "ana@example.com"},
	}
}

func TestGoTrue_SignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var creds credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret123" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
		writeJSON(w, http.StatusOK, tokenBody("access-1"))
	}))
	defer srv.Close()

	g := NewGoTrue(srv.URL+"/", "anon-key")

	t.Run("valid credentials", func(t *testing.T) {
		res, err := g.SignIn(context.Background(), "ana@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, testUserID, res.User.ID)
		assert.Equal(t, "access-1", res.Session.AccessToken)
		assert.Equal(t, "refresh-1", res.Session.RefreshToken)
		assert.Equal(t, int64(1700000000), res.Session.ExpiresAt)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := g.SignIn(context.Background(), "ana@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestGoTrue_SignUp(t *testing.T) {
	registered := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if len(creds.Password) < 6 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters."})
			return
		}
		if registered[creds.Email] {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
			return
		}
		registered[creds.Email] = true
		writeJSON(w, http.StatusOK, map[string]string{"id": testUserID, "email": creds.Email})
	}))
	defer srv.Close()

	g := NewGoTrue(srv.URL, "anon-key")

	user, err := g.SignUp(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, testUserID, user.ID)

	_, err = g.SignUp(context.Background(), "ana@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUserExists)
	assert.NotErrorIs(t, err, ErrSignUpRejected)

	// отказ провайдера по вводу не должен превращаться в ошибку сервера
	_, err = g.SignUp(context.Background(), "bia@example.com", "123")
	require.ErrorIs(t, err, ErrSignUpRejected)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnprocessableEntity, pe.Status)
	assert.Equal(t, "Password should be at least 6 characters.", pe.Message)
}

func TestGoTrue_SignUp_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"msg": "upstream down"})
	}))
	defer srv.Close()

	_, err := NewGoTrue(srv.URL, "anon-key").SignUp(context.Background(), "ana@example.com", "secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSignUpRejected)
}

func TestGoTrue_GetUser_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			writeJSON(w, http.StatusOK, map[string]string{"id": testUserID, "email": "ana@example.com"})
		case "Bearer expired":
			writeJSON(w, http.StatusForbidden, map[string]any{"code": 403, "error_code": "bad_jwt", "msg": "invalid JWT: unable to parse or verify signature, token has invalid claims: token is expired"})
		case "Bearer broken":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "database down"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		}
	}))
	defer srv.Close()

	g := NewGoTrue(srv.URL, "anon-key")
	ctx := context.Background()

	user, err := g.GetUser(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)

	_, err = g.GetUser(ctx, "expired")
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = g.GetUser(ctx, "forged")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = g.GetUser(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.Status)
}

func TestGoTrue_GetUser_LocalVerification(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	g := NewGoTrue(srv.URL, "anon-key", WithJWTSecret("jwt-secret"))
	ctx := context.Background()

	user, err := g.GetUser(ctx, signToken(t, "jwt-secret", testUserID, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, testUserID, user.ID)

	_, err = g.GetUser(ctx, signToken(t, "jwt-secret", testUserID, time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = g.GetUser(ctx, signToken(t, "other-secret", testUserID, time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.False(t, called, "local verification must not hit the network")
}

func TestGoTrue_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid Refresh Token: Refresh Token Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, tokenBody("access-2"))
	}))
	defer srv.Close()

	g := NewGoTrue(srv.URL, "anon-key")

	res, err := g.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", res.Session.AccessToken)

	_, err = g.Refresh(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGoTrue_PasswordReset(t *testing.T) {
	var gotRedirect, gotEmail, gotPassword string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/auth/v1/recover":
			gotRedirect = r.URL.Query().Get("redirect_to")
			gotEmail = body["email"]
			writeJSON(w, http.StatusOK, map[string]any{})
		case "/auth/v1/user":
			assert.Equal(t, http.MethodPut, r.Method)
			gotPassword = body["password"]
			writeJSON(w, http.StatusOK, map[string]string{"id": testUserID})
		}
	}))
	defer srv.Close()

	g := NewGoTrue(srv.URL, "anon-key")
	ctx := context.Background()

	require.NoError(t, g.RequestPasswordReset(ctx, "ana@example.com", "http://localhost:5173/reset-password"))
	assert.Equal(t, "ana@example.com", gotEmail)
	assert.Equal(t, "http://localhost:5173/reset-password", gotRedirect)

	require.NoError(t, g.UpdatePassword(ctx, "access-1", "new-secret"))
	assert.Equal(t, "new-secret", gotPassword)
}

func TestTokenHelpers(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, "s", testUserID, exp)

	assert.True(t, LooksLikeJWT(token))
	assert.False(t, LooksLikeJWT("not-a-token"))
	assert.False(t, LooksLikeJWT("a.b c"))
	assert.False(t, LooksLikeJWT("aaa.bbb"))
	assert.False(t, LooksLikeJWT("aaa.bbb."))
	assert.False(t, LooksLikeJWT("aaa.bbb.ccc.ddd"))
	assert.True(t, LooksLikeJWT("aaa.bbb.ccc"))

	s, err := SessionFromToken(token, "r")
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), s.ExpiresAt)
	assert.Equal(t, "r", s.RefreshToken)

	_, err = SessionFromToken("garbage", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyToken(signToken(t, "s", "not-a-uuid", exp), []byte("s"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
