package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/apperr"
	"github.com/BuzzLyutic/todo-api/internal/auth"
	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/model"
	"github.com/BuzzLyutic/todo-api/pkg/respond"
)

var (
	ErrCredentialsRequired  = apperr.Validation("Email and password are required")
	ErrEmailRequired        = apperr.Validation("Email is required")
	ErrPasswordRequired     = apperr.Validation("Password is required")
	ErrRefreshTokenRequired = apperr.Validation("Refresh token is required")
	ErrAlreadyRegistered    = apperr.New(apperr.ErrConflict, "User already registered")
	ErrBadCredentials       = apperr.New(apperr.ErrUnauthorized, "Invalid email or password")
	ErrSignUpRejected       = apperr.Validation("Registration was rejected")
)

// AuthHandler serves the /api/auth and /api/user endpoints.
type AuthHandler struct {
	provider      identity.Provider
	errors        *ErrorWriter
	logger        *zap.Logger
	resetRedirect string
}

// NewAuthHandler creates the handler. Password-reset emails link back to frontendURL + "/reset-password".
func NewAuthHandler(provider identity.Provider, errs *ErrorWriter, logger *zap.Logger, frontendURL string) *AuthHandler {
	return &AuthHandler{
		provider:      provider,
		errors:        errs,
		logger:        logger,
		resetRedirect: strings.TrimRight(frontendURL, "/") + "/reset-password",
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string        `json:"message"`
	User    model.User    `json:"user"`
	Session model.Session `json:"session"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.credentials(w, r)
	if !ok {
		return
	}

	if _, err := h.provider.SignUp(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, identity.ErrUserExists):
			h.errors.Write(w, r, ErrAlreadyRegistered)
		case errors.Is(err, identity.ErrSignUpRejected):
			h.errors.Write(w, r, signUpRejection(err))
		default:
			h.errors.Write(w, r, errors.Wrap(err, "sign up"))
		}
		return
	}

	// Сразу логиним, чтобы вернуть сессию
	res, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		// например, проект требует подтверждения email
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.errors.Write(w, r, ErrBadCredentials)
			return
		}
		h.errors.Write(w, r, errors.Wrap(err, "sign in after sign up"))
		return
	}

	respond.JSON(w, r, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    res.User,
		Session: res.Session,
	})
}

// signUpRejection отдает клиенту причину отказа провайдера как ошибку валидации.
func signUpRejection(err error) error {
	var pe *identity.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return apperr.Validation(pe.Message)
	}
	return ErrSignUpRejected
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.credentials(w, r)
	if !ok {
		return
	}

	res, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.errors.Write(w, r, ErrBadCredentials)
			return
		}
		h.errors.Write(w, r, errors.Wrap(err, "sign in"))
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, auth.ErrMissingToken)
		return
	}

	if err := h.provider.SignOut(r.Context(), id.AccessToken); err != nil {
		h.errors.Write(w, r, errors.Wrap(err, "sign out"))
		return
	}
	respond.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Logged out successfully"})
}

// ForgotPassword отвечает одинаково для существующих и несуществующих адресов.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Write(w, r, errInvalidJSON)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		h.errors.Write(w, r, ErrEmailRequired)
		return
	}

	if err := h.provider.RequestPasswordReset(r.Context(), email, h.resetRedirect); err != nil {
		h.logger.Warn("password reset request failed", zap.Error(err))
	}
	respond.JSON(w, r, http.StatusOK, successResponse{
		Success: true,
		Message: "If an account exists for this email, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, auth.ErrMissingToken)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Write(w, r, errInvalidJSON)
		return
	}
	if req.Password == "" {
		h.errors.Write(w, r, ErrPasswordRequired)
		return
	}

	if err := h.provider.UpdatePassword(r.Context(), id.AccessToken, req.Password); err != nil {
		if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrTokenExpired) {
			h.errors.Write(w, r, auth.ErrInvalidToken)
			return
		}
		h.errors.Write(w, r, errors.Wrap(err, "update password"))
		return
	}
	respond.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Password updated"})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Write(w, r, errInvalidJSON)
		return
	}
	if req.RefreshToken == "" {
		h.errors.Write(w, r, ErrRefreshTokenRequired)
		return
	}

	res, err := h.provider.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			h.errors.Write(w, r, auth.ErrSessionExpired)
			return
		}
		h.errors.Write(w, r, errors.Wrap(err, "refresh session"))
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, auth.ErrMissingToken)
		return
	}

	session, err := identity.SessionFromToken(id.AccessToken, id.RefreshToken)
	if err != nil {
		h.errors.Write(w, r, auth.ErrInvalidToken)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]model.Session{"session": session})
}

func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, auth.ErrMissingToken)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]model.User{"user": id.User})
}

func (h *AuthHandler) credentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Write(w, r, errInvalidJSON)
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		h.errors.Write(w, r, ErrCredentialsRequired)
		return req, false
	}
	return req, true
}
