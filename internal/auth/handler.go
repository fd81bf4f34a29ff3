package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/privebank/ledger/internal/handlers"
	"github.com/privebank/ledger/internal/services"
)

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Authenticator is the part of Service the HTTP handlers call.
type Authenticator interface {
	Register(ctx context.Context, email, password, displayName string) (*User, error)
	Login(ctx context.Context, email, password string) (string, *User, error)
}

type Handler struct {
	svc Authenticator
	log *slog.Logger
}

func NewHandler(svc Authenticator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// POST /api/v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if errs := services.ValidateStruct(&req); errs != nil {
		handlers.WriteFieldErrors(w, errs)
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			handlers.WriteError(w, http.StatusConflict, "duplicate_email", "email already registered")
			return
		}
		h.log.Error("register failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "operation_failed", "registration failed")
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, u)
}

// POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if errs := services.ValidateStruct(&req); errs != nil {
		handlers.WriteFieldErrors(w, errs)
		return
	}
	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			handlers.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("login failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "operation_failed", "login failed")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, LoginResponse{Token: token, User: u})
}
