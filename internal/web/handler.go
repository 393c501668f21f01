// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// dateLayout is the wire format of date_of_birth.
const dateLayout = time.DateOnly

// ForgotPasswordMessage is the body of every /forgot-password response.
const ForgotPasswordMessage = "If an account exists for that email, a reset link has been sent."

// Authenticator is the account surface the handlers call. *auth.Service satisfies it.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string, rememberMe bool) (*auth.Session, error)
	Register(ctx context.Context, reg auth.Registration) (*auth.Session, error)
	Logout(ctx context.Context, identity *auth.Identity) error
}

// PasswordResetter is the reset surface the handlers call.
// *auth.ForgotPasswordService satisfies it.
type PasswordResetter interface {
	RequestReset(ctx context.Context, email string)
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

// Handler serves the authentication routes.
type Handler struct {
	accounts Authenticator
	resets   PasswordResetter
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(accounts Authenticator, resets PasswordResetter, logger *slog.Logger) (*Handler, error) {
	if accounts == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("authenticator is required")
	}
	if resets == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("password resetter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{accounts: accounts, resets: resets, logger: logger}, nil
}

// Routes returns the route mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("POST /forgot-password", h.handleForgotPassword)
	mux.HandleFunc("POST /reset-password", h.handleResetPassword)
	mux.HandleFunc("GET /me", h.handleMe)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.HandleFunc("GET /health", handleHealth)
	return mux
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      auth.PublicUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		TokenType: s.TokenType,
		ExpiresAt: s.ExpiresAt,
		User:      s.User,
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.accounts.Login(r.Context(), req.Identifier, req.Password, req.RememberMe)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	reg := auth.Registration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid registration", Field: "date_of_birth"})
			return
		}
		reg.DateOfBirth = dob
	}

	session, err := h.accounts.Register(r.Context(), reg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

// handleForgotPassword answers identically whether or not the address is known.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.resets.RequestReset(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, messageResponse{Message: ForgotPasswordMessage})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.resets.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset."})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}
	if err := h.accounts.Logout(r.Context(), identity); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out."})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok"))
}

// decode reads a single JSON object into v, writing 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.logger.DebugContext(r.Context(), "invalid request body", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write error is acceptable, client may disconnect
	json.NewEncoder(w).Encode(v)
}
