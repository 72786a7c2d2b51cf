package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"rag-assistant/internal/models"
	"rag-assistant/internal/services"
)

// SessionHeader carries the auth session token on protected requests.
const SessionHeader = "X-Session-ID"

type contextKey string

const usernameKey contextKey = "username"

// UsernameFromContext returns the authenticated username, if any.
func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

// AuthHandler handles HTTP requests for registration and sessions.
type AuthHandler struct {
	authService *services.AuthService
	logger      *log.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *services.AuthService, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register handles account creation
// @Summary Register a new user
// @Description Create an account with a unique username and email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration request"
// @Success 201 {object} models.BasicResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		var validationErr *models.ValidationError
		switch {
		case errors.As(err, &validationErr):
			h.sendError(w, http.StatusBadRequest, err.Error())
		default:
			h.sendError(w, http.StatusConflict, err.Error())
		}
		return
	}

	h.sendJSON(w, http.StatusCreated, models.BasicResponse{
		Message: "User registered",
		Status:  "success",
	})
}

// Login handles authentication
// @Summary Log in
// @Description Validate credentials and issue a 24 hour session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login request"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.sendError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.logger.Printf("Login failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// Logout handles session deletion
// @Summary Log out
// @Description Delete the current session
// @Tags auth
// @Produce json
// @Param X-Session-ID header string true "Session token"
// @Success 200 {object} models.BasicResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		h.sendError(w, http.StatusBadRequest, "Missing "+SessionHeader+" header")
		return
	}

	if err := h.authService.Logout(r.Context(), sessionID); err != nil {
		h.logger.Printf("Logout failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	h.sendJSON(w, http.StatusOK, models.BasicResponse{
		Message: "Logged out",
		Status:  "success",
	})
}

// Me resolves the current session
// @Summary Current session
// @Description Return the session's username and expiry
// @Tags auth
// @Produce json
// @Param X-Session-ID header string true "Session token"
// @Success 200 {object} models.AuthSession
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		h.sendError(w, http.StatusUnauthorized, "Missing "+SessionHeader+" header")
		return
	}

	session, err := h.authService.ValidateSession(r.Context(), sessionID)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "Invalid or expired session")
		return
	}

	h.sendJSON(w, http.StatusOK, session)
}

// RequireSession validates the session header and stores the username in the
// request context for downstream handlers.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" {
			h.sendError(w, http.StatusUnauthorized, "Missing "+SessionHeader+" header")
			return
		}

		session, err := h.authService.ValidateSession(r.Context(), sessionID)
		if err != nil {
			h.sendError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, session.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *AuthHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *AuthHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}
