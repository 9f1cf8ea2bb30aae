package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"socialchat/internal/auth"
	"socialchat/internal/middleware"
	"socialchat/internal/models"
	"socialchat/internal/services"
)

// AuthHandler bundles authentication-related HTTP handlers.
type AuthHandler struct {
	AuthService    services.AuthService
	TokenBlacklist auth.TokenBlacklist
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService services.AuthService, tokenBlacklist auth.TokenBlacklist) *AuthHandler {
	return &AuthHandler{AuthService: authService, TokenBlacklist: tokenBlacklist}
}

// RegisterRequest is the body of a registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginRequest is the body of a login request.
type LoginRequest struct {
	UsernameOrEmail string `json:"username"`
	Password        string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles account creation.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Username == "" || req.Password == "" || req.FullName == "" {
		writeJSONError(w, "username, full name and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.FullName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserAlreadyExists) {
			writeJSONError(w, err.Error(), http.StatusConflict)
		} else {
			writeJSONError(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}

	user.PasswordHash = ""
	writeJSONResponse(w, http.StatusCreated, user)
}

// Login handles credential verification and token issuance.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.UsernameOrEmail == "" || req.Password == "" {
		writeJSONError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	token, user, err := h.AuthService.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) || errors.Is(err, services.ErrInvalidCredentials) {
			writeJSONError(w, "incorrect username or password", http.StatusUnauthorized)
		} else {
			writeJSONError(w, "login failed", http.StatusInternalServerError)
		}
		return
	}

	user.PasswordHash = ""
	writeJSONResponse(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Logout revokes the caller's token by blacklisting its JTI.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	if claims.ID == "" || claims.ExpiresAt == nil {
		writeJSONError(w, "token cannot be revoked", http.StatusInternalServerError)
		return
	}

	if err := h.TokenBlacklist.Add(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeJSONError(w, "logout failed", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
