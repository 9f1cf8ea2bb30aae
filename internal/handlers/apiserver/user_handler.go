package apiserver

import (
	"errors"
	"net/http"

	"socialchat/internal/middleware"
	"socialchat/internal/services"
)

// UserHandler bundles user-related HTTP handlers.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMe returns the authenticated user's profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	user, err := h.userService.GetUserProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, "user not found", http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to load user", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}
