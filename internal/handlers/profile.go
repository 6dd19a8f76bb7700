package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/orderdesk/orderdesk/internal/api/middleware"
)

// Profile returns the authenticated user's account and order statistics.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	stats, err := h.db.OrderStats(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"stats": stats,
	})
}

// UpdateProfileRequest carries editable profile fields.
type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UpdateProfile updates the authenticated user's username or email.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	username := sanitizeName(req.Username)
	if username == "" {
		username = user.Username
	}
	email := user.Email
	if req.Email != "" {
		if !isValidEmail(req.Email) {
			h.Error(w, http.StatusBadRequest, "invalid email format")
			return
		}
		email = req.Email
	}

	if username != user.Username {
		existing, err := h.db.GetUserByUsername(r.Context(), username)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "database error")
			return
		}
		if existing != nil && existing.ID != user.ID {
			h.Error(w, http.StatusConflict, "username already taken")
			return
		}
	}

	if err := h.db.UpdateUserProfile(r.Context(), user.ID, username, email); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	updated, err := h.db.GetUserByID(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, updated)
}
