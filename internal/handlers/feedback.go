package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/orderdesk/orderdesk/internal/api/middleware"
	"github.com/orderdesk/orderdesk/internal/models"
)

// FeedbackRequest represents a review submission.
type FeedbackRequest struct {
	Text  string `json:"text"`
	Stars int    `json:"stars"`
}

// AddFeedback stores a review from the authenticated client.
func (h *Handler) AddFeedback(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Stars < 1 || req.Stars > 5 {
		h.Error(w, http.StatusBadRequest, "stars must be between 1 and 5")
		return
	}

	fb := &models.Feedback{
		UserID:   &user.ID,
		Username: user.Username,
		Text:     text,
		Stars:    req.Stars,
	}
	stored, err := h.db.AddFeedback(r.Context(), fb)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store feedback")
		return
	}
	h.JSON(w, http.StatusCreated, stored)
}

// ListFeedbacks returns recent public reviews.
func (h *Handler) ListFeedbacks(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	feedbacks, err := h.db.ListFeedbacks(r.Context(), limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"feedbacks": feedbacks})
}
