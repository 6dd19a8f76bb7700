package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orderdesk/orderdesk/internal/api/middleware"
	"github.com/orderdesk/orderdesk/internal/files"
	"github.com/orderdesk/orderdesk/internal/metrics"
	"github.com/orderdesk/orderdesk/internal/models"
)

// SupportHistory returns the authenticated client's support conversation.
func (h *Handler) SupportHistory(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	msgs, err := h.db.SupportMessages(r.Context(), user.ID, 0)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// PostSupportMessageRequest carries a support message sent over HTTP rather
// than the websocket.
type PostSupportMessageRequest struct {
	Text string `json:"text"`
}

// PostSupportMessage stores a client support message and pushes it to any
// live sessions in the client's room.
func (h *Handler) PostSupportMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req PostSupportMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	msg := &models.Message{
		UserID:      user.ID,
		Username:    user.Username,
		Direction:   models.DirectionIn,
		Text:        text,
		MessageType: models.MessageTypeText,
	}
	stored, err := h.db.AppendMessage(r.Context(), msg)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesStored.WithLabelValues("support").Inc()

	h.hub.NotifyUser(user.ID, stored)
	h.JSON(w, http.StatusCreated, stored)
}

// OrderHistory returns the message thread of one of the client's orders.
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := orderParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.db.GetOrder(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if order == nil || (order.UserID != user.ID && !user.IsAdmin()) {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}

	msgs, err := h.db.OrderMessages(r.Context(), id, 0)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// AllMessages returns support messages across users for the staff inbox.
// An optional user_id query narrows it to one conversation.
func (h *Handler) AllMessages(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			h.Error(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = id
	}

	msgs, err := h.db.SupportMessages(r.Context(), userID, 0)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// SendMessageToUserRequest carries a staff reply.
type SendMessageToUserRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

// SendMessageToUser stores a staff reply into a user's support channel and
// pushes it to the user's live sessions.
func (h *Handler) SendMessageToUser(w http.ResponseWriter, r *http.Request) {
	staff := middleware.UserFromContext(r.Context())

	var req SendMessageToUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if req.UserID <= 0 || text == "" {
		h.Error(w, http.StatusBadRequest, "user_id and text are required")
		return
	}

	target, err := h.db.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if target == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	msg := &models.Message{
		UserID:      req.UserID,
		Username:    staff.Username,
		Direction:   models.DirectionOut,
		Text:        text,
		MessageType: models.MessageTypeText,
	}
	stored, err := h.db.AppendMessage(r.Context(), msg)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesStored.WithLabelValues("support").Inc()

	h.hub.NotifyUser(req.UserID, stored)
	h.JSON(w, http.StatusCreated, stored)
}

// SendFileToUser stores a staff file in a user's support channel, records a
// document message, and pushes it to the user's live sessions.
func (h *Handler) SendFileToUser(w http.ResponseWriter, r *http.Request) {
	staff := middleware.UserFromContext(r.Context())

	userID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		h.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	target, err := h.db.GetUserByID(r.Context(), userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if target == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	fileID, err := h.files.SaveSupportFile(userID, header.Filename, file)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	metrics.FilesUploaded.Inc()

	msg := &models.Message{
		UserID:      userID,
		Username:    staff.Username,
		Direction:   models.DirectionOut,
		Text:        header.Filename,
		MessageType: models.MessageTypeDocument,
	}
	stored, err := h.db.AppendMessage(r.Context(), msg)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesStored.WithLabelValues("support").Inc()

	h.hub.NotifyUser(userID, stored)
	h.JSON(w, http.StatusCreated, map[string]interface{}{
		"file_id": fileID,
		"message": stored,
	})
}

// DownloadFile streams any stored file back by id (staff access).
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if fileID == "" {
		h.Error(w, http.StatusBadRequest, "file id is required")
		return
	}
	h.streamFile(w, fileID)
}

// streamFile writes a stored file as an attachment.
func (h *Handler) streamFile(w http.ResponseWriter, fileID string) {
	rc, name, err := h.files.Open(fileID)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "file not found")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}
