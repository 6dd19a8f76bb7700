package handlers

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orderdesk/orderdesk/internal/api/middleware"
	"github.com/orderdesk/orderdesk/internal/metrics"
	"github.com/orderdesk/orderdesk/internal/models"
)

// newOrderID mints a random 9-digit order number. Collisions are retried by
// the caller on insert failure.
func newOrderID() int64 {
	return 100_000_000 + rand.Int63n(900_000_000)
}

// CreateOrderRequest represents the client order form.
type CreateOrderRequest struct {
	FirstName    string `json:"first_name"`
	PhoneNumber  string `json:"phone_number"`
	TypeLabel    string `json:"type_label"`
	OrderType    string `json:"order_type"`
	Topic        string `json:"topic"`
	Subject      string `json:"subject"`
	Deadline     string `json:"deadline"`
	Volume       string `json:"volume"`
	Requirements string `json:"requirements"`
	Promocode    string `json:"promocode,omitempty"`
}

// CreateOrder places a new order for the authenticated client.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if sanitizeName(req.Topic) == "" {
		h.Error(w, http.StatusBadRequest, "topic is required")
		return
	}

	order := &models.Order{
		UserID:       user.ID,
		FirstName:    sanitizeName(req.FirstName),
		Username:     user.Username,
		PhoneNumber:  sanitizeName(req.PhoneNumber),
		TypeLabel:    sanitizeName(req.TypeLabel),
		OrderType:    sanitizeName(req.OrderType),
		Topic:        sanitizeName(req.Topic),
		Subject:      sanitizeName(req.Subject),
		Deadline:     sanitizeName(req.Deadline),
		Volume:       sanitizeName(req.Volume),
		Requirements: req.Requirements,
		Status:       models.OrderStatusPending,
	}

	var created *models.Order
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		order.ID = newOrderID()
		created, err = h.db.CreateOrder(r.Context(), order)
		if err == nil {
			break
		}
	}
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	metrics.OrdersCreated.Inc()
	h.JSON(w, http.StatusCreated, created)
}

// MyOrders lists the authenticated client's orders.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	orders, err := h.db.ListOrders(r.Context(), user.ID, 0)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// orderParam parses the order id path parameter.
func orderParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	return id, err == nil && id > 0
}

// MyOrder returns one of the client's orders.
func (h *Handler) MyOrder(w http.ResponseWriter, r *http.Request) {
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
	if order == nil || order.UserID != user.ID {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}
	h.JSON(w, http.StatusOK, order)
}

// UploadOrderFile attaches a multipart file to one of the client's orders.
func (h *Handler) UploadOrderFile(w http.ResponseWriter, r *http.Request) {
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
	if order == nil || order.UserID != user.ID {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	fileID, err := h.files.SaveOrderFile(order.ID, header.Filename, file)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	ref := models.OrderFile{FileID: fileID, FileName: header.Filename}
	if err := h.db.AppendOrderFile(r.Context(), order.ID, ref); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to record file")
		return
	}

	metrics.FilesUploaded.Inc()
	h.JSON(w, http.StatusCreated, ref)
}

// OrderFiles lists the files attached to one of the client's orders.
func (h *Handler) OrderFiles(w http.ResponseWriter, r *http.Request) {
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
	if order == nil || order.UserID != user.ID {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"files": order.Files})
}

// DownloadOrderFile streams one of the client's own order attachments.
func (h *Handler) DownloadOrderFile(w http.ResponseWriter, r *http.Request) {
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
	if order == nil || order.UserID != user.ID {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}

	fileID := chi.URLParam(r, "fileID")
	attached := false
	for _, f := range order.Files {
		if f.FileID == fileID {
			attached = true
			break
		}
	}
	if !attached {
		h.Error(w, http.StatusNotFound, "file not found")
		return
	}

	h.streamFile(w, fileID)
}

// ListOrders returns every order for the staff dashboard.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	orders, err := h.db.ListOrders(r.Context(), 0, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// GetOrder returns any order for staff.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
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
	if order == nil {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}
	h.JSON(w, http.StatusOK, order)
}

// UpdateOrderRequest carries a staff order update.
type UpdateOrderRequest struct {
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

var validStatuses = map[string]bool{
	models.OrderStatusPending:    true,
	models.OrderStatusInProgress: true,
	models.OrderStatusCompleted:  true,
}

// UpdateOrder changes an order's status or notes and records the transition.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	staff := middleware.UserFromContext(r.Context())
	id, ok := orderParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Status == nil && req.Notes == nil {
		h.Error(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Status != nil && !validStatuses[*req.Status] {
		h.Error(w, http.StatusBadRequest, "unknown status")
		return
	}

	order, err := h.db.GetOrder(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if order == nil {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}

	if err := h.db.UpdateOrder(r.Context(), id, req.Status, req.Notes); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	if req.Status != nil && *req.Status != order.Status {
		change := &models.OrderStatusChange{
			OrderID:   id,
			Status:    *req.Status,
			ChangedBy: staff.ID,
		}
		if req.Notes != nil {
			change.Notes = *req.Notes
		}
		if err := h.db.AddStatusChange(r.Context(), change); err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to record status change")
			return
		}
	}

	updated, err := h.db.GetOrder(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	h.JSON(w, http.StatusOK, updated)
}
