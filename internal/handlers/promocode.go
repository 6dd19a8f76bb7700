package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/orderdesk/orderdesk/internal/api/middleware"
)

// ValidatePromocodeRequest asks whether a code applies to an amount.
type ValidatePromocodeRequest struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

// ValidatePromocodeResponse reports the computed discount.
type ValidatePromocodeResponse struct {
	Valid    bool   `json:"valid"`
	Discount int64  `json:"discount,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ValidatePromocode checks a promocode against its constraints and returns
// the discount it would grant on the given amount.
func (h *Handler) ValidatePromocode(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req ValidatePromocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		h.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	promo, err := h.db.GetPromocode(r.Context(), code)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	reject := func(reason string) {
		h.JSON(w, http.StatusOK, ValidatePromocodeResponse{Valid: false, Reason: reason})
	}

	switch {
	case promo == nil:
		reject("unknown code")
	case promo.ExpiresAt != nil && promo.ExpiresAt.Before(time.Now()):
		reject("code expired")
	case promo.UsageLimit > 0 && promo.UsedCount >= promo.UsageLimit:
		reject("usage limit reached")
	case promo.IsPersonal && (promo.PersonalUserID == nil || *promo.PersonalUserID != user.ID):
		reject("code not available for this account")
	case req.Amount < promo.MinOrderAmount:
		reject("order amount below minimum")
	default:
		h.JSON(w, http.StatusOK, ValidatePromocodeResponse{
			Valid:    true,
			Discount: promo.Discount(req.Amount),
		})
	}
}
