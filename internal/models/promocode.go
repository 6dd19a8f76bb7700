package models

import "time"

// Promocode discount types.
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Promocode is a discount code applicable to new orders.
type Promocode struct {
	Code           string     `json:"code"`
	DiscountType   string     `json:"discount_type"`
	DiscountValue  int64      `json:"discount_value"`
	UsageLimit     int64      `json:"usage_limit,omitempty"`
	UsedCount      int64      `json:"used_count"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsPersonal     bool       `json:"is_personal"`
	PersonalUserID *int64     `json:"personal_user_id,omitempty"`
	MinOrderAmount int64      `json:"min_order_amount"`
}

// Discount computes the discount for an order amount. Validity checks
// (expiry, usage limit, minimum amount) are the caller's concern.
func (p *Promocode) Discount(amount int64) int64 {
	if p.DiscountType == DiscountPercent {
		return amount * p.DiscountValue / 100
	}
	return p.DiscountValue
}
