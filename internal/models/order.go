package models

import "time"

// Order statuses.
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
)

// OrderFile references a file attached to an order.
type OrderFile struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// Order represents a work order placed by a client.
type Order struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	FirstName   string      `json:"first_name,omitempty"`
	Username    string      `json:"username,omitempty"`
	PhoneNumber string      `json:"phone_number,omitempty"`
	TypeLabel   string      `json:"type_label,omitempty"`
	OrderType   string      `json:"order_type,omitempty"`
	Topic       string      `json:"topic"`
	Subject     string      `json:"subject,omitempty"`
	Deadline    string      `json:"deadline,omitempty"`
	Volume      string      `json:"volume,omitempty"`
	Requirements string     `json:"requirements,omitempty"`
	Files       []OrderFile `json:"files"`
	Price       int64       `json:"price,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ConfirmedAt *time.Time  `json:"confirmed_at,omitempty"`
	ManagerID   *int64      `json:"manager_id,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

// OrderStatusChange records a status transition made by staff.
type OrderStatusChange struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	ChangedBy int64     `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Notes     string    `json:"notes,omitempty"`
}

// OrderStats aggregates a client's orders by status.
type OrderStats struct {
	TotalOrders int64 `json:"total_orders"`
	Pending     int64 `json:"pending"`
	InProgress  int64 `json:"in_progress"`
	Completed   int64 `json:"completed"`
}
