package models

import "time"

// Message direction: "in" is written by the end user, "out" by staff.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Message kinds.
const (
	MessageTypeText     = "text"
	MessageTypeDocument = "document"
)

// Message is a durable chat record. A nil OrderID means the message belongs
// to the sender's personal support channel rather than an order thread.
// Messages are immutable once stored.
type Message struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Direction   string    `json:"direction"`
	Text        string    `json:"text"`
	OrderID     *int64    `json:"order_id"`
	MessageType string    `json:"message_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
