package models

import "time"

// Feedback is a public review left by a client or an anonymous visitor.
type Feedback struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Stars     int       `json:"stars"`
	CreatedAt time.Time `json:"created_at"`
}
