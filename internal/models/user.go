package models

import "time"

// User roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// User represents a registered account, either a client or a staff member.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	TelegramID   int64     `json:"telegram_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user has the staff role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
