package store

import (
	"context"

	"github.com/orderdesk/orderdesk/internal/models"
)

// DataStore defines the interface for persistent storage of users, orders,
// messages, feedback, and promocodes. Both PostgresStore and SQLiteStore
// implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, email, passwordHash, role string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateTelegramUser(ctx context.Context, username string, telegramID int64, passwordHash string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id int64, username, email string) error

	// Order operations
	CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64, limit int) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id int64, status, notes *string) error
	AppendOrderFile(ctx context.Context, orderID int64, f models.OrderFile) error
	AddStatusChange(ctx context.Context, c *models.OrderStatusChange) error
	OrderStats(ctx context.Context, userID int64) (*models.OrderStats, error)

	// Message operations. AppendMessage is atomic: the returned message
	// carries the assigned id and creation timestamp, and a concurrent
	// reader sees either the whole record or nothing.
	AppendMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	OrderMessages(ctx context.Context, orderID int64, limit int) ([]models.Message, error)
	SupportMessages(ctx context.Context, userID int64, limit int) ([]models.Message, error)

	// Feedback operations
	AddFeedback(ctx context.Context, f *models.Feedback) (*models.Feedback, error)
	ListFeedbacks(ctx context.Context, limit int) ([]models.Feedback, error)

	// Promocode operations
	GetPromocode(ctx context.Context, code string) (*models.Promocode, error)
}
