package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderdesk/orderdesk/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash, role string) (*models.User, error) {
	user := &models.User{}
	var emailVal *string
	if email != "" {
		emailVal = &email
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, COALESCE(email, ''), password_hash, role, created_at
	`, username, emailVal, passwordHash, role).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, COALESCE(email, ''), password_hash, role, COALESCE(telegram_id, 0), created_at
		FROM users WHERE `+where,
		arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TelegramID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = $1", username)
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = $1", email)
}

// GetUserByTelegramID retrieves a user by linked Telegram account.
func (s *PostgresStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.getUser(ctx, "telegram_id = $1", telegramID)
}

// CreateTelegramUser creates a client account linked to a Telegram id.
func (s *PostgresStore) CreateTelegramUser(ctx context.Context, username string, telegramID int64, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role, telegram_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, COALESCE(email, ''), password_hash, role, COALESCE(telegram_id, 0), created_at
	`, username, passwordHash, models.RoleClient, telegramID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TelegramID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserProfile updates the mutable profile fields. Empty values are
// left unchanged.
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id int64, username, email string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET username = COALESCE(NULLIF($2, ''), username),
		    email = COALESCE(NULLIF($3, ''), email)
		WHERE id = $1
	`, id, username, email)
	return err
}

// CreateOrder inserts a new order. The order id is assigned by the caller.
func (s *PostgresStore) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	filesJSON, err := json.Marshal(orderFiles(o.Files))
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, first_name, username, phone_number, type_label,
			order_type, topic, subject, deadline, volume, requirements, files, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, o.FirstName, o.Username, o.PhoneNumber, o.TypeLabel,
		o.OrderType, o.Topic, o.Subject, o.Deadline, o.Volume, o.Requirements,
		filesJSON, o.Price, o.Status).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

const orderColumns = `id, user_id, first_name, username, phone_number, type_label,
	order_type, topic, subject, deadline, volume, requirements, files, price, status,
	created_at, updated_at, confirmed_at, manager_id, notes`

func scanOrder(row pgx.Row) (*models.Order, error) {
	o := &models.Order{}
	var filesJSON []byte
	var notes *string
	err := row.Scan(
		&o.ID, &o.UserID, &o.FirstName, &o.Username, &o.PhoneNumber, &o.TypeLabel,
		&o.OrderType, &o.Topic, &o.Subject, &o.Deadline, &o.Volume, &o.Requirements,
		&filesJSON, &o.Price, &o.Status,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.ManagerID, &notes,
	)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		o.Notes = *notes
	}
	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &o.Files); err != nil {
			return nil, err
		}
	}
	if o.Files == nil {
		o.Files = []models.OrderFile{}
	}
	return o, nil
}

// GetOrder retrieves an order by ID.
func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// pgLimit maps "no limit" (zero or negative) onto a NULL LIMIT.
func pgLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// ListOrders retrieves orders newest first. A zero userID lists all orders
// (staff view); otherwise only the given user's orders.
func (s *PostgresStore) ListOrders(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = 0 OR user_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, pgLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// UpdateOrder updates the status and/or notes of an order. Nil fields are
// left unchanged.
func (s *PostgresStore) UpdateOrder(ctx context.Context, id int64, status, notes *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = COALESCE($2, status),
		    notes = COALESCE($3, notes),
		    updated_at = NOW()
		WHERE id = $1
	`, id, status, notes)
	return err
}

// AppendOrderFile adds a file reference to an order's files list.
func (s *PostgresStore) AppendOrderFile(ctx context.Context, orderID int64, f models.OrderFile) error {
	entry, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE orders
		SET files = COALESCE(files, '[]'::jsonb) || $2::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`, orderID, entry)
	return err
}

// AddStatusChange records a status transition in the order history.
func (s *PostgresStore) AddStatusChange(ctx context.Context, c *models.OrderStatusChange) error {
	var notes *string
	if c.Notes != "" {
		notes = &c.Notes
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)
	`, c.OrderID, c.Status, c.ChangedBy, notes)
	return err
}

// OrderStats aggregates a user's orders by status.
func (s *PostgresStore) OrderStats(ctx context.Context, userID int64) (*models.OrderStats, error) {
	stats := &models.OrderStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'in_progress'),
		       COUNT(*) FILTER (WHERE status = 'completed')
		FROM orders WHERE user_id = $1
	`, userID).Scan(&stats.TotalOrders, &stats.Pending, &stats.InProgress, &stats.Completed)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// AppendMessage durably stores a chat message and returns it with the
// assigned id and creation timestamp.
func (s *PostgresStore) AppendMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (user_id, username, direction, text, order_id, message_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, m.UserID, m.Username, m.Direction, m.Text, m.OrderID, m.MessageType).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

const messageColumns = `id, user_id, COALESCE(username, ''), direction, text, order_id, COALESCE(message_type, ''), created_at`

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.Direction, &m.Text,
			&m.OrderID, &m.MessageType, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// OrderMessages retrieves an order thread ordered by creation time.
func (s *PostgresStore) OrderMessages(ctx context.Context, orderID int64, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, orderID, pgLimit(limit))
}

// SupportMessages retrieves personal support channel messages ordered by
// creation time. A zero userID returns every support message (staff view).
func (s *PostgresStore) SupportMessages(ctx context.Context, userID int64, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE order_id IS NULL AND ($1 = 0 OR user_id = $1)
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, userID, pgLimit(limit))
}

// AddFeedback stores a feedback record.
func (s *PostgresStore) AddFeedback(ctx context.Context, f *models.Feedback) (*models.Feedback, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO feedbacks (user_id, username, text, stars)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, f.UserID, f.Username, f.Text, f.Stars).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListFeedbacks retrieves feedback records newest first.
func (s *PostgresStore) ListFeedbacks(ctx context.Context, limit int) ([]models.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, username, text, stars, created_at
		FROM feedbacks
		ORDER BY created_at DESC
		LIMIT $1
	`, pgLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feedbacks := make([]models.Feedback, 0)
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Username, &f.Text, &f.Stars, &f.CreatedAt); err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, f)
	}
	return feedbacks, rows.Err()
}

// GetPromocode retrieves a promocode by code.
func (s *PostgresStore) GetPromocode(ctx context.Context, code string) (*models.Promocode, error) {
	p := &models.Promocode{}
	err := s.pool.QueryRow(ctx, `
		SELECT code, discount_type, discount_value, COALESCE(usage_limit, 0), used_count,
		       created_at, expires_at, is_personal, personal_user_id, min_order_amount
		FROM promocodes WHERE code = $1
	`, code).Scan(
		&p.Code, &p.DiscountType, &p.DiscountValue, &p.UsageLimit, &p.UsedCount,
		&p.CreatedAt, &p.ExpiresAt, &p.IsPersonal, &p.PersonalUserID, &p.MinOrderAmount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func orderFiles(files []models.OrderFile) []models.OrderFile {
	if files == nil {
		return []models.OrderFile{}
	}
	return files
}
