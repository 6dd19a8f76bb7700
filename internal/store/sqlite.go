package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orderdesk/orderdesk/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback when no PostgreSQL DSN is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/orderdesk.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/orderdesk.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// SQLite handles one writer at a time; serializing access through a
	// single connection avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'client',
		telegram_id INTEGER UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT '',
		type_label TEXT NOT NULL DEFAULT '',
		order_type TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		deadline TEXT NOT NULL DEFAULT '',
		volume TEXT NOT NULL DEFAULT '',
		requirements TEXT NOT NULL DEFAULT '',
		files TEXT NOT NULL DEFAULT '[]',
		price INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		confirmed_at DATETIME,
		manager_id INTEGER,
		notes TEXT
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		username TEXT,
		direction TEXT NOT NULL,
		text TEXT NOT NULL,
		order_id INTEGER,
		message_type TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS feedbacks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		username TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		stars INTEGER NOT NULL DEFAULT 5,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS promocodes (
		code TEXT PRIMARY KEY,
		discount_type TEXT NOT NULL,
		discount_value INTEGER NOT NULL DEFAULT 0,
		usage_limit INTEGER,
		used_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME,
		is_personal INTEGER NOT NULL DEFAULT 0,
		personal_user_id INTEGER,
		min_order_amount INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS order_status_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		changed_by INTEGER NOT NULL,
		changed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_order_id ON messages(order_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash, role string) (*models.User, error) {
	var emailVal *string
	if email != "" {
		emailVal = &email
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, username, emailVal, passwordHash, role, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}, nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByTelegramID retrieves a user by linked Telegram account.
func (s *SQLiteStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.getUser(ctx, "telegram_id = ?", telegramID)
}

// CreateTelegramUser creates a client account linked to a Telegram id.
func (s *SQLiteStore) CreateTelegramUser(ctx context.Context, username string, telegramID int64, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, telegram_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, username, passwordHash, models.RoleClient, telegramID, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         models.RoleClient,
		TelegramID:   telegramID,
		CreatedAt:    now,
	}, nil
}

// UpdateUserProfile updates the mutable profile fields. Empty values are
// left unchanged.
func (s *SQLiteStore) UpdateUserProfile(ctx context.Context, id int64, username, email string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = CASE WHEN ? != '' THEN ? ELSE username END,
		    email = CASE WHEN ? != '' THEN ? ELSE email END
		WHERE id = ?
	`, username, username, email, email, id)
	return err
}

// CreateOrder inserts a new order. The order id is assigned by the caller.
func (s *SQLiteStore) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	filesJSON, err := json.Marshal(orderFiles(o.Files))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, first_name, username, phone_number, type_label,
			order_type, topic, subject, deadline, volume, requirements, files, price, status,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, o.FirstName, o.Username, o.PhoneNumber, o.TypeLabel,
		o.OrderType, o.Topic, o.Subject, o.Deadline, o.Volume, o.Requirements,
		string(filesJSON), o.Price, o.Status, now, now)
	if err != nil {
		return nil, err
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return o, nil
}

// sqliteLimit maps "no limit" (zero or negative) onto SQLite's unlimited
// LIMIT sentinel.
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

const sqliteOrderColumns = `id, user_id, first_name, username, phone_number, type_label,
	order_type, topic, subject, deadline, volume, requirements, files, price, status,
	created_at, updated_at, confirmed_at, manager_id, COALESCE(notes, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	var filesJSON string
	err := row.Scan(
		&o.ID, &o.UserID, &o.FirstName, &o.Username, &o.PhoneNumber, &o.TypeLabel,
		&o.OrderType, &o.Topic, &o.Subject, &o.Deadline, &o.Volume, &o.Requirements,
		&filesJSON, &o.Price, &o.Status,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.ManagerID, &o.Notes,
	)
	if err != nil {
		return nil, err
	}
	if filesJSON != "" {
		if err := json.Unmarshal([]byte(filesJSON), &o.Files); err != nil {
			return nil, err
		}
	}
	if o.Files == nil {
		o.Files = []models.OrderFile{}
	}
	return o, nil
}

// GetOrder retrieves an order by ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteOrderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanSQLiteOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// ListOrders retrieves orders newest first. A zero userID lists all orders
// (staff view); otherwise only the given user's orders.
func (s *SQLiteStore) ListOrders(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteOrderColumns+` FROM orders
		WHERE (? = 0 OR user_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, userID, sqliteLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanSQLiteOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// UpdateOrder updates the status and/or notes of an order. Nil fields are
// left unchanged.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, id int64, status, notes *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = COALESCE(?, status),
		    notes = COALESCE(?, notes),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, notes, id)
	return err
}

// AppendOrderFile adds a file reference to an order's files list.
func (s *SQLiteStore) AppendOrderFile(ctx context.Context, orderID int64, f models.OrderFile) error {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return sql.ErrNoRows
	}
	filesJSON, err := json.Marshal(append(o.Files, f))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE orders SET files = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(filesJSON), orderID)
	return err
}

// AddStatusChange records a status transition in the order history.
func (s *SQLiteStore) AddStatusChange(ctx context.Context, c *models.OrderStatusChange) error {
	var notes *string
	if c.Notes != "" {
		notes = &c.Notes
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, changed_by, notes)
		VALUES (?, ?, ?, ?)
	`, c.OrderID, c.Status, c.ChangedBy, notes)
	return err
}

// OrderStats aggregates a user's orders by status.
func (s *SQLiteStore) OrderStats(ctx context.Context, userID int64) (*models.OrderStats, error) {
	stats := &models.OrderStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM orders WHERE user_id = ?
	`, userID).Scan(&stats.TotalOrders, &stats.Pending, &stats.InProgress, &stats.Completed)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// AppendMessage durably stores a chat message and returns it with the
// assigned id and creation timestamp.
func (s *SQLiteStore) AppendMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (user_id, username, direction, text, order_id, message_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.UserID, m.Username, m.Direction, m.Text, m.OrderID, m.MessageType, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	m.ID = id
	m.CreatedAt = now
	return m, nil
}

const sqliteMessageColumns = `id, user_id, COALESCE(username, ''), direction, text, order_id, COALESCE(message_type, ''), created_at`

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) OrderMessages(ctx context.Context, orderID int64, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+sqliteMessageColumns+` FROM messages
		WHERE order_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, orderID, sqliteLimit(limit))
}

// SupportMessages retrieves personal support channel messages ordered by
// creation time. A zero userID returns every support message (staff view).
func (s *SQLiteStore) SupportMessages(ctx context.Context, userID int64, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+sqliteMessageColumns+` FROM messages
		WHERE order_id IS NULL AND (? = 0 OR user_id = ?)
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, userID, userID, sqliteLimit(limit))
}

// AddFeedback stores a feedback record.
func (s *SQLiteStore) AddFeedback(ctx context.Context, f *models.Feedback) (*models.Feedback, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feedbacks (user_id, username, text, stars, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.UserID, f.Username, f.Text, f.Stars, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	f.ID = id
	f.CreatedAt = now
	return f, nil
}

// ListFeedbacks retrieves feedback records newest first.
func (s *SQLiteStore) ListFeedbacks(ctx context.Context, limit int) ([]models.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, username, text, stars, created_at
		FROM feedbacks
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sqliteLimit(limit))
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
func (s *SQLiteStore) GetPromocode(ctx context.Context, code string) (*models.Promocode, error) {
	p := &models.Promocode{}
	var isPersonal int
	err := s.db.QueryRowContext(ctx, `
		SELECT code, discount_type, discount_value, COALESCE(usage_limit, 0), used_count,
		       created_at, expires_at, is_personal, personal_user_id, min_order_amount
		FROM promocodes WHERE code = ?
	`, code).Scan(
		&p.Code, &p.DiscountType, &p.DiscountValue, &p.UsageLimit, &p.UsedCount,
		&p.CreatedAt, &p.ExpiresAt, &isPersonal, &p.PersonalUserID, &p.MinOrderAmount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.IsPersonal = isPersonal == 1
	return p, nil
}
