package store

import "context"

// pgSchema bootstraps the PostgreSQL tables. Statements are idempotent so
// startup can run them unconditionally.
const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username VARCHAR(150) UNIQUE NOT NULL,
	email VARCHAR(255) UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(50) NOT NULL DEFAULT 'client',
	telegram_id BIGINT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
	id BIGINT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id),
	first_name VARCHAR(200) NOT NULL DEFAULT '',
	username VARCHAR(100) NOT NULL DEFAULT '',
	phone_number VARCHAR(50) NOT NULL DEFAULT '',
	type_label VARCHAR(100) NOT NULL DEFAULT '',
	order_type VARCHAR(100) NOT NULL DEFAULT '',
	topic TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	deadline VARCHAR(100) NOT NULL DEFAULT '',
	volume VARCHAR(100) NOT NULL DEFAULT '',
	requirements TEXT NOT NULL DEFAULT '',
	files JSONB NOT NULL DEFAULT '[]'::jsonb,
	price BIGINT NOT NULL DEFAULT 0,
	status VARCHAR(50) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	confirmed_at TIMESTAMPTZ,
	manager_id BIGINT,
	notes TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	username VARCHAR(200),
	direction VARCHAR(50) NOT NULL,
	text TEXT NOT NULL,
	order_id BIGINT REFERENCES orders(id),
	message_type VARCHAR(50),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS feedbacks (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT,
	username VARCHAR(200) NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	stars INTEGER NOT NULL DEFAULT 5,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS promocodes (
	code VARCHAR(100) PRIMARY KEY,
	discount_type VARCHAR(50) NOT NULL,
	discount_value BIGINT NOT NULL DEFAULT 0,
	usage_limit BIGINT,
	used_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at TIMESTAMPTZ,
	is_personal BOOLEAN NOT NULL DEFAULT FALSE,
	personal_user_id BIGINT,
	min_order_amount BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_status_history (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	status VARCHAR(50) NOT NULL,
	changed_by BIGINT NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_order_id ON messages(order_id);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
`

// Migrate applies the schema on the store's pool.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgSchema)
	return err
}
