package database

import (
	"context"
	"fmt"
	"strings"
)

// Column types differ between dialects; the schema below uses the {{...}}
// markers and is expanded per driver.
var dialectTypes = map[string]*strings.Replacer{
	DriverSQLite: strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "DATETIME",
		"{{money}}", "REAL",
	),
	DriverPostgres: strings.NewReplacer(
		"{{pk}}", "BIGSERIAL PRIMARY KEY",
		"{{ts}}", "TIMESTAMPTZ",
		"{{money}}", "DOUBLE PRECISION",
	),
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		credits {{money}} NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT 'customer',
		email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auth_tokens (
		token TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		purpose TEXT NOT NULL,
		expires_at {{ts}} NOT NULL,
		used_at {{ts}},
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id {{pk}},
		user_id BIGINT NOT NULL,
		service_type TEXT NOT NULL,
		booking_date TEXT NOT NULL,
		booking_time TEXT NOT NULL,
		address TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_amount {{money}} NOT NULL DEFAULT 0,
		estimated_price {{money}} NOT NULL DEFAULT 0,
		special_instructions TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id {{pk}},
		user_id BIGINT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL,
		city TEXT NOT NULL,
		postal_code TEXT NOT NULL DEFAULT '',
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id {{pk}},
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		base_price {{money}} NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contact_messages (
		id {{pk}},
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'new',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pickup_deliveries (
		id {{pk}},
		booking_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		pickup_date TEXT NOT NULL,
		delivery_date TEXT NOT NULL DEFAULT '',
		pickup_address TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_complaints (
		id {{pk}},
		user_id BIGINT NOT NULL,
		booking_id BIGINT,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS support_tickets (
		id {{pk}},
		user_id BIGINT NOT NULL,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'open',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS support_messages (
		id {{pk}},
		ticket_id BIGINT NOT NULL,
		sender_id BIGINT NOT NULL,
		sender_role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id {{pk}},
		user_id BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'waiting',
		assigned_admin_id BIGINT,
		last_message_at {{ts}},
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id {{pk}},
		session_id BIGINT NOT NULL,
		sender_id BIGINT NOT NULL,
		sender_role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admin_notifications (
		id {{pk}},
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		reference_table TEXT NOT NULL DEFAULT '',
		reference_id BIGINT NOT NULL DEFAULT 0,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gallery_images (
		id {{pk}},
		title TEXT NOT NULL DEFAULT '',
		storage_path TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id {{pk}},
		task_type TEXT NOT NULL,
		reference_id BIGINT NOT NULL DEFAULT 0,
		payload TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at {{ts}} NOT NULL,
		processed_at {{ts}},
		next_retry_at {{ts}}
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_addresses_user_id ON addresses(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_user_id ON support_tickets(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_support_messages_ticket ON support_messages(ticket_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pickups_user_id ON pickup_deliveries(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_complaints_user_id ON user_complaints(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
}

func (db *DB) createTables(ctx context.Context) error {
	r := dialectTypes[db.driver]
	for _, stmt := range schema {
		query := r.Replace(stmt)
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// MissingTables reports which of the given tables cannot be queried.
func (db *DB) MissingTables(ctx context.Context, tables ...string) []string {
	var missing []string
	for _, table := range tables {
		var one int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&one)
		if err != nil {
			missing = append(missing, table)
		}
	}
	return missing
}
