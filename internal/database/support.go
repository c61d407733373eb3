package database

import (
	"context"
	"database/sql"
	"fmt"

	"sparkclean/internal/models"
)

const (
	ticketColumns      = `id, user_id, subject, description, priority, status, created_at, updated_at`
	supportMsgColumns  = `id, ticket_id, sender_id, sender_role, content, created_at, updated_at`
	chatSessionColumns = `id, user_id, status, assigned_admin_id, last_message_at, created_at, updated_at`
	chatMsgColumns     = `id, session_id, sender_id, sender_role, content, created_at, updated_at`
)

func scanTicket(row scanner) (*models.SupportTicket, error) {
	var t models.SupportTicket
	if err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Description, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *DB) CreateSupportTicket(ctx context.Context, t *models.SupportTicket) error {
	query := `INSERT INTO support_tickets (user_id, subject, description, priority, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	ts := now()
	id, err := db.insert(ctx, db, query, t.UserID, t.Subject, t.Description, t.Priority, t.Status, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create support ticket: %w", err)
	}
	t.ID = id
	t.CreatedAt = ts
	t.UpdatedAt = ts
	return nil
}

func (db *DB) GetSupportTicket(ctx context.Context, id int64) (*models.SupportTicket, error) {
	t, err := scanTicket(db.queryRow(ctx, db, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get support ticket %d: %w", id, notFound(err))
	}
	return t, nil
}

// ListSupportTickets returns tickets newest first; userID 0 lists all.
func (db *DB) ListSupportTickets(ctx context.Context, userID int64) ([]models.SupportTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets`
	var args []any
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.query(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list support tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.SupportTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan support ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (db *DB) UpdateSupportTicketStatus(ctx context.Context, id int64, status string) (*models.SupportTicket, error) {
	res, err := db.exec(ctx, db, `UPDATE support_tickets SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update support ticket: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}
	return db.GetSupportTicket(ctx, id)
}

// CreateSupportMessage appends a message and touches the ticket.
func (db *DB) CreateSupportMessage(ctx context.Context, m *models.SupportMessage) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := db.exec(ctx, tx, `UPDATE support_tickets SET updated_at = ? WHERE id = ?`, ts, m.TicketID)
		if err != nil {
			return fmt.Errorf("failed to touch support ticket: %w", err)
		}
		if err := requireRow(res, ErrNotFound); err != nil {
			return fmt.Errorf("support ticket %d: %w", m.TicketID, err)
		}

		query := `INSERT INTO support_messages (ticket_id, sender_id, sender_role, content, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`
		id, err := db.insert(ctx, tx, query, m.TicketID, m.SenderID, m.SenderRole, m.Content, ts, ts)
		if err != nil {
			return fmt.Errorf("failed to create support message: %w", err)
		}
		m.ID = id
		m.CreatedAt = ts
		m.UpdatedAt = ts
		return nil
	})
}

func (db *DB) ListSupportMessages(ctx context.Context, ticketID int64) ([]models.SupportMessage, error) {
	query := `SELECT ` + supportMsgColumns + ` FROM support_messages WHERE ticket_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.query(ctx, db, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list support messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.SupportMessage
	for rows.Next() {
		var m models.SupportMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.SenderRole, &m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan support message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanChatSession(row scanner) (*models.ChatSession, error) {
	var s models.ChatSession
	if err := row.Scan(&s.ID, &s.UserID, &s.Status, &s.AssignedAdminID, &s.LastMessageAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateChatSession(ctx context.Context, s *models.ChatSession) error {
	query := `INSERT INTO chat_sessions (user_id, status, assigned_admin_id, last_message_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`
	if s.Status == "" {
		s.Status = models.ChatWaiting
	}
	ts := now()
	id, err := db.insert(ctx, db, query, s.UserID, s.Status, s.AssignedAdminID, s.LastMessageAt, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	s.ID = id
	s.CreatedAt = ts
	s.UpdatedAt = ts
	return nil
}

func (db *DB) GetChatSession(ctx context.Context, id int64) (*models.ChatSession, error) {
	s, err := scanChatSession(db.queryRow(ctx, db, `SELECT `+chatSessionColumns+` FROM chat_sessions WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get chat session %d: %w", id, notFound(err))
	}
	return s, nil
}

// GetOpenChatSession returns the user's most recent session that is not closed.
func (db *DB) GetOpenChatSession(ctx context.Context, userID int64) (*models.ChatSession, error) {
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions
			WHERE user_id = ? AND status <> ? ORDER BY created_at DESC, id DESC LIMIT 1`
	s, err := scanChatSession(db.queryRow(ctx, db, query, userID, models.ChatClosed))
	if err != nil {
		return nil, fmt.Errorf("failed to get open chat session: %w", notFound(err))
	}
	return s, nil
}

// ListChatSessions returns sessions by recent activity; an empty status lists all.
func (db *DB) ListChatSessions(ctx context.Context, status string) ([]models.ChatSession, error) {
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := db.query(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		s, err := scanChatSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateChatSession stores status and assignment.
func (db *DB) UpdateChatSession(ctx context.Context, id int64, status string, assignedAdminID *int64) (*models.ChatSession, error) {
	query := `UPDATE chat_sessions SET status = ?, assigned_admin_id = ?, updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, db, query, status, assignedAdminID, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update chat session: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}
	return db.GetChatSession(ctx, id)
}

// CreateChatMessage appends a message and bumps last_message_at on the session.
func (db *DB) CreateChatMessage(ctx context.Context, m *models.ChatMessage) (*models.ChatSession, error) {
	var session *models.ChatSession
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := db.exec(ctx, tx, `UPDATE chat_sessions SET last_message_at = ?, updated_at = ? WHERE id = ? AND status <> ?`,
			ts, ts, m.SessionID, models.ChatClosed)
		if err != nil {
			return fmt.Errorf("failed to touch chat session: %w", err)
		}
		if err := requireRow(res, ErrNotFound); err != nil {
			return fmt.Errorf("open chat session %d: %w", m.SessionID, err)
		}

		query := `INSERT INTO chat_messages (session_id, sender_id, sender_role, content, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`
		id, err := db.insert(ctx, tx, query, m.SessionID, m.SenderID, m.SenderRole, m.Content, ts, ts)
		if err != nil {
			return fmt.Errorf("failed to create chat message: %w", err)
		}
		m.ID = id
		m.CreatedAt = ts
		m.UpdatedAt = ts

		session, err = scanChatSession(db.queryRow(ctx, tx, `SELECT `+chatSessionColumns+` FROM chat_sessions WHERE id = ?`, m.SessionID))
		if err != nil {
			return fmt.Errorf("failed to reload chat session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (db *DB) ListChatMessages(ctx context.Context, sessionID int64) ([]models.ChatMessage, error) {
	query := `SELECT ` + chatMsgColumns + ` FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.query(ctx, db, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderID, &m.SenderRole, &m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
