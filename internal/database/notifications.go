package database

import (
	"context"
	"fmt"

	"sparkclean/internal/models"
)

const notificationColumns = `id, type, title, message, reference_table, reference_id, is_read, created_at, updated_at`

func (db *DB) CreateAdminNotification(ctx context.Context, n *models.AdminNotification) error {
	query := `INSERT INTO admin_notifications (type, title, message, reference_table, reference_id, is_read, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	ts := now()
	id, err := db.insert(ctx, db, query, n.Type, n.Title, n.Message, n.ReferenceTable, n.ReferenceID, n.IsRead, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create admin notification: %w", err)
	}
	n.ID = id
	n.CreatedAt = ts
	n.UpdatedAt = ts
	return nil
}

// ListAdminNotifications returns the newest notifications first.
func (db *DB) ListAdminNotifications(ctx context.Context, unreadOnly bool, limit int) ([]models.AdminNotification, error) {
	query := `SELECT ` + notificationColumns + ` FROM admin_notifications`
	var args []any
	if unreadOnly {
		query += ` WHERE is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.query(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin notifications: %w", err)
	}
	defer rows.Close()

	var list []models.AdminNotification
	for rows.Next() {
		var n models.AdminNotification
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.ReferenceTable, &n.ReferenceID, &n.IsRead, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin notification: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (db *DB) MarkAdminNotificationRead(ctx context.Context, id int64) (*models.AdminNotification, error) {
	res, err := db.exec(ctx, db, `UPDATE admin_notifications SET is_read = ?, updated_at = ? WHERE id = ?`, true, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}

	var n models.AdminNotification
	err = db.queryRow(ctx, db, `SELECT `+notificationColumns+` FROM admin_notifications WHERE id = ?`, id).Scan(
		&n.ID, &n.Type, &n.Title, &n.Message, &n.ReferenceTable, &n.ReferenceID, &n.IsRead, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin notification %d: %w", id, notFound(err))
	}
	return &n, nil
}
