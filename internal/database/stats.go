package database

import (
	"context"
	"fmt"

	"sparkclean/internal/models"
)

// GetStats computes the admin overview. Revenue counts completed bookings only.
func (db *DB) GetStats(ctx context.Context) (*models.Stats, error) {
	var s models.Stats

	rows, err := db.query(ctx, db, `SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
			amount float64
		)
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan booking stats: %w", err)
		}
		s.TotalBookings += count
		switch status {
		case models.StatusPending:
			s.PendingBookings = count
		case models.StatusConfirmed:
			s.ConfirmedBookings = count
		case models.StatusInProgress:
			s.InProgressBookings = count
		case models.StatusCompleted:
			s.CompletedBookings = count
			s.TotalRevenue = amount
		case models.StatusCancelled:
			s.CancelledBookings = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&s.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&s.OpenTickets, `SELECT COUNT(*) FROM support_tickets WHERE status IN (?, ?)`, []any{models.TicketOpen, models.TicketInProgress}},
		{&s.NewMessages, `SELECT COUNT(*) FROM contact_messages WHERE status = ?`, []any{models.ContactNew}},
	}
	for _, c := range counts {
		if err := db.queryRow(ctx, db, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to get stats: %w", err)
		}
	}
	return &s, nil
}
