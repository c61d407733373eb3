package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sparkclean/internal/models"
)

const bookingColumns = `id, user_id, service_type, booking_date, booking_time, address, status,
	total_amount, estimated_price, special_instructions, created_at, updated_at, version`

func scanBooking(row scanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.ServiceType, &b.BookingDate, &b.BookingTime, &b.Address, &b.Status,
		&b.TotalAmount, &b.EstimatedPrice, &b.SpecialInstructions, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				user_id, service_type, booking_date, booking_time, address, status,
				total_amount, estimated_price, special_instructions, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	ts := now()
	id, err := db.insert(ctx, db, query,
		booking.UserID,
		booking.ServiceType,
		booking.BookingDate,
		booking.BookingTime,
		booking.Address,
		booking.Status,
		booking.TotalAmount,
		booking.EstimatedPrice,
		booking.SpecialInstructions,
		ts,
		ts,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = ts
	booking.UpdatedAt = ts
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return db.getBooking(ctx, db, id)
}

func (db *DB) getBooking(ctx context.Context, q querier, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.queryRow(ctx, q, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, notFound(err))
	}
	return b, nil
}

// ListBookings returns bookings newest first.
func (db *DB) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.FromDate != "" {
		where = append(where, "booking_date >= ?")
		args = append(args, f.FromDate)
	}
	if f.ToDate != "" {
		where = append(where, "booking_date <= ?")
		args = append(args, f.ToDate)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.query(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// UpdateBooking writes the mutable columns of booking if the stored version
// still equals booking.Version. On success the version is bumped in place.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings SET
				service_type = ?, booking_date = ?, booking_time = ?, address = ?, status = ?,
				total_amount = ?, estimated_price = ?, special_instructions = ?,
				version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`
	ts := now()
	res, err := db.exec(ctx, db, query,
		booking.ServiceType,
		booking.BookingDate,
		booking.BookingTime,
		booking.Address,
		booking.Status,
		booking.TotalAmount,
		booking.EstimatedPrice,
		booking.SpecialInstructions,
		ts,
		booking.ID,
		booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if err := requireRow(res, ErrConcurrentModification); err != nil {
		return db.explainMiss(ctx, booking.ID, err)
	}
	booking.Version++
	booking.UpdatedAt = ts
	return nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error) {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	res, err := db.exec(ctx, db, query, status, now(), id, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if err := requireRow(res, ErrConcurrentModification); err != nil {
		return nil, db.explainMiss(ctx, id, err)
	}
	return db.GetBooking(ctx, id)
}

// UpdateInspectionPrice sets the quoted price of a booking. Laundry bookings
// are priced elsewhere and are never touched; for them ErrPriceLocked is
// returned.
func (db *DB) UpdateInspectionPrice(ctx context.Context, id int64, price float64) (*models.Booking, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(models.LaundryServiceTypes)), ", ")
	query := `UPDATE bookings SET total_amount = ?, estimated_price = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND service_type NOT IN (` + placeholders + `)`

	args := []any{price, price, now(), id}
	for _, t := range models.LaundryServiceTypes {
		args = append(args, t)
	}

	res, err := db.exec(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update inspection price: %w", err)
	}
	if err := requireRow(res, ErrPriceLocked); err != nil {
		return nil, db.explainMiss(ctx, id, err)
	}
	return db.GetBooking(ctx, id)
}

// DeleteBooking removes the booking and returns the removed row.
func (db *DB) DeleteBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var deleted *models.Booking
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		b, err := db.getBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := db.exec(ctx, tx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}
		deleted = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// explainMiss turns a zero-row update into ErrNotFound when the booking does
// not exist at all.
func (db *DB) explainMiss(ctx context.Context, id int64, miss error) error {
	var exists int
	err := db.queryRow(ctx, db, `SELECT COUNT(*) FROM bookings WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check booking %d: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return miss
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
