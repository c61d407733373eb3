package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sparkclean/internal/models"
)

const userColumns = `id, email, password_hash, full_name, phone, credits, role,
	email_confirmed, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Credits, &u.Role,
		&u.EmailConfirmed, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account. Emails are stored lower-cased and must be
// unique.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (
				email, password_hash, full_name, phone, credits, role,
				email_confirmed, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	ts := now()
	id, err := db.insert(ctx, db, query,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Phone,
		user.Credits,
		user.Role,
		user.EmailConfirmed,
		ts,
		ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	u, err := scanUser(db.queryRow(ctx, db, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, notFound(err))
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	u, err := scanUser(db.queryRow(ctx, db, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", notFound(err))
	}
	return u, nil
}

func (db *DB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`
	rows, err := db.query(ctx, db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserProfile applies the set fields of patch and returns the stored row.
func (db *DB) UpdateUserProfile(ctx context.Context, id int64, patch models.UserProfilePatch) (*models.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{now()}
	if patch.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, strings.TrimSpace(*patch.FullName))
	}
	if patch.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, strings.TrimSpace(*patch.Phone))
	}
	args = append(args, id)

	res, err := db.exec(ctx, db, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}
	return db.GetUserByID(ctx, id)
}

func (db *DB) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, db, query, passwordHash, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireRow(res, ErrNotFound)
}

func (db *DB) SetUserRole(ctx context.Context, id int64, role string) error {
	query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, db, query, role, now(), id)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	return requireRow(res, ErrNotFound)
}

func (db *DB) ConfirmUserEmail(ctx context.Context, id int64) error {
	query := `UPDATE users SET email_confirmed = ?, updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, db, query, true, now(), id)
	if err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	return requireRow(res, ErrNotFound)
}

// AdjustUserCredits adds delta to the user's credit balance.
func (db *DB) AdjustUserCredits(ctx context.Context, id int64, delta float64) (*models.User, error) {
	query := `UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, db, query, delta, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust credits: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}
	return db.GetUserByID(ctx, id)
}

// GetUserTotalSpent sums total_amount over the user's completed bookings.
func (db *DB) GetUserTotalSpent(ctx context.Context, userID int64) (float64, error) {
	query := `SELECT COALESCE(SUM(total_amount), 0) FROM bookings WHERE user_id = ? AND status = ?`
	var total float64
	if err := db.queryRow(ctx, db, query, userID, models.StatusCompleted).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get total spent: %w", err)
	}
	return total, nil
}

func (db *DB) CreateAuthToken(ctx context.Context, token *models.AuthToken) error {
	query := `INSERT INTO auth_tokens (token, user_id, purpose, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`
	ts := now()
	_, err := db.exec(ctx, db, query, token.Token, token.UserID, token.Purpose, token.ExpiresAt.UTC(), ts)
	if err != nil {
		return fmt.Errorf("failed to create auth token: %w", err)
	}
	token.CreatedAt = ts
	return nil
}

// ConsumeAuthToken marks a token as used and returns it. Unknown, expired,
// reused or wrong-purpose tokens yield ErrTokenInvalid.
func (db *DB) ConsumeAuthToken(ctx context.Context, token, purpose string, at time.Time) (*models.AuthToken, error) {
	var t models.AuthToken
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT token, user_id, purpose, expires_at, used_at, created_at FROM auth_tokens WHERE token = ?`
		err := db.queryRow(ctx, tx, query, token).Scan(
			&t.Token, &t.UserID, &t.Purpose, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("failed to get auth token: %w", err)
		}
		if t.Purpose != purpose || t.UsedAt != nil || !at.Before(t.ExpiresAt) {
			return ErrTokenInvalid
		}

		usedAt := at.UTC()
		res, err := db.exec(ctx, tx, `UPDATE auth_tokens SET used_at = ? WHERE token = ? AND used_at IS NULL`, usedAt, token)
		if err != nil {
			return fmt.Errorf("failed to consume auth token: %w", err)
		}
		if err := requireRow(res, ErrTokenInvalid); err != nil {
			return err
		}
		t.UsedAt = &usedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteExpiredAuthTokens removes tokens that expired before the cutoff.
func (db *DB) DeleteExpiredAuthTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.exec(ctx, db, `DELETE FROM auth_tokens WHERE expires_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListUnconfirmedUsers returns accounts that never confirmed their email,
// oldest first.
func (db *DB) ListUnconfirmedUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.query(ctx, db, `SELECT `+userColumns+` FROM users WHERE email_confirmed = ? ORDER BY created_at, id`, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list unconfirmed users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
