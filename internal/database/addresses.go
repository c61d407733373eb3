package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sparkclean/internal/models"
)

const addressColumns = `id, user_id, label, street, city, postal_code, is_default, created_at, updated_at`

func scanAddress(row scanner) (*models.Address, error) {
	var a models.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Street, &a.City, &a.PostalCode, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAddress inserts an address. The first address of a user becomes the
// default; a new address flagged as default takes the flag from the others.
// The returned slice holds the other rows whose default flag was cleared.
func (db *DB) CreateAddress(ctx context.Context, addr *models.Address) ([]models.Address, error) {
	var changed []models.Address
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := db.queryRow(ctx, tx, `SELECT COUNT(*) FROM addresses WHERE user_id = ?`, addr.UserID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count addresses: %w", err)
		}
		if count == 0 {
			addr.IsDefault = true
		}

		ts := now()
		if addr.IsDefault && count > 0 {
			cleared, err := db.clearDefault(ctx, tx, addr.UserID, 0, ts)
			if err != nil {
				return err
			}
			changed = append(changed, cleared...)
		}

		query := `INSERT INTO addresses (user_id, label, street, city, postal_code, is_default, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		id, err := db.insert(ctx, tx, query, addr.UserID, addr.Label, addr.Street, addr.City, addr.PostalCode, addr.IsDefault, ts, ts)
		if err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		addr.ID = id
		addr.CreatedAt = ts
		addr.UpdatedAt = ts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (db *DB) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	a, err := scanAddress(db.queryRow(ctx, db, `SELECT `+addressColumns+` FROM addresses WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get address %d: %w", id, notFound(err))
	}
	return a, nil
}

func (db *DB) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	return db.listAddresses(ctx, db, userID)
}

func (db *DB) listAddresses(ctx context.Context, q querier, userID int64) ([]models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = ? ORDER BY is_default DESC, created_at ASC, id ASC`
	rows, err := db.query(ctx, q, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addrs []models.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addrs = append(addrs, *a)
	}
	return addrs, rows.Err()
}

// UpdateAddress rewrites the descriptive columns. The default flag is only
// changed through SetDefaultAddress.
func (db *DB) UpdateAddress(ctx context.Context, addr *models.Address) error {
	query := `UPDATE addresses SET label = ?, street = ?, city = ?, postal_code = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`
	ts := now()
	res, err := db.exec(ctx, db, query, addr.Label, addr.Street, addr.City, addr.PostalCode, ts, addr.ID, addr.UserID)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return err
	}
	addr.UpdatedAt = ts
	return nil
}

// SetDefaultAddress makes id the only default address of the user in one
// transaction and returns the user's addresses afterwards.
func (db *DB) SetDefaultAddress(ctx context.Context, userID, id int64) ([]models.Address, error) {
	var addrs []models.Address
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		if _, err := db.clearDefault(ctx, tx, userID, id, ts); err != nil {
			return err
		}
		res, err := db.exec(ctx, tx, `UPDATE addresses SET is_default = ?, updated_at = ? WHERE id = ? AND user_id = ? AND is_default = ?`,
			true, ts, id, userID, false)
		if err != nil {
			return fmt.Errorf("failed to set default address: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Either already default or not this user's address.
			var exists int
			if err := db.queryRow(ctx, tx, `SELECT COUNT(*) FROM addresses WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check address: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("address %d: %w", id, ErrNotFound)
			}
		}
		addrs, err = db.listAddresses(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// DeleteAddress removes an address. When the default is removed the oldest
// remaining address is promoted; the promoted row is returned if any.
func (db *DB) DeleteAddress(ctx context.Context, userID, id int64) (*models.Address, *models.Address, error) {
	var deleted, promoted *models.Address
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		a, err := scanAddress(db.queryRow(ctx, tx, `SELECT `+addressColumns+` FROM addresses WHERE id = ? AND user_id = ?`, id, userID))
		if err != nil {
			return fmt.Errorf("failed to get address %d: %w", id, notFound(err))
		}
		if _, err := db.exec(ctx, tx, `DELETE FROM addresses WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete address: %w", err)
		}
		deleted = a
		if !a.IsDefault {
			return nil
		}

		rest, err := db.listAddresses(ctx, tx, userID)
		if err != nil || len(rest) == 0 {
			return err
		}
		next := rest[0]
		ts := now()
		if _, err := db.exec(ctx, tx, `UPDATE addresses SET is_default = ?, updated_at = ? WHERE id = ?`, true, ts, next.ID); err != nil {
			return fmt.Errorf("failed to promote address: %w", err)
		}
		next.IsDefault = true
		next.UpdatedAt = ts
		promoted = &next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return deleted, promoted, nil
}

// clearDefault unsets the default flag on the user's addresses except keep
// and returns the rows it changed.
func (db *DB) clearDefault(ctx context.Context, tx *sql.Tx, userID, keep int64, ts time.Time) ([]models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = ? AND is_default = ? AND id <> ?`
	rows, err := db.query(ctx, tx, query, userID, true, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to find default addresses: %w", err)
	}
	var cleared []models.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		cleared = append(cleared, *a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := db.exec(ctx, tx, `UPDATE addresses SET is_default = ?, updated_at = ? WHERE user_id = ? AND is_default = ? AND id <> ?`,
		false, ts, userID, true, keep); err != nil {
		return nil, fmt.Errorf("failed to clear default address: %w", err)
	}
	for i := range cleared {
		cleared[i].IsDefault = false
		cleared[i].UpdatedAt = ts
	}
	return cleared, nil
}
