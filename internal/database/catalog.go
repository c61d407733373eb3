package database

import (
	"context"
	"fmt"

	"sparkclean/internal/models"
)

const (
	serviceColumns   = `id, name, slug, category, description, base_price, is_active, created_at, updated_at`
	contactColumns   = `id, name, email, phone, subject, message, status, created_at, updated_at`
	pickupColumns    = `id, booking_id, user_id, pickup_date, delivery_date, pickup_address, status, created_at, updated_at`
	complaintColumns = `id, user_id, booking_id, subject, description, status, created_at, updated_at`
	galleryColumns   = `id, title, storage_path, content_type, created_at, updated_at`
)

func scanService(row scanner) (*models.Service, error) {
	var s models.Service
	if err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.Category, &s.Description, &s.BasePrice, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	query := `INSERT INTO services (name, slug, category, description, base_price, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	ts := now()
	id, err := db.insert(ctx, db, query, s.Name, s.Slug, s.Category, s.Description, s.BasePrice, s.IsActive, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create service: %w", err)
	}
	s.ID = id
	s.CreatedAt = ts
	s.UpdatedAt = ts
	return nil
}

func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	s, err := scanService(db.queryRow(ctx, db, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get service %d: %w", id, notFound(err))
	}
	return s, nil
}

func (db *DB) UpdateService(ctx context.Context, s *models.Service) error {
	query := `UPDATE services SET name = ?, slug = ?, category = ?, description = ?, base_price = ?, is_active = ?, updated_at = ?
			WHERE id = ?`
	ts := now()
	res, err := db.exec(ctx, db, query, s.Name, s.Slug, s.Category, s.Description, s.BasePrice, s.IsActive, ts, s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update service: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return err
	}
	s.UpdatedAt = ts
	return nil
}

func (db *DB) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	var args []any
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY category ASC, name ASC`

	rows, err := db.query(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, *s)
	}
	return services, rows.Err()
}

func scanContact(row scanner) (*models.ContactMessage, error) {
	var m models.ContactMessage
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Message, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	query := `INSERT INTO contact_messages (name, email, phone, subject, message, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if m.Status == "" {
		m.Status = models.ContactNew
	}
	ts := now()
	id, err := db.insert(ctx, db, query, m.Name, m.Email, m.Phone, m.Subject, m.Message, m.Status, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	m.ID = id
	m.CreatedAt = ts
	m.UpdatedAt = ts
	return nil
}

func (db *DB) ListContactMessages(ctx context.Context) ([]models.ContactMessage, error) {
	rows, err := db.query(ctx, db, `SELECT `+contactColumns+` FROM contact_messages ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ContactMessage
	for rows.Next() {
		m, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (db *DB) UpdateContactMessageStatus(ctx context.Context, id int64, status string) (*models.ContactMessage, error) {
	res, err := db.exec(ctx, db, `UPDATE contact_messages SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact message: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}
	m, err := scanContact(db.queryRow(ctx, db, `SELECT `+contactColumns+` FROM contact_messages WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get contact message %d: %w", id, notFound(err))
	}
	return m, nil
}

func scanPickup(row scanner) (*models.PickupDelivery, error) {
	var p models.PickupDelivery
	if err := row.Scan(&p.ID, &p.BookingID, &p.UserID, &p.PickupDate, &p.DeliveryDate, &p.PickupAddress, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) CreatePickupDelivery(ctx context.Context, p *models.PickupDelivery) error {
	query := `INSERT INTO pickup_deliveries (booking_id, user_id, pickup_date, delivery_date, pickup_address, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if p.Status == "" {
		p.Status = models.PickupScheduled
	}
	ts := now()
	id, err := db.insert(ctx, db, query, p.BookingID, p.UserID, p.PickupDate, p.DeliveryDate, p.PickupAddress, p.Status, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create pickup: %w", err)
	}
	p.ID = id
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

func (db *DB) GetPickupDelivery(ctx context.Context, id int64) (*models.PickupDelivery, error) {
	p, err := scanPickup(db.queryRow(ctx, db, `SELECT `+pickupColumns+` FROM pickup_deliveries WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get pickup %d: %w", id, notFound(err))
	}
	return p, nil
}

// ListPickupDeliveries lists pickups by pickup date; userID 0 lists all.
func (db *DB) ListPickupDeliveries(ctx context.Context, userID int64) ([]models.PickupDelivery, error) {
	query := `SELECT ` + pickupColumns + ` FROM pickup_deliveries`
	var args []any
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY pickup_date DESC, id DESC`

	rows, err := db.query(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pickups: %w", err)
	}
	defer rows.Close()

	var pickups []models.PickupDelivery
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pickup: %w", err)
		}
		pickups = append(pickups, *p)
	}
	return pickups, rows.Err()
}

func (db *DB) UpdatePickupStatus(ctx context.Context, id int64, status, deliveryDate string) (*models.PickupDelivery, error) {
	query := `UPDATE pickup_deliveries SET status = ?, delivery_date = COALESCE(NULLIF(?, ''), delivery_date), updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, db, query, status, deliveryDate, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update pickup: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}
	return db.GetPickupDelivery(ctx, id)
}

func scanComplaint(row scanner) (*models.UserComplaint, error) {
	var c models.UserComplaint
	if err := row.Scan(&c.ID, &c.UserID, &c.BookingID, &c.Subject, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) CreateComplaint(ctx context.Context, c *models.UserComplaint) error {
	query := `INSERT INTO user_complaints (user_id, booking_id, subject, description, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	if c.Status == "" {
		c.Status = models.ComplaintOpen
	}
	ts := now()
	id, err := db.insert(ctx, db, query, c.UserID, c.BookingID, c.Subject, c.Description, c.Status, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	c.ID = id
	c.CreatedAt = ts
	c.UpdatedAt = ts
	return nil
}

func (db *DB) GetComplaint(ctx context.Context, id int64) (*models.UserComplaint, error) {
	c, err := scanComplaint(db.queryRow(ctx, db, `SELECT `+complaintColumns+` FROM user_complaints WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get complaint %d: %w", id, notFound(err))
	}
	return c, nil
}

// ListComplaints returns complaints newest first; userID 0 lists all.
func (db *DB) ListComplaints(ctx context.Context, userID int64) ([]models.UserComplaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM user_complaints`
	var args []any
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.query(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	var complaints []models.UserComplaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, *c)
	}
	return complaints, rows.Err()
}

func (db *DB) UpdateComplaintStatus(ctx context.Context, id int64, status string) (*models.UserComplaint, error) {
	res, err := db.exec(ctx, db, `UPDATE user_complaints SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update complaint: %w", err)
	}
	if err := requireRow(res, ErrNotFound); err != nil {
		return nil, err
	}
	return db.GetComplaint(ctx, id)
}

func scanGalleryImage(row scanner) (*models.GalleryImage, error) {
	var g models.GalleryImage
	if err := row.Scan(&g.ID, &g.Title, &g.StoragePath, &g.ContentType, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (db *DB) CreateGalleryImage(ctx context.Context, g *models.GalleryImage) error {
	query := `INSERT INTO gallery_images (title, storage_path, content_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	ts := now()
	id, err := db.insert(ctx, db, query, g.Title, g.StoragePath, g.ContentType, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create gallery image: %w", err)
	}
	g.ID = id
	g.CreatedAt = ts
	g.UpdatedAt = ts
	return nil
}

func (db *DB) GetGalleryImage(ctx context.Context, id int64) (*models.GalleryImage, error) {
	g, err := scanGalleryImage(db.queryRow(ctx, db, `SELECT `+galleryColumns+` FROM gallery_images WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get gallery image %d: %w", id, notFound(err))
	}
	return g, nil
}

func (db *DB) ListGalleryImages(ctx context.Context) ([]models.GalleryImage, error) {
	rows, err := db.query(ctx, db, `SELECT `+galleryColumns+` FROM gallery_images ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery images: %w", err)
	}
	defer rows.Close()

	var images []models.GalleryImage
	for rows.Next() {
		g, err := scanGalleryImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gallery image: %w", err)
		}
		images = append(images, *g)
	}
	return images, rows.Err()
}

func (db *DB) DeleteGalleryImage(ctx context.Context, id int64) error {
	res, err := db.exec(ctx, db, `DELETE FROM gallery_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gallery image: %w", err)
	}
	return requireRow(res, ErrNotFound)
}
