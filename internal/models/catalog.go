package models

import "time"

type Service struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	BasePrice   float64   `json:"base_price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s Service) RecordID() int64            { return s.ID }
func (s Service) RecordUpdatedAt() time.Time { return s.UpdatedAt }

type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m ContactMessage) RecordID() int64            { return m.ID }
func (m ContactMessage) RecordUpdatedAt() time.Time { return m.UpdatedAt }

type PickupDelivery struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	UserID        int64     `json:"user_id"`
	PickupDate    string    `json:"pickup_date"`
	DeliveryDate  string    `json:"delivery_date"`
	PickupAddress string    `json:"pickup_address"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p PickupDelivery) RecordID() int64            { return p.ID }
func (p PickupDelivery) RecordUpdatedAt() time.Time { return p.UpdatedAt }

type UserComplaint struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	BookingID   *int64    `json:"booking_id,omitempty"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c UserComplaint) RecordID() int64            { return c.ID }
func (c UserComplaint) RecordUpdatedAt() time.Time { return c.UpdatedAt }

type AdminNotification struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	ReferenceTable string    `json:"reference_table"`
	ReferenceID    int64     `json:"reference_id"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (n AdminNotification) RecordID() int64            { return n.ID }
func (n AdminNotification) RecordUpdatedAt() time.Time { return n.UpdatedAt }

type GalleryImage struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g GalleryImage) RecordID() int64            { return g.ID }
func (g GalleryImage) RecordUpdatedAt() time.Time { return g.UpdatedAt }

// IsValidPickupStatus reports whether s is a known pickup/delivery status.
func IsValidPickupStatus(s string) bool {
	switch s {
	case PickupScheduled, PickupPickedUp, PickupInCleaning, PickupOutForDelivery, PickupDelivered, PickupCancelled:
		return true
	}
	return false
}

// IsValidComplaintStatus reports whether s is a known complaint status.
func IsValidComplaintStatus(s string) bool {
	switch s {
	case ComplaintOpen, ComplaintInvestigating, ComplaintResolved, ComplaintDismissed:
		return true
	}
	return false
}

// ServicePatch is a partial catalog update; nil fields are left untouched.
type ServicePatch struct {
	Name        *string  `json:"name,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	BasePrice   *float64 `json:"base_price,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

func (p ServicePatch) Apply(s *Service) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.BasePrice != nil {
		s.BasePrice = *p.BasePrice
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
}

// IsValidContactStatus reports whether s is a known contact message status.
func IsValidContactStatus(s string) bool {
	switch s {
	case ContactNew, ContactRead, ContactReplied:
		return true
	}
	return false
}
