package models

import "time"

type Booking struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	ServiceType         string    `json:"service_type"`
	BookingDate         string    `json:"booking_date"`
	BookingTime         string    `json:"booking_time"`
	Address             string    `json:"address"`
	Status              string    `json:"status"`
	TotalAmount         float64   `json:"total_amount"`
	EstimatedPrice      float64   `json:"estimated_price"`
	SpecialInstructions string    `json:"special_instructions"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Version             int64     `json:"version"`
}

func (b Booking) RecordID() int64            { return b.ID }
func (b Booking) RecordUpdatedAt() time.Time { return b.UpdatedAt }

// BookingPatch is a partial booking update; nil fields are left untouched.
type BookingPatch struct {
	ServiceType         *string  `json:"service_type,omitempty"`
	BookingDate         *string  `json:"booking_date,omitempty"`
	BookingTime         *string  `json:"booking_time,omitempty"`
	Address             *string  `json:"address,omitempty"`
	Status              *string  `json:"status,omitempty"`
	TotalAmount         *float64 `json:"total_amount,omitempty"`
	SpecialInstructions *string  `json:"special_instructions,omitempty"`
}

// Apply copies the set fields of the patch onto the booking.
func (p BookingPatch) Apply(b *Booking) {
	if p.ServiceType != nil {
		b.ServiceType = *p.ServiceType
	}
	if p.BookingDate != nil {
		b.BookingDate = *p.BookingDate
	}
	if p.BookingTime != nil {
		b.BookingTime = *p.BookingTime
	}
	if p.Address != nil {
		b.Address = *p.Address
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.TotalAmount != nil {
		b.TotalAmount = *p.TotalAmount
	}
	if p.SpecialInstructions != nil {
		b.SpecialInstructions = *p.SpecialInstructions
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p BookingPatch) IsEmpty() bool {
	return p.ServiceType == nil && p.BookingDate == nil && p.BookingTime == nil &&
		p.Address == nil && p.Status == nil && p.TotalAmount == nil && p.SpecialInstructions == nil
}

// bookingTransitions lists the statuses reachable from each status.
var bookingTransitions = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
}

// IsValidBookingStatus reports whether status is a known booking status.
func IsValidBookingStatus(status string) bool {
	_, ok := bookingTransitions[status]
	return ok
}

// CanTransitionBooking reports whether a booking may move from one status to
// another. Staying in the same status is always allowed.
func CanTransitionBooking(from, to string) bool {
	if from == to {
		return IsValidBookingStatus(to)
	}
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InspectionRooms is the room breakdown of a property inspection request.
type InspectionRooms struct {
	Kitchens    int `json:"kitchens"`
	Bathrooms   int `json:"bathrooms"`
	Bedrooms    int `json:"bedrooms"`
	LivingRooms int `json:"living_rooms"`
}

func (r InspectionRooms) Total() int {
	return r.Kitchens + r.Bathrooms + r.Bedrooms + r.LivingRooms
}

// InspectionRequest is the property inspection booking form.
type InspectionRequest struct {
	Rooms       InspectionRooms `json:"rooms"`
	Urgency     string          `json:"urgency"`
	BookingDate string          `json:"booking_date"`
	BookingTime string          `json:"booking_time"`
	Address     string          `json:"address"`
	Notes       string          `json:"notes"`
}

// Stats is the admin overview.
type Stats struct {
	TotalBookings      int     `json:"total_bookings"`
	PendingBookings    int     `json:"pending_bookings"`
	ConfirmedBookings  int     `json:"confirmed_bookings"`
	InProgressBookings int     `json:"in_progress_bookings"`
	CompletedBookings  int     `json:"completed_bookings"`
	CancelledBookings  int     `json:"cancelled_bookings"`
	TotalRevenue       float64 `json:"total_revenue"`
	TotalUsers         int     `json:"total_users"`
	OpenTickets        int     `json:"open_tickets"`
	NewMessages        int     `json:"new_messages"`
}

// BookingFilter narrows booking listings. Zero values match everything.
type BookingFilter struct {
	UserID   int64
	Status   string
	FromDate string
	ToDate   string
	Limit    int
}
