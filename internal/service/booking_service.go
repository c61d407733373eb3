package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/events"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo domain.BookingRepository
	broadcaster
}

func NewBookingService(repo domain.BookingRepository, changes domain.ChangePublisher, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:        repo,
		broadcaster: broadcaster{changes: changes, events: eventBus, logger: logger},
	}
}

// ValidateBooking checks the required booking fields. Nothing is written when
// it fails.
func ValidateBooking(b *models.Booking) error {
	if err := requireFields(
		"service_type", b.ServiceType,
		"booking_date", b.BookingDate,
		"booking_time", b.BookingTime,
		"address", b.Address,
	); err != nil {
		return err
	}
	if _, err := time.Parse(models.DateLayout, b.BookingDate); err != nil {
		return invalid("must be YYYY-MM-DD", "booking_date")
	}
	if b.TotalAmount < 0 || b.EstimatedPrice < 0 {
		return invalid("must not be negative", "total_amount")
	}
	return nil
}

func (s *BookingService) CreateBooking(ctx context.Context, actor Actor, booking *models.Booking) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	booking.ServiceType = strings.TrimSpace(booking.ServiceType)
	booking.Address = strings.TrimSpace(booking.Address)
	if err := ValidateBooking(booking); err != nil {
		return err
	}

	if !actor.IsAdmin() || booking.UserID == 0 {
		booking.UserID = actor.UserID
	}
	switch {
	case booking.Status == "":
		booking.Status = models.StatusPending
	case !actor.IsAdmin() && booking.Status != models.StatusPending:
		return invalid("must be pending for new bookings", "status")
	case !models.IsValidBookingStatus(booking.Status):
		return invalid("is unknown", "status")
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return err
	}

	s.change(models.TableBookings, models.ChangeInsert, *booking)
	s.publishEvent(events.EventBookingCreated, *booking, "", actor)
	return nil
}

// GetBooking returns the booking if the actor may see it. Bookings of other
// customers are reported as not found.
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, id int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(b.UserID) {
		return nil, database.ErrNotFound
	}
	return b, nil
}

func (s *BookingService) ListBookings(ctx context.Context, actor Actor, filter models.BookingFilter) ([]models.Booking, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	return s.repo.ListBookings(ctx, filter)
}

// UpdateBooking applies a partial update. Status changes follow the booking
// lifecycle; patching a booking to the status it already has is a no-op.
// Customers may edit their pending bookings and cancel them; everything else
// is for admins.
func (s *BookingService) UpdateBooking(ctx context.Context, actor Actor, id int64, patch models.BookingPatch) (*models.Booking, error) {
	current, err := s.GetBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && *patch.Status == current.Status {
		patch.Status = nil
	}
	if patch.IsEmpty() {
		return current, nil
	}

	if patch.Status != nil {
		if !models.IsValidBookingStatus(*patch.Status) {
			return nil, invalid("is unknown", "status")
		}
		if !models.CanTransitionBooking(current.Status, *patch.Status) {
			return nil, ErrInvalidTransition
		}
		if !actor.IsAdmin() && *patch.Status != models.StatusCancelled {
			return nil, ErrForbidden
		}
	}
	onlyStatus := patch.Status != nil && (models.BookingPatch{Status: patch.Status}) == patch
	if !actor.IsAdmin() && !onlyStatus {
		if current.Status != models.StatusPending {
			return nil, ErrForbidden
		}
		if patch.TotalAmount != nil {
			return nil, ErrForbidden
		}
	}

	var updated *models.Booking
	if onlyStatus {
		updated, err = s.repo.UpdateBookingStatusWithVersion(ctx, id, current.Version, *patch.Status)
		if err != nil {
			return nil, err
		}
	} else {
		next := *current
		patch.Apply(&next)
		if err := ValidateBooking(&next); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateBooking(ctx, &next); err != nil {
			return nil, err
		}
		updated = &next
	}

	s.change(models.TableBookings, models.ChangeUpdate, *updated)
	if updated.Status != current.Status {
		s.publishEvent(events.EventBookingStatusChanged, *updated, current.Status, actor)
	}
	return updated, nil
}

func (s *BookingService) DeleteBooking(ctx context.Context, actor Actor, id int64) error {
	if _, err := s.GetBooking(ctx, actor, id); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteBooking(ctx, id)
	if err != nil {
		return err
	}
	s.change(models.TableBookings, models.ChangeDelete, *deleted)
	s.publishEvent(events.EventBookingDeleted, *deleted, deleted.Status, actor)
	return nil
}

// UpdateInspectionPrice lets an admin quote a price. Laundry bookings keep
// their desk price and yield database.ErrPriceLocked.
func (s *BookingService) UpdateInspectionPrice(ctx context.Context, actor Actor, id int64, price float64) (*models.Booking, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, invalid("must not be negative", "price")
	}
	updated, err := s.repo.UpdateInspectionPrice(ctx, id, price)
	if err != nil {
		return nil, err
	}
	s.change(models.TableBookings, models.ChangeUpdate, *updated)
	s.publishEvent(events.EventInspectionPriceSet, *updated, "", actor)
	return updated, nil
}

// BookInspection prices a property inspection and books it for the actor.
func (s *BookingService) BookInspection(ctx context.Context, actor Actor, req models.InspectionRequest) (*models.Booking, error) {
	price, err := EstimateInspection(req.Rooms, req.Urgency)
	if err != nil {
		return nil, err
	}
	booking := &models.Booking{
		ServiceType:         models.ServiceTypePropertyInspection,
		BookingDate:         req.BookingDate,
		BookingTime:         req.BookingTime,
		Address:             req.Address,
		TotalAmount:         price,
		EstimatedPrice:      price,
		SpecialInstructions: InspectionInstructions(req),
	}
	if err := s.CreateBooking(ctx, actor, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) publishEvent(eventType string, b models.Booking, previousStatus string, actor Actor) {
	changedBy := "customer"
	if actor.IsAdmin() {
		changedBy = "admin"
	}
	s.event(eventType, events.BookingEventPayload{
		BookingID:      b.ID,
		UserID:         b.UserID,
		ServiceType:    b.ServiceType,
		Status:         b.Status,
		PreviousStatus: previousStatus,
		BookingDate:    b.BookingDate,
		BookingTime:    b.BookingTime,
		Address:        b.Address,
		TotalAmount:    b.TotalAmount,
		ChangedBy:      changedBy,
		ChangedByID:    actor.UserID,
	})
}

// IsConflict reports whether err means the row changed underneath the caller.
func IsConflict(err error) bool {
	return errors.Is(err, database.ErrConcurrentModification)
}
