package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/events"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CatalogService covers the service catalog and the public forms: contact
// messages, pickup/delivery scheduling and complaints.
type CatalogService struct {
	repo     domain.CatalogRepository
	bookings domain.BookingRepository
	broadcaster
}

func NewCatalogService(repo domain.CatalogRepository, bookings domain.BookingRepository, changes domain.ChangePublisher, eventBus domain.EventPublisher, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:        repo,
		bookings:    bookings,
		broadcaster: broadcaster{changes: changes, events: eventBus, logger: logger},
	}
}

// ListServices returns the catalog. Only admins see inactive entries.
func (s *CatalogService) ListServices(ctx context.Context, actor Actor, includeInactive bool) ([]models.Service, error) {
	return s.repo.ListServices(ctx, !(includeInactive && actor.IsAdmin()))
}

func (s *CatalogService) CreateService(ctx context.Context, actor Actor, svc *models.Service) error {
	if err := actor.requireAdmin(); err != nil {
		return err
	}
	if err := validateService(svc); err != nil {
		return err
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return invalid("is already used", "slug")
		}
		return err
	}
	s.change(models.TableServices, models.ChangeInsert, *svc)
	return nil
}

func (s *CatalogService) UpdateService(ctx context.Context, actor Actor, id int64, patch models.ServicePatch) (*models.Service, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(svc)
	if err := validateService(svc); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	s.change(models.TableServices, models.ChangeUpdate, *svc)
	return svc, nil
}

func validateService(svc *models.Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	svc.Slug = strings.TrimSpace(svc.Slug)
	if err := requireFields("name", svc.Name, "slug", svc.Slug, "category", svc.Category); err != nil {
		return err
	}
	if !slugPattern.MatchString(svc.Slug) {
		return invalid("must be lowercase words joined by dashes", "slug")
	}
	if svc.BasePrice < 0 {
		return invalid("must not be negative", "base_price")
	}
	return nil
}

// SubmitContact stores a contact form message from anyone.
func (s *CatalogService) SubmitContact(ctx context.Context, m *models.ContactMessage) error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = normalizeEmail(m.Email)
	m.Message = strings.TrimSpace(m.Message)
	if err := requireFields("name", m.Name, "email", m.Email, "message", m.Message); err != nil {
		return err
	}
	if !validEmail(m.Email) {
		return invalid("is not a valid address", "email")
	}
	m.Status = models.ContactNew

	if err := s.repo.CreateContactMessage(ctx, m); err != nil {
		return err
	}
	s.change(models.TableContactMessages, models.ChangeInsert, *m)
	subject := m.Subject
	if subject == "" {
		subject = "Contact form"
	}
	s.event(events.EventContactReceived, events.NoticePayload{
		Table:   models.TableContactMessages,
		ID:      m.ID,
		Email:   m.Email,
		Title:   subject + " from " + m.Name,
		Message: m.Message,
	})
	return nil
}

func (s *CatalogService) ListContactMessages(ctx context.Context, actor Actor) ([]models.ContactMessage, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.ListContactMessages(ctx)
}

func (s *CatalogService) UpdateContactStatus(ctx context.Context, actor Actor, id int64, status string) (*models.ContactMessage, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if !models.IsValidContactStatus(status) {
		return nil, invalid("is unknown", "status")
	}
	m, err := s.repo.UpdateContactMessageStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.change(models.TableContactMessages, models.ChangeUpdate, *m)
	return m, nil
}

// SchedulePickup books a pickup for one of the actor's bookings.
func (s *CatalogService) SchedulePickup(ctx context.Context, actor Actor, p *models.PickupDelivery) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	if p.BookingID == 0 {
		return invalid("required", "booking_id")
	}
	if err := requireFields("pickup_date", p.PickupDate, "pickup_address", p.PickupAddress); err != nil {
		return err
	}
	if err := validDate("pickup_date", p.PickupDate); err != nil {
		return err
	}
	if p.DeliveryDate != "" {
		if err := validDate("delivery_date", p.DeliveryDate); err != nil {
			return err
		}
		if p.DeliveryDate < p.PickupDate {
			return invalid("must not be before pickup_date", "delivery_date")
		}
	}

	booking, err := s.bookings.GetBooking(ctx, p.BookingID)
	if err != nil {
		return err
	}
	if !actor.Owns(booking.UserID) {
		return database.ErrNotFound
	}
	p.UserID = booking.UserID
	p.Status = models.PickupScheduled

	if err := s.repo.CreatePickupDelivery(ctx, p); err != nil {
		return err
	}
	s.change(models.TablePickupDeliveries, models.ChangeInsert, *p)
	s.event(events.EventPickupScheduled, events.NoticePayload{
		Table:   models.TablePickupDeliveries,
		ID:      p.ID,
		UserID:  p.UserID,
		Email:   actor.Email,
		Title:   fmt.Sprintf("Pickup for booking #%d", p.BookingID),
		Message: fmt.Sprintf("%s at %s", p.PickupDate, p.PickupAddress),
	})
	return nil
}

func (s *CatalogService) ListPickups(ctx context.Context, actor Actor) ([]models.PickupDelivery, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	userID := actor.UserID
	if actor.IsAdmin() {
		userID = 0
	}
	return s.repo.ListPickupDeliveries(ctx, userID)
}

func (s *CatalogService) UpdatePickupStatus(ctx context.Context, actor Actor, id int64, status, deliveryDate string) (*models.PickupDelivery, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if !models.IsValidPickupStatus(status) {
		return nil, invalid("is unknown", "status")
	}
	if deliveryDate != "" {
		if err := validDate("delivery_date", deliveryDate); err != nil {
			return nil, err
		}
	}
	p, err := s.repo.UpdatePickupStatus(ctx, id, status, deliveryDate)
	if err != nil {
		return nil, err
	}
	s.change(models.TablePickupDeliveries, models.ChangeUpdate, *p)
	return p, nil
}

func (s *CatalogService) FileComplaint(ctx context.Context, actor Actor, c *models.UserComplaint) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	c.Subject = strings.TrimSpace(c.Subject)
	c.Description = strings.TrimSpace(c.Description)
	if err := requireFields("subject", c.Subject, "description", c.Description); err != nil {
		return err
	}
	if c.BookingID != nil {
		booking, err := s.bookings.GetBooking(ctx, *c.BookingID)
		if err != nil {
			return err
		}
		if booking.UserID != actor.UserID {
			return database.ErrNotFound
		}
	}
	c.UserID = actor.UserID
	c.Status = models.ComplaintOpen

	if err := s.repo.CreateComplaint(ctx, c); err != nil {
		return err
	}
	s.change(models.TableUserComplaints, models.ChangeInsert, *c)
	s.event(events.EventComplaintFiled, events.NoticePayload{
		Table:   models.TableUserComplaints,
		ID:      c.ID,
		UserID:  c.UserID,
		Email:   actor.Email,
		Title:   "Complaint: " + c.Subject,
		Message: c.Description,
	})
	return nil
}

func (s *CatalogService) ListComplaints(ctx context.Context, actor Actor) ([]models.UserComplaint, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	userID := actor.UserID
	if actor.IsAdmin() {
		userID = 0
	}
	return s.repo.ListComplaints(ctx, userID)
}

func (s *CatalogService) UpdateComplaintStatus(ctx context.Context, actor Actor, id int64, status string) (*models.UserComplaint, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if !models.IsValidComplaintStatus(status) {
		return nil, invalid("is unknown", "status")
	}
	c, err := s.repo.UpdateComplaintStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.change(models.TableUserComplaints, models.ChangeUpdate, *c)
	return c, nil
}

func validDate(field, value string) error {
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return invalid("must be YYYY-MM-DD", field)
	}
	return nil
}
