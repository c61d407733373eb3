package service

import (
	"context"
	"fmt"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/domain"
	"sparkclean/internal/events"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

const notificationTimeout = 10 * time.Second

// NotificationService turns domain events into admin notifications and
// queues the outbound side effects (telegram, admin email, sheets ledger).
type NotificationService struct {
	repo   domain.NotificationRepository
	tasks  domain.TaskEnqueuer
	config *config.Config
	broadcaster
}

func NewNotificationService(repo domain.NotificationRepository, tasks domain.TaskEnqueuer, changes domain.ChangePublisher, cfg *config.Config, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{
		repo:        repo,
		tasks:       tasks,
		config:      cfg,
		broadcaster: broadcaster{changes: changes, logger: logger},
	}
}

// Register subscribes the service to the events it handles.
func (s *NotificationService) Register(bus *events.EventBus) {
	for _, t := range []string{
		events.EventBookingCreated,
		events.EventBookingStatusChanged,
		events.EventBookingDeleted,
		events.EventInspectionPriceSet,
	} {
		bus.Subscribe(t, s.handleBooking)
	}
	for _, t := range []string{
		events.EventUserSignedUp,
		events.EventTicketOpened,
		events.EventChatMessageFromClient,
		events.EventContactReceived,
		events.EventComplaintFiled,
		events.EventPickupScheduled,
	} {
		bus.Subscribe(t, s.handleNotice)
	}
}

func (s *NotificationService) handleBooking(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("failed to decode %s: %w", event.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	var title, message string
	switch event.Type {
	case events.EventBookingCreated:
		title = fmt.Sprintf("New booking #%d", p.BookingID)
		message = fmt.Sprintf("%s on %s %s at %s", p.ServiceType, p.BookingDate, p.BookingTime, p.Address)
	case events.EventBookingStatusChanged:
		title = fmt.Sprintf("Booking #%d %s", p.BookingID, p.Status)
		message = fmt.Sprintf("%s -> %s by %s", p.PreviousStatus, p.Status, p.ChangedBy)
	case events.EventBookingDeleted:
		title = fmt.Sprintf("Booking #%d deleted", p.BookingID)
		message = fmt.Sprintf("%s on %s was deleted by %s", p.ServiceType, p.BookingDate, p.ChangedBy)
	case events.EventInspectionPriceSet:
		title = fmt.Sprintf("Booking #%d priced", p.BookingID)
		message = fmt.Sprintf("Quoted %.2f", p.TotalAmount)
	}

	if err := s.notify(ctx, event.Type, title, message, models.TableBookings, p.BookingID); err != nil {
		return err
	}

	taskType := models.TaskSheetsUpsert
	if event.Type == events.EventBookingDeleted {
		taskType = models.TaskSheetsDelete
	}
	return s.enqueue(ctx, taskType, p.BookingID, p)
}

func (s *NotificationService) handleNotice(event *events.Event) error {
	var p events.NoticePayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("failed to decode %s: %w", event.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	if err := s.notify(ctx, event.Type, p.Title, p.Message, p.Table, p.ID); err != nil {
		return err
	}

	// Contact messages and complaints also reach the admin mailboxes.
	if event.Type != events.EventContactReceived && event.Type != events.EventComplaintFiled {
		return nil
	}
	for _, admin := range s.config.Admins {
		task := models.EmailTask{To: admin, Subject: p.Title, Body: fmt.Sprintf("%s\n\nFrom: %s", p.Message, p.Email)}
		if err := s.enqueue(ctx, models.TaskAdminEmail, p.ID, task); err != nil {
			return err
		}
	}
	return nil
}

// notify stores the admin notification, pushes it to live dashboards and
// queues the telegram message.
func (s *NotificationService) notify(ctx context.Context, typ, title, message, table string, refID int64) error {
	n := &models.AdminNotification{
		Type:           typ,
		Title:          title,
		Message:        message,
		ReferenceTable: table,
		ReferenceID:    refID,
	}
	if err := s.repo.CreateAdminNotification(ctx, n); err != nil {
		return err
	}
	s.change(models.TableAdminNotifications, models.ChangeInsert, *n)

	if len(s.config.Telegram.AdminChatIDs) == 0 {
		return nil
	}
	return s.enqueue(ctx, models.TaskTelegramNotify, n.ID, models.TelegramTask{Text: title + "\n" + message})
}

func (s *NotificationService) enqueue(ctx context.Context, taskType string, refID int64, payload interface{}) error {
	if s.tasks == nil {
		return nil
	}
	return s.tasks.Enqueue(ctx, taskType, refID, payload)
}

func (s *NotificationService) ListNotifications(ctx context.Context, actor Actor, unreadOnly bool, limit int) ([]models.AdminNotification, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.ListAdminNotifications(ctx, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id int64) (*models.AdminNotification, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	n, err := s.repo.MarkAdminNotificationRead(ctx, id)
	if err != nil {
		return nil, err
	}
	s.change(models.TableAdminNotifications, models.ChangeUpdate, *n)
	return n, nil
}
