package domain

import (
	"context"
	"time"

	"sparkclean/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error)
	UpdateInspectionPrice(ctx context.Context, id int64, price float64) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) (*models.Booking, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	UpdateUserProfile(ctx context.Context, id int64, patch models.UserProfilePatch) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	SetUserRole(ctx context.Context, id int64, role string) error
	ConfirmUserEmail(ctx context.Context, id int64) error
	AdjustUserCredits(ctx context.Context, id int64, delta float64) (*models.User, error)
	GetUserTotalSpent(ctx context.Context, userID int64) (float64, error)
	CreateAuthToken(ctx context.Context, token *models.AuthToken) error
	ConsumeAuthToken(ctx context.Context, token, purpose string, at time.Time) (*models.AuthToken, error)
}

type AddressRepository interface {
	CreateAddress(ctx context.Context, addr *models.Address) ([]models.Address, error)
	GetAddress(ctx context.Context, id int64) (*models.Address, error)
	ListAddresses(ctx context.Context, userID int64) ([]models.Address, error)
	UpdateAddress(ctx context.Context, addr *models.Address) error
	SetDefaultAddress(ctx context.Context, userID, id int64) ([]models.Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) (*models.Address, *models.Address, error)
}

type SupportRepository interface {
	CreateSupportTicket(ctx context.Context, t *models.SupportTicket) error
	GetSupportTicket(ctx context.Context, id int64) (*models.SupportTicket, error)
	ListSupportTickets(ctx context.Context, userID int64) ([]models.SupportTicket, error)
	UpdateSupportTicketStatus(ctx context.Context, id int64, status string) (*models.SupportTicket, error)
	CreateSupportMessage(ctx context.Context, m *models.SupportMessage) error
	ListSupportMessages(ctx context.Context, ticketID int64) ([]models.SupportMessage, error)
	CreateChatSession(ctx context.Context, s *models.ChatSession) error
	GetChatSession(ctx context.Context, id int64) (*models.ChatSession, error)
	GetOpenChatSession(ctx context.Context, userID int64) (*models.ChatSession, error)
	ListChatSessions(ctx context.Context, status string) ([]models.ChatSession, error)
	UpdateChatSession(ctx context.Context, id int64, status string, assignedAdminID *int64) (*models.ChatSession, error)
	CreateChatMessage(ctx context.Context, m *models.ChatMessage) (*models.ChatSession, error)
	ListChatMessages(ctx context.Context, sessionID int64) ([]models.ChatMessage, error)
}

type CatalogRepository interface {
	CreateService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	UpdateService(ctx context.Context, s *models.Service) error
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)
	CreateContactMessage(ctx context.Context, m *models.ContactMessage) error
	ListContactMessages(ctx context.Context) ([]models.ContactMessage, error)
	UpdateContactMessageStatus(ctx context.Context, id int64, status string) (*models.ContactMessage, error)
	CreatePickupDelivery(ctx context.Context, p *models.PickupDelivery) error
	GetPickupDelivery(ctx context.Context, id int64) (*models.PickupDelivery, error)
	ListPickupDeliveries(ctx context.Context, userID int64) ([]models.PickupDelivery, error)
	UpdatePickupStatus(ctx context.Context, id int64, status, deliveryDate string) (*models.PickupDelivery, error)
	CreateComplaint(ctx context.Context, c *models.UserComplaint) error
	GetComplaint(ctx context.Context, id int64) (*models.UserComplaint, error)
	ListComplaints(ctx context.Context, userID int64) ([]models.UserComplaint, error)
	UpdateComplaintStatus(ctx context.Context, id int64, status string) (*models.UserComplaint, error)
	CreateGalleryImage(ctx context.Context, g *models.GalleryImage) error
	GetGalleryImage(ctx context.Context, id int64) (*models.GalleryImage, error)
	ListGalleryImages(ctx context.Context) ([]models.GalleryImage, error)
	DeleteGalleryImage(ctx context.Context, id int64) error
}

type NotificationRepository interface {
	CreateAdminNotification(ctx context.Context, n *models.AdminNotification) error
	ListAdminNotifications(ctx context.Context, unreadOnly bool, limit int) ([]models.AdminNotification, error)
	MarkAdminNotificationRead(ctx context.Context, id int64) (*models.AdminNotification, error)
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type StatsRepository interface {
	GetStats(ctx context.Context) (*models.Stats, error)
}

// SessionStore keeps signed-in sessions and login attempt counters.
type SessionStore interface {
	StoreSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	RevokeSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// TokenIssuer signs and parses access tokens carrying a session.
type TokenIssuer interface {
	Issue(session models.Session) (string, error)
	Parse(token string) (*models.Session, error)
}

// ChangePublisher fans row changes out to realtime subscribers.
type ChangePublisher interface {
	Publish(change models.Change) models.Change
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TaskEnqueuer persists a side effect for the outbox worker.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, taskType string, referenceID int64, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	DeleteBookingRow(ctx context.Context, bookingID int64) error
}

// BlobStorage stores gallery images.
type BlobStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
