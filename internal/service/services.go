package service

import (
	"sparkclean/internal/config"
	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/events"

	"github.com/rs/zerolog"
)

// Deps are the collaborators shared by the services.
type Deps struct {
	DB       *database.DB
	Sessions domain.SessionStore
	Hasher   domain.PasswordHasher
	Tokens   domain.TokenIssuer
	Tasks    domain.TaskEnqueuer
	Changes  domain.ChangePublisher
	Events   *events.EventBus
	Storage  domain.BlobStorage
	Config   *config.Config
	Logger   *zerolog.Logger
}

// Services bundles every service of the application.
type Services struct {
	Auth          *AuthService
	Bookings      *BookingService
	Addresses     *AddressService
	Support       *SupportService
	Users         *UserService
	Catalog       *CatalogService
	Gallery       *GalleryService
	Notifications *NotificationService
	Stats         *StatsService
	Access        *RealtimeAccess
}

// New wires the services over one database. The notification service is
// subscribed to the event bus, which is created when Deps has none.
func New(d Deps) *Services {
	if d.Events == nil {
		d.Events = events.NewEventBus()
	}
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	logger := d.Logger.With().Str("component", "service").Logger()
	l := &logger

	s := &Services{
		Auth:          NewAuthService(d.DB, d.Sessions, d.Hasher, d.Tokens, d.Tasks, d.Changes, d.Events, d.Config, l),
		Bookings:      NewBookingService(d.DB, d.Changes, d.Events, l),
		Addresses:     NewAddressService(d.DB, d.Changes, l),
		Support:       NewSupportService(d.DB, d.Changes, d.Events, l),
		Users:         NewUserService(d.DB, d.Changes, l),
		Catalog:       NewCatalogService(d.DB, d.DB, d.Changes, d.Events, l),
		Notifications: NewNotificationService(d.DB, d.Tasks, d.Changes, d.Config, l),
		Stats:         NewStatsService(d.DB),
	}
	if d.Storage != nil {
		s.Gallery = NewGalleryService(d.DB, d.Storage, d.Changes, l)
	}
	s.Access = NewRealtimeAccess(s.Support)
	s.Notifications.Register(d.Events)
	return s
}
