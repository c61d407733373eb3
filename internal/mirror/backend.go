package mirror

import (
	"context"
	"encoding/json"
	"errors"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
)

// Errors a Backend reports. Implementations wrap them so callers can use
// errors.Is regardless of transport.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnknownTable = errors.New("unknown table")
)

// Backend is the remote side of the store. Calls carry the session obtained by
// SignIn; SignOut without a session is a no-op.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error

	// List returns the rows of table visible to the session, narrowed by filter.
	List(ctx context.Context, table string, filter realtime.Filter) ([]json.RawMessage, error)

	CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id int64, patch models.BookingPatch) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	BookInspection(ctx context.Context, req models.InspectionRequest) (*models.Booking, error)
	UpdateInspectionPrice(ctx context.Context, id int64, price float64) (*models.Booking, error)

	UpdateProfile(ctx context.Context, patch models.UserProfilePatch) (*models.User, error)
	AdjustCredits(ctx context.Context, userID int64, delta float64) (*models.User, error)

	CreateAddress(ctx context.Context, a *models.Address) (*models.Address, error)
	UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error)
	SetDefaultAddress(ctx context.Context, id int64) ([]models.Address, error)
	DeleteAddress(ctx context.Context, id int64) error

	SubmitContact(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error)
	UpdateContactStatus(ctx context.Context, id int64, status string) (*models.ContactMessage, error)
	SchedulePickup(ctx context.Context, p *models.PickupDelivery) (*models.PickupDelivery, error)
	UpdatePickupStatus(ctx context.Context, id int64, status, deliveryDate string) (*models.PickupDelivery, error)
	FileComplaint(ctx context.Context, c *models.UserComplaint) (*models.UserComplaint, error)
	UpdateComplaintStatus(ctx context.Context, id int64, status string) (*models.UserComplaint, error)
}

// Feed delivers realtime changes.
type Feed interface {
	Subscribe(ctx context.Context, table string, filter realtime.Filter) (Subscription, error)
}

// Subscription is one open realtime channel. Changes is closed when the
// subscription ends for any reason.
type Subscription interface {
	Changes() <-chan models.Change
	Close() error
}
