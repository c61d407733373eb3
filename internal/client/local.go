package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"sparkclean/internal/mirror"
	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
	"sparkclean/internal/service"
)

// Local serves a mirror store from the services of the same process.
type Local struct {
	svc *service.Services

	mu      sync.RWMutex
	session *models.Session
}

var _ mirror.Backend = (*Local)(nil)

func NewLocal(svc *service.Services) *Local {
	return &Local{svc: svc}
}

func (l *Local) actor() service.Actor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return service.ActorFromSession(l.session)
}

// Authorizer returns the realtime access rules of the current session, for
// mirror.NewHubFeed.
func (l *Local) Authorizer() realtime.Authorizer {
	check := l.svc.Access.For(l.actor())
	return func(table string, requested realtime.Filter) (realtime.Filter, error) {
		filter, err := check(table, requested)
		return filter, translate(err)
	}
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	res, err := l.svc.Auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, translate(err)
	}
	session, err := l.svc.Auth.Authenticate(ctx, res.AccessToken)
	if err != nil {
		return nil, translate(err)
	}
	l.mu.Lock()
	l.session = session
	l.mu.Unlock()
	return session, nil
}

func (l *Local) SignOut(ctx context.Context) error {
	l.mu.Lock()
	session := l.session
	l.session = nil
	l.mu.Unlock()
	if session == nil {
		return nil
	}
	return translate(l.svc.Auth.SignOut(ctx, session))
}

func (l *Local) List(ctx context.Context, table string, filter realtime.Filter) ([]json.RawMessage, error) {
	actor := l.actor()
	var (
		rows any
		err  error
	)
	switch table {
	case models.TableBookings:
		rows, err = l.svc.Bookings.ListBookings(ctx, actor, models.BookingFilter{})
	case models.TableUsers:
		if actor.IsAdmin() {
			rows, err = l.svc.Users.ListUsers(ctx, actor)
		} else {
			var me *models.User
			if me, err = l.svc.Users.GetProfile(ctx, actor, 0); err == nil {
				rows = []models.User{*me}
			}
		}
	case models.TableAddresses:
		rows, err = l.svc.Addresses.ListAddresses(ctx, actor)
	case models.TableServices:
		rows, err = l.svc.Catalog.ListServices(ctx, actor, true)
	case models.TableContactMessages:
		rows, err = l.svc.Catalog.ListContactMessages(ctx, actor)
	case models.TablePickupDeliveries:
		rows, err = l.svc.Catalog.ListPickups(ctx, actor)
	case models.TableUserComplaints:
		rows, err = l.svc.Catalog.ListComplaints(ctx, actor)
	case models.TableSupportTickets:
		rows, err = l.svc.Support.ListTickets(ctx, actor)
	case models.TableSupportMessages:
		var id int64
		if id, err = threadID(filter, "ticket_id"); err == nil {
			rows, err = l.svc.Support.ListTicketMessages(ctx, actor, id)
		}
	case models.TableChatSessions:
		rows, err = l.svc.Support.ListChatSessions(ctx, actor, "")
	case models.TableChatMessages:
		var id int64
		if id, err = threadID(filter, "session_id"); err == nil {
			rows, err = l.svc.Support.ListChatMessages(ctx, actor, id)
		}
	case models.TableAdminNotifications:
		rows, err = l.svc.Notifications.ListNotifications(ctx, actor, false, 0)
	case models.TableGalleryImages:
		if l.svc.Gallery == nil {
			return nil, nil
		}
		rows, err = l.svc.Gallery.ListImages(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", mirror.ErrUnknownTable, table)
	}
	if err != nil {
		return nil, translate(err)
	}
	return encodeRows(rows, table, filter)
}

func threadID(filter realtime.Filter, column string) (int64, error) {
	if filter.Column != column {
		return 0, fmt.Errorf("%w: filter by %s", mirror.ErrValidation, column)
	}
	id, err := strconv.ParseInt(filter.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", mirror.ErrValidation, column)
	}
	return id, nil
}

// encodeRows turns a slice of records into raw rows selected by filter.
func encodeRows(rows any, table string, filter realtime.Filter) ([]json.RawMessage, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", table, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", table, err)
	}
	return selectRows(raw, table, filter), nil
}

func selectRows(raw []json.RawMessage, table string, filter realtime.Filter) []json.RawMessage {
	if filter.IsZero() {
		return raw
	}
	out := raw[:0]
	for _, r := range raw {
		if filter.Match(models.Change{Table: table, Record: r}) {
			out = append(out, r)
		}
	}
	return out
}

func (l *Local) CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	if err := l.svc.Bookings.CreateBooking(ctx, l.actor(), b); err != nil {
		return nil, translate(err)
	}
	return b, nil
}

func (l *Local) UpdateBooking(ctx context.Context, id int64, patch models.BookingPatch) (*models.Booking, error) {
	b, err := l.svc.Bookings.UpdateBooking(ctx, l.actor(), id, patch)
	return b, translate(err)
}

func (l *Local) DeleteBooking(ctx context.Context, id int64) error {
	return translate(l.svc.Bookings.DeleteBooking(ctx, l.actor(), id))
}

func (l *Local) BookInspection(ctx context.Context, req models.InspectionRequest) (*models.Booking, error) {
	b, err := l.svc.Bookings.BookInspection(ctx, l.actor(), req)
	return b, translate(err)
}

func (l *Local) UpdateInspectionPrice(ctx context.Context, id int64, price float64) (*models.Booking, error) {
	b, err := l.svc.Bookings.UpdateInspectionPrice(ctx, l.actor(), id, price)
	return b, translate(err)
}

func (l *Local) UpdateProfile(ctx context.Context, patch models.UserProfilePatch) (*models.User, error) {
	u, err := l.svc.Users.UpdateProfile(ctx, l.actor(), patch)
	return u, translate(err)
}

func (l *Local) AdjustCredits(ctx context.Context, userID int64, delta float64) (*models.User, error) {
	u, err := l.svc.Users.AdjustCredits(ctx, l.actor(), userID, delta)
	return u, translate(err)
}

func (l *Local) CreateAddress(ctx context.Context, a *models.Address) (*models.Address, error) {
	if err := l.svc.Addresses.CreateAddress(ctx, l.actor(), a); err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (l *Local) UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error) {
	a, err := l.svc.Addresses.UpdateAddress(ctx, l.actor(), id, patch)
	return a, translate(err)
}

func (l *Local) SetDefaultAddress(ctx context.Context, id int64) ([]models.Address, error) {
	addrs, err := l.svc.Addresses.SetDefaultAddress(ctx, l.actor(), id)
	return addrs, translate(err)
}

func (l *Local) DeleteAddress(ctx context.Context, id int64) error {
	return translate(l.svc.Addresses.DeleteAddress(ctx, l.actor(), id))
}

func (l *Local) SubmitContact(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	if err := l.svc.Catalog.SubmitContact(ctx, m); err != nil {
		return nil, translate(err)
	}
	return m, nil
}

func (l *Local) UpdateContactStatus(ctx context.Context, id int64, status string) (*models.ContactMessage, error) {
	m, err := l.svc.Catalog.UpdateContactStatus(ctx, l.actor(), id, status)
	return m, translate(err)
}

func (l *Local) SchedulePickup(ctx context.Context, p *models.PickupDelivery) (*models.PickupDelivery, error) {
	if err := l.svc.Catalog.SchedulePickup(ctx, l.actor(), p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (l *Local) UpdatePickupStatus(ctx context.Context, id int64, status, deliveryDate string) (*models.PickupDelivery, error) {
	p, err := l.svc.Catalog.UpdatePickupStatus(ctx, l.actor(), id, status, deliveryDate)
	return p, translate(err)
}

func (l *Local) FileComplaint(ctx context.Context, c *models.UserComplaint) (*models.UserComplaint, error) {
	if err := l.svc.Catalog.FileComplaint(ctx, l.actor(), c); err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (l *Local) UpdateComplaintStatus(ctx context.Context, id int64, status string) (*models.UserComplaint, error) {
	c, err := l.svc.Catalog.UpdateComplaintStatus(ctx, l.actor(), id, status)
	return c, translate(err)
}
