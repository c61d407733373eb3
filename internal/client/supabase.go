package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"sparkclean/internal/mirror"
	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
	"sparkclean/internal/service"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// Supabase reads and writes the tables of a hosted Supabase project directly.
// Row level security on the project does the ownership checks; the business
// rules the server would apply are checked here before writing.
type Supabase struct {
	url     string
	anonKey string
	anon    *supa.Client

	mu      sync.RWMutex
	authed  *supa.Client
	session *models.Session
}

var _ mirror.Backend = (*Supabase)(nil)

func NewSupabase(url, anonKey string) (*Supabase, error) {
	anon, err := supa.NewClient(url, anonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Supabase{url: url, anonKey: anonKey, anon: anon}, nil
}

func (s *Supabase) db() *supa.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.authed != nil {
		return s.authed
	}
	return s.anon
}

func (s *Supabase) current() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Supabase) requireSession() (*models.Session, error) {
	if session := s.current(); session != nil {
		return session, nil
	}
	return nil, mirror.ErrUnauthorized
}

func (s *Supabase) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	token, err := s.anon.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mirror.ErrUnauthorized, err)
	}
	authed, err := supa.NewClient(s.url, s.anonKey, &supa.ClientOptions{
		Headers: map[string]string{"Authorization": "Bearer " + token.AccessToken},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	users, err := decodeRows[models.User](exec(authed.From(models.TableUsers).
		Select("*", "", false).
		Eq("email", strings.ToLower(email))))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: no profile for %s", mirror.ErrUnauthorized, email)
	}

	session := &models.Session{
		ID:        token.User.ID.String(),
		UserID:    users[0].ID,
		Email:     users[0].Email,
		Role:      users[0].Role,
		ExpiresAt: time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	s.mu.Lock()
	s.authed = authed
	s.session = session
	s.mu.Unlock()
	return session, nil
}

func (s *Supabase) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authed = nil
	s.session = nil
	return nil
}

func (s *Supabase) List(ctx context.Context, table string, filter realtime.Filter) ([]json.RawMessage, error) {
	if _, ok := listPaths[table]; !ok && table != models.TableUsers &&
		table != models.TableSupportMessages && table != models.TableChatMessages {
		return nil, fmt.Errorf("%w: %s", mirror.ErrUnknownTable, table)
	}
	q := s.db().From(table).Select("*", "", false)
	if !filter.IsZero() {
		q = q.Eq(filter.Column, filter.Value)
	}
	q = q.Order("id", &postgrest.OrderOpts{Ascending: true})
	return decodeRows[json.RawMessage](exec(q))
}

func (s *Supabase) CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	session, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if err := service.ValidateBooking(b); err != nil {
		return nil, translate(err)
	}
	row := *b
	row.UserID = session.UserID
	row.Status = models.StatusPending
	row.Version = 1
	return s.insertBooking(row)
}

func (s *Supabase) insertBooking(b models.Booking) (*models.Booking, error) {
	return insertOne[models.Booking](s.db(), models.TableBookings, b)
}

func (s *Supabase) booking(id int64) (*models.Booking, error) {
	rows, err := decodeRows[models.Booking](exec(s.db().From(models.TableBookings).
		Select("*", "", false).
		Eq("id", strconv.FormatInt(id, 10))))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, mirror.ErrNotFound
	}
	return &rows[0], nil
}

// UpdateBooking writes only if the row still has the version it was read at.
func (s *Supabase) UpdateBooking(ctx context.Context, id int64, patch models.BookingPatch) (*models.Booking, error) {
	session, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	current, err := s.booking(id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil && *patch.Status != current.Status {
		if !models.CanTransitionBooking(current.Status, *patch.Status) {
			return nil, fmt.Errorf("%w: %s to %s", mirror.ErrConflict, current.Status, *patch.Status)
		}
		if session.Role != models.RoleAdmin && *patch.Status != models.StatusCancelled {
			return nil, mirror.ErrForbidden
		}
	}

	next := *current
	patch.Apply(&next)
	if err := service.ValidateBooking(&next); err != nil {
		return nil, translate(err)
	}
	values := map[string]any{
		"service_type":         next.ServiceType,
		"booking_date":         next.BookingDate,
		"booking_time":         next.BookingTime,
		"address":              next.Address,
		"status":               next.Status,
		"total_amount":         next.TotalAmount,
		"special_instructions": next.SpecialInstructions,
		"version":              current.Version + 1,
		"updated_at":           time.Now().UTC(),
	}
	rows, err := decodeRows[models.Booking](exec(s.db().From(models.TableBookings).
		Update(values, "representation", "").
		Eq("id", strconv.FormatInt(id, 10)).
		Eq("version", strconv.FormatInt(current.Version, 10))))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: booking %d changed concurrently", mirror.ErrConflict, id)
	}
	return &rows[0], nil
}

func (s *Supabase) DeleteBooking(ctx context.Context, id int64) error {
	if _, err := s.requireSession(); err != nil {
		return err
	}
	return s.deleteRow(models.TableBookings, id)
}

func (s *Supabase) BookInspection(ctx context.Context, req models.InspectionRequest) (*models.Booking, error) {
	price, err := service.EstimateInspection(req.Rooms, req.Urgency)
	if err != nil {
		return nil, translate(err)
	}
	return s.CreateBooking(ctx, &models.Booking{
		ServiceType:         models.ServiceTypePropertyInspection,
		BookingDate:         req.BookingDate,
		BookingTime:         req.BookingTime,
		Address:             req.Address,
		TotalAmount:         price,
		EstimatedPrice:      price,
		SpecialInstructions: service.InspectionInstructions(req),
	})
}

func (s *Supabase) UpdateInspectionPrice(ctx context.Context, id int64, price float64) (*models.Booking, error) {
	if price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", mirror.ErrValidation)
	}
	current, err := s.booking(id)
	if err != nil {
		return nil, err
	}
	if models.IsLaundryServiceType(current.ServiceType) {
		return nil, fmt.Errorf("%w: laundry prices are fixed", mirror.ErrConflict)
	}
	return s.UpdateBooking(ctx, id, models.BookingPatch{TotalAmount: &price})
}

func (s *Supabase) UpdateProfile(ctx context.Context, patch models.UserProfilePatch) (*models.User, error) {
	session, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	values := map[string]any{"updated_at": time.Now().UTC()}
	if patch.FullName != nil {
		values["full_name"] = strings.TrimSpace(*patch.FullName)
	}
	if patch.Phone != nil {
		values["phone"] = strings.TrimSpace(*patch.Phone)
	}
	return updateOne[models.User](s.db(), models.TableUsers, session.UserID, values)
}

// AdjustCredits reads then writes the balance, so concurrent adjustments from
// two admins can lose one of them.
func (s *Supabase) AdjustCredits(ctx context.Context, userID int64, delta float64) (*models.User, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", mirror.ErrValidation)
	}
	users, err := decodeRows[models.User](exec(s.db().From(models.TableUsers).
		Select("*", "", false).
		Eq("id", strconv.FormatInt(userID, 10))))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, mirror.ErrNotFound
	}
	credits := users[0].Credits + delta
	if credits < 0 {
		return nil, fmt.Errorf("%w: credits would go negative", mirror.ErrValidation)
	}
	return updateOne[models.User](s.db(), models.TableUsers, userID, map[string]any{
		"credits":    credits,
		"updated_at": time.Now().UTC(),
	})
}

func (s *Supabase) CreateAddress(ctx context.Context, a *models.Address) (*models.Address, error) {
	session, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" {
		return nil, fmt.Errorf("%w: street and city are required", mirror.ErrValidation)
	}
	existing, err := decodeRows[models.Address](exec(s.db().From(models.TableAddresses).
		Select("id", "", false).
		Eq("user_id", strconv.FormatInt(session.UserID, 10))))
	if err != nil {
		return nil, err
	}

	row := *a
	row.UserID = session.UserID
	row.IsDefault = a.IsDefault || len(existing) == 0
	created, err := insertOne[models.Address](s.db(), models.TableAddresses, row)
	if err != nil {
		return nil, err
	}
	if created.IsDefault {
		if err := s.clearDefaults(session.UserID, created.ID); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (s *Supabase) UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error) {
	if _, err := s.requireSession(); err != nil {
		return nil, err
	}
	values := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Label != nil {
		values["label"] = *patch.Label
	}
	if patch.Street != nil {
		values["street"] = *patch.Street
	}
	if patch.City != nil {
		values["city"] = *patch.City
	}
	if patch.PostalCode != nil {
		values["postal_code"] = *patch.PostalCode
	}
	return updateOne[models.Address](s.db(), models.TableAddresses, id, values)
}

// SetDefaultAddress clears the other defaults after marking id. The two writes
// are separate requests, so a reader may briefly see two defaults.
func (s *Supabase) SetDefaultAddress(ctx context.Context, id int64) ([]models.Address, error) {
	session, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if _, err := updateOne[models.Address](s.db(), models.TableAddresses, id, map[string]any{
		"is_default": true,
		"updated_at": time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	if err := s.clearDefaults(session.UserID, id); err != nil {
		return nil, err
	}
	return decodeRows[models.Address](exec(s.db().From(models.TableAddresses).
		Select("*", "", false).
		Eq("user_id", strconv.FormatInt(session.UserID, 10)).
		Order("id", &postgrest.OrderOpts{Ascending: true})))
}

func (s *Supabase) clearDefaults(userID, keep int64) error {
	_, err := exec(s.db().From(models.TableAddresses).
		Update(map[string]any{"is_default": false, "updated_at": time.Now().UTC()}, "minimal", "").
		Eq("user_id", strconv.FormatInt(userID, 10)).
		Eq("is_default", "true").
		Neq("id", strconv.FormatInt(keep, 10)))
	return err
}

func (s *Supabase) DeleteAddress(ctx context.Context, id int64) error {
	session, err := s.requireSession()
	if err != nil {
		return err
	}
	if err := s.deleteRow(models.TableAddresses, id); err != nil {
		return err
	}
	rest, err := decodeRows[models.Address](exec(s.db().From(models.TableAddresses).
		Select("*", "", false).
		Eq("user_id", strconv.FormatInt(session.UserID, 10)).
		Order("id", &postgrest.OrderOpts{Ascending: true})))
	if err != nil {
		return err
	}
	for _, a := range rest {
		if a.IsDefault {
			return nil
		}
	}
	if len(rest) > 0 {
		_, err = s.SetDefaultAddress(ctx, rest[0].ID)
	}
	return err
}

func (s *Supabase) SubmitContact(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Email) == "" || strings.TrimSpace(m.Message) == "" {
		return nil, fmt.Errorf("%w: name, email and message are required", mirror.ErrValidation)
	}
	row := *m
	row.Status = models.ContactNew
	return insertOne[models.ContactMessage](s.db(), models.TableContactMessages, row)
}

func (s *Supabase) UpdateContactStatus(ctx context.Context, id int64, status string) (*models.ContactMessage, error) {
	if !models.IsValidContactStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", mirror.ErrValidation, status)
	}
	return updateOne[models.ContactMessage](s.db(), models.TableContactMessages, id, map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
}

func (s *Supabase) SchedulePickup(ctx context.Context, p *models.PickupDelivery) (*models.PickupDelivery, error) {
	session, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.PickupAddress) == "" || strings.TrimSpace(p.PickupDate) == "" {
		return nil, fmt.Errorf("%w: pickup address and date are required", mirror.ErrValidation)
	}
	row := *p
	row.UserID = session.UserID
	row.Status = models.PickupScheduled
	return insertOne[models.PickupDelivery](s.db(), models.TablePickupDeliveries, row)
}

func (s *Supabase) UpdatePickupStatus(ctx context.Context, id int64, status, deliveryDate string) (*models.PickupDelivery, error) {
	if !models.IsValidPickupStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", mirror.ErrValidation, status)
	}
	values := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if deliveryDate != "" {
		values["delivery_date"] = deliveryDate
	}
	return updateOne[models.PickupDelivery](s.db(), models.TablePickupDeliveries, id, values)
}

func (s *Supabase) FileComplaint(ctx context.Context, c *models.UserComplaint) (*models.UserComplaint, error) {
	session, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Subject) == "" || strings.TrimSpace(c.Description) == "" {
		return nil, fmt.Errorf("%w: subject and description are required", mirror.ErrValidation)
	}
	row := *c
	row.UserID = session.UserID
	row.Status = models.ComplaintOpen
	return insertOne[models.UserComplaint](s.db(), models.TableUserComplaints, row)
}

func (s *Supabase) UpdateComplaintStatus(ctx context.Context, id int64, status string) (*models.UserComplaint, error) {
	if !models.IsValidComplaintStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", mirror.ErrValidation, status)
	}
	return updateOne[models.UserComplaint](s.db(), models.TableUserComplaints, id, map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
}

func (s *Supabase) deleteRow(table string, id int64) error {
	rows, err := decodeRows[json.RawMessage](exec(s.db().From(table).
		Delete("representation", "").
		Eq("id", strconv.FormatInt(id, 10))))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return mirror.ErrNotFound
	}
	return nil
}

func exec(q *postgrest.FilterBuilder) ([]byte, error) {
	data, _, err := q.Execute()
	if err != nil {
		return nil, postgrestError(err)
	}
	return data, nil
}

// postgrestError maps the PostgreSQL and PostgREST codes in err to the mirror
// sentinels.
func postgrestError(err error) error {
	text := err.Error()
	switch {
	case strings.Contains(text, "42501"):
		return fmt.Errorf("%w: %v", mirror.ErrForbidden, err)
	case strings.Contains(text, "PGRST301"), strings.Contains(text, "JWT"):
		return fmt.Errorf("%w: %v", mirror.ErrUnauthorized, err)
	case strings.Contains(text, "23505"):
		return fmt.Errorf("%w: %v", mirror.ErrConflict, err)
	case strings.Contains(text, "23502"), strings.Contains(text, "23514"), strings.Contains(text, "22P02"):
		return fmt.Errorf("%w: %v", mirror.ErrValidation, err)
	default:
		return fmt.Errorf("supabase request failed: %w", err)
	}
}

func decodeRows[T any](data []byte, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}

// insertValues turns a row into insert values, leaving the columns the
// database assigns.
func insertValues(row any) (map[string]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	for _, generated := range []string{"id", "created_at", "updated_at", "first_name", "total_spent"} {
		delete(values, generated)
	}
	return values, nil
}

func insertOne[T any](db *supa.Client, table string, row any) (*T, error) {
	values, err := insertValues(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s row: %w", table, err)
	}
	rows, err := decodeRows[T](exec(db.From(table).Insert(values, false, "", "representation", "")))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, mirror.ErrForbidden
	}
	return &rows[0], nil
}

func updateOne[T any](db *supa.Client, table string, id int64, values map[string]any) (*T, error) {
	rows, err := decodeRows[T](exec(db.From(table).
		Update(values, "representation", "").
		Eq("id", strconv.FormatInt(id, 10))))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, mirror.ErrNotFound
	}
	return &rows[0], nil
}
