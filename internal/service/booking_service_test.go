package service

import (
	"context"
	"testing"
	"time"

	"sparkclean/internal/database"
	"sparkclean/internal/events"
	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newBookingFixture(t *testing.T) (*BookingService, *database.DB, *changeRecorder, *eventRecorder) {
	db := setupTestDB(t)
	changes := &changeRecorder{}
	bus := &eventRecorder{}
	return NewBookingService(db, changes, bus, testLogger()), db, changes, bus
}

func validBooking() *models.Booking {
	return &models.Booking{
		ServiceType: models.ServiceTypeDeepCleaning,
		BookingDate: "2026-11-02",
		BookingTime: "10:00",
		Address:     "1 Main St",
		TotalAmount: 120,
	}
}

func TestCreateBookingThenFetchMatches(t *testing.T) {
	svc, _, changes, bus := newBookingFixture(t)
	ctx := context.Background()
	customer := Actor{UserID: 7, Role: models.RoleCustomer}

	b := validBooking()
	b.SpecialInstructions = "Ring twice"
	require.NoError(t, svc.CreateBooking(ctx, customer, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, int64(7), b.UserID)

	got, err := svc.GetBooking(ctx, customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ServiceType, got.ServiceType)
	assert.Equal(t, b.BookingDate, got.BookingDate)
	assert.Equal(t, b.BookingTime, got.BookingTime)
	assert.Equal(t, b.Address, got.Address)
	assert.Equal(t, b.TotalAmount, got.TotalAmount)
	assert.Equal(t, b.SpecialInstructions, got.SpecialInstructions)
	assert.WithinDuration(t, b.CreatedAt, got.CreatedAt, time.Second)

	assert.Len(t, changes.of(models.TableBookings, models.ChangeInsert), 1)
	assert.Equal(t, []string{events.EventBookingCreated}, bus.events)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, db, changes, _ := newBookingFixture(t)
	ctx := context.Background()
	customer := Actor{UserID: 7, Role: models.RoleCustomer}

	err := svc.CreateBooking(ctx, customer, &models.Booking{ServiceType: models.ServiceTypeDeepCleaning})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"booking_date", "booking_time", "address"}, verr.Fields)

	bad := validBooking()
	bad.BookingDate = "02/11/2026"
	assert.ErrorIs(t, svc.CreateBooking(ctx, customer, bad), ErrValidation)

	confirmed := validBooking()
	confirmed.Status = models.StatusConfirmed
	assert.ErrorIs(t, svc.CreateBooking(ctx, customer, confirmed), ErrValidation)

	assert.ErrorIs(t, svc.CreateBooking(ctx, Actor{}, validBooking()), ErrUnauthorized)

	all, err := db.ListBookings(ctx, models.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "nothing is created when validation fails")
	assert.Empty(t, changes.changes)
}

func TestUpdateBookingLifecycle(t *testing.T) {
	svc, _, changes, bus := newBookingFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	customer := Actor{UserID: 7, Role: models.RoleCustomer}

	b := validBooking()
	require.NoError(t, svc.CreateBooking(ctx, customer, b))

	_, err := svc.UpdateBooking(ctx, admin, b.ID, models.BookingPatch{Status: strPtr(models.StatusCompleted)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, status := range []string{models.StatusConfirmed, models.StatusInProgress, models.StatusCompleted} {
		updated, err := svc.UpdateBooking(ctx, admin, b.ID, models.BookingPatch{Status: strPtr(status)})
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	before := len(changes.changes)
	again, err := svc.UpdateBooking(ctx, admin, b.ID, models.BookingPatch{Status: strPtr(models.StatusCompleted)})
	require.NoError(t, err, "same status is a no-op")
	assert.Equal(t, models.StatusCompleted, again.Status)
	assert.Equal(t, before, len(changes.changes))

	_, err = svc.UpdateBooking(ctx, admin, b.ID, models.BookingPatch{Status: strPtr(models.StatusCancelled)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	statusEvents := 0
	for _, e := range bus.events {
		if e == events.EventBookingStatusChanged {
			statusEvents++
		}
	}
	assert.Equal(t, 3, statusEvents)
}

func TestCustomerBookingPermissions(t *testing.T) {
	svc, _, _, _ := newBookingFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	owner := Actor{UserID: 7, Role: models.RoleCustomer}
	stranger := Actor{UserID: 8, Role: models.RoleCustomer}

	b := validBooking()
	require.NoError(t, svc.CreateBooking(ctx, owner, b))

	_, err := svc.GetBooking(ctx, stranger, b.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	list, err := svc.ListBookings(ctx, stranger, models.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.UpdateBooking(ctx, owner, b.ID, models.BookingPatch{Status: strPtr(models.StatusConfirmed)})
	assert.ErrorIs(t, err, ErrForbidden)

	price := 1.0
	_, err = svc.UpdateBooking(ctx, owner, b.ID, models.BookingPatch{TotalAmount: &price})
	assert.ErrorIs(t, err, ErrForbidden)

	moved, err := svc.UpdateBooking(ctx, owner, b.ID, models.BookingPatch{BookingTime: strPtr("14:00")})
	require.NoError(t, err)
	assert.Equal(t, "14:00", moved.BookingTime)

	_, err = svc.UpdateBooking(ctx, admin, b.ID, models.BookingPatch{Status: strPtr(models.StatusConfirmed)})
	require.NoError(t, err)
	_, err = svc.UpdateBooking(ctx, owner, b.ID, models.BookingPatch{Address: strPtr("2 Elm St")})
	assert.ErrorIs(t, err, ErrForbidden, "only pending bookings are editable by customers")

	cancelled, err := svc.UpdateBooking(ctx, owner, b.ID, models.BookingPatch{Status: strPtr(models.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	assert.ErrorIs(t, svc.DeleteBooking(ctx, stranger, b.ID), database.ErrNotFound)
	require.NoError(t, svc.DeleteBooking(ctx, owner, b.ID))
	_, err = svc.GetBooking(ctx, admin, b.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestBookInspection(t *testing.T) {
	svc, _, _, _ := newBookingFixture(t)
	ctx := context.Background()
	customer := Actor{UserID: 7, Role: models.RoleCustomer}

	b, err := svc.BookInspection(ctx, customer, models.InspectionRequest{
		Rooms:       models.InspectionRooms{Kitchens: 2, Bathrooms: 1, Bedrooms: 3, LivingRooms: 1},
		Urgency:     models.UrgencyUrgent,
		BookingDate: "2026-11-05",
		BookingTime: "09:00",
		Address:     "5 Oak Ave",
		Notes:       "Check the roof",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceTypePropertyInspection, b.ServiceType)
	assert.Equal(t, 158.0, b.TotalAmount)
	assert.Equal(t, 158.0, b.EstimatedPrice)
	assert.Contains(t, b.SpecialInstructions, "Kitchens: 2, Bathrooms: 1, Bedrooms: 3, Living Rooms: 1")
	assert.Contains(t, b.SpecialInstructions, "Check the roof")

	_, err = svc.BookInspection(ctx, customer, models.InspectionRequest{Urgency: models.UrgencyUrgent})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEstimateInspection(t *testing.T) {
	tests := []struct {
		name    string
		rooms   models.InspectionRooms
		urgency string
		want    float64
	}{
		{"worked example", models.InspectionRooms{Kitchens: 2, Bathrooms: 1, Bedrooms: 3, LivingRooms: 1}, models.UrgencyUrgent, 158},
		{"no rooms standard", models.InspectionRooms{}, "", 150},
		{"no rooms emergency", models.InspectionRooms{}, models.UrgencyEmergency, 300},
		{"ten rooms standard", models.InspectionRooms{Bedrooms: 10}, models.UrgencyStandard, 150},
		{"three rooms emergency", models.InspectionRooms{Kitchens: 1, Bathrooms: 1, Bedrooms: 1}, models.UrgencyEmergency, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimateInspection(tt.rooms, tt.urgency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := EstimateInspection(models.InspectionRooms{Kitchens: -1}, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = EstimateInspection(models.InspectionRooms{}, "yesterday")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateInspectionPrice(t *testing.T) {
	svc, _, _, _ := newBookingFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	customer := Actor{UserID: 7, Role: models.RoleCustomer}

	inspection := validBooking()
	inspection.ServiceType = models.ServiceTypePropertyInspection
	require.NoError(t, svc.CreateBooking(ctx, customer, inspection))
	laundry := validBooking()
	laundry.ServiceType = models.ServiceTypeLaundry
	require.NoError(t, svc.CreateBooking(ctx, customer, laundry))

	_, err := svc.UpdateInspectionPrice(ctx, customer, inspection.ID, 99)
	assert.ErrorIs(t, err, ErrForbidden)

	priced, err := svc.UpdateInspectionPrice(ctx, admin, inspection.ID, 240)
	require.NoError(t, err)
	assert.Equal(t, 240.0, priced.TotalAmount)

	_, err = svc.UpdateInspectionPrice(ctx, admin, laundry.ID, 240)
	assert.ErrorIs(t, err, database.ErrPriceLocked)
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *mockBookingRepo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, s string) (*models.Booking, error) {
	args := m.Called(ctx, id, v, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) UpdateInspectionPrice(ctx context.Context, id int64, p float64) (*models.Booking, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) DeleteBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func TestUpdateBookingConflict(t *testing.T) {
	repo := new(mockBookingRepo)
	changes := &changeRecorder{}
	svc := NewBookingService(repo, changes, nil, testLogger())
	ctx := context.Background()
	admin := Actor{UserID: 1, Role: models.RoleAdmin}

	repo.On("GetBooking", ctx, int64(5)).Return(&models.Booking{ID: 5, UserID: 7, Status: models.StatusPending, Version: 3}, nil).Once()
	repo.On("UpdateBookingStatusWithVersion", ctx, int64(5), int64(3), models.StatusConfirmed).
		Return(nil, database.ErrConcurrentModification).Once()

	_, err := svc.UpdateBooking(ctx, admin, 5, models.BookingPatch{Status: strPtr(models.StatusConfirmed)})
	assert.True(t, IsConflict(err))
	assert.Empty(t, changes.changes)
	repo.AssertExpectations(t)
}
