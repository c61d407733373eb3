package service

import (
	"context"
	"testing"

	"sparkclean/internal/database"
	"sparkclean/internal/events"
	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture(t *testing.T) (*CatalogService, *database.DB, *eventRecorder) {
	db := setupTestDB(t)
	bus := &eventRecorder{}
	return NewCatalogService(db, db, &changeRecorder{}, bus, testLogger()), db, bus
}

func TestServiceCatalog(t *testing.T) {
	svc, _, _ := newCatalogFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	customer := Actor{UserID: 2, Role: models.RoleCustomer}

	deep := &models.Service{Name: "Deep Cleaning", Slug: "deep-cleaning", Category: "cleaning", BasePrice: 180, IsActive: true}
	require.NoError(t, svc.CreateService(ctx, admin, deep))
	retired := &models.Service{Name: "Carpet", Slug: "carpet", Category: "cleaning", BasePrice: 90}
	require.NoError(t, svc.CreateService(ctx, admin, retired))

	assert.ErrorIs(t, svc.CreateService(ctx, customer, &models.Service{Name: "x", Slug: "x", Category: "y"}), ErrForbidden)
	assert.ErrorIs(t, svc.CreateService(ctx, admin, &models.Service{Name: "Bad", Slug: "Bad Slug", Category: "c"}), ErrValidation)
	assert.ErrorIs(t, svc.CreateService(ctx, admin, &models.Service{Name: "Dup", Slug: "carpet", Category: "c"}), ErrValidation)

	public, err := svc.ListServices(ctx, customer, true)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "deep-cleaning", public[0].Slug)

	everything, err := svc.ListServices(ctx, admin, true)
	require.NoError(t, err)
	assert.Len(t, everything, 2)

	price := 200.0
	updated, err := svc.UpdateService(ctx, admin, deep.ID, models.ServicePatch{BasePrice: &price})
	require.NoError(t, err)
	assert.Equal(t, 200.0, updated.BasePrice)

	negative := -1.0
	_, err = svc.UpdateService(ctx, admin, deep.ID, models.ServicePatch{BasePrice: &negative})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestContactMessages(t *testing.T) {
	svc, _, bus := newCatalogFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: 1, Role: models.RoleAdmin}

	m := &models.ContactMessage{Name: "Ann", Email: " Ann@Example.com ", Message: "Do you clean boats?"}
	require.NoError(t, svc.SubmitContact(ctx, m))
	assert.Equal(t, "ann@example.com", m.Email)
	assert.Equal(t, models.ContactNew, m.Status)
	assert.Equal(t, []string{events.EventContactReceived}, bus.events)

	assert.ErrorIs(t, svc.SubmitContact(ctx, &models.ContactMessage{Name: "Ann", Email: "nope", Message: "hi"}), ErrValidation)
	assert.ErrorIs(t, svc.SubmitContact(ctx, &models.ContactMessage{Email: "a@b.co"}), ErrValidation)

	_, err := svc.ListContactMessages(ctx, Actor{UserID: 2, Role: models.RoleCustomer})
	assert.ErrorIs(t, err, ErrForbidden)

	read, err := svc.UpdateContactStatus(ctx, admin, m.ID, models.ContactRead)
	require.NoError(t, err)
	assert.Equal(t, models.ContactRead, read.Status)

	_, err = svc.UpdateContactStatus(ctx, admin, m.ID, "spam")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPickupsAndComplaints(t *testing.T) {
	svc, db, bus := newCatalogFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	owner := Actor{UserID: 2, Role: models.RoleCustomer}
	stranger := Actor{UserID: 3, Role: models.RoleCustomer}

	booking := &models.Booking{UserID: owner.UserID, ServiceType: models.ServiceTypeLaundry,
		BookingDate: "2026-11-01", BookingTime: "09:00", Address: "1 Main St"}
	require.NoError(t, db.CreateBooking(ctx, booking))

	pickup := &models.PickupDelivery{BookingID: booking.ID, PickupDate: "2026-11-01", DeliveryDate: "2026-11-03", PickupAddress: "1 Main St"}
	assert.ErrorIs(t, svc.SchedulePickup(ctx, stranger, pickup), database.ErrNotFound)
	require.NoError(t, svc.SchedulePickup(ctx, owner, pickup))
	assert.Equal(t, models.PickupScheduled, pickup.Status)

	early := &models.PickupDelivery{BookingID: booking.ID, PickupDate: "2026-11-05", DeliveryDate: "2026-11-03", PickupAddress: "x"}
	assert.ErrorIs(t, svc.SchedulePickup(ctx, owner, early), ErrValidation)

	mine, err := svc.ListPickups(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, mine)

	moved, err := svc.UpdatePickupStatus(ctx, admin, pickup.ID, models.PickupPickedUp, "")
	require.NoError(t, err)
	assert.Equal(t, models.PickupPickedUp, moved.Status)
	_, err = svc.UpdatePickupStatus(ctx, owner, pickup.ID, models.PickupDelivered, "")
	assert.ErrorIs(t, err, ErrForbidden)

	complaint := &models.UserComplaint{BookingID: &booking.ID, Subject: "Shrunk shirt", Description: "It is tiny now"}
	assert.ErrorIs(t, svc.FileComplaint(ctx, stranger, complaint), database.ErrNotFound)
	require.NoError(t, svc.FileComplaint(ctx, owner, complaint))
	assert.Equal(t, models.ComplaintOpen, complaint.Status)

	resolved, err := svc.UpdateComplaintStatus(ctx, admin, complaint.ID, models.ComplaintResolved)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintResolved, resolved.Status)

	all, err := svc.ListComplaints(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.Equal(t, []string{events.EventPickupScheduled, events.EventComplaintFiled}, bus.events)
}
