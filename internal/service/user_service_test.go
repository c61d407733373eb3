package service

import (
	"context"
	"testing"

	"sparkclean/internal/database"
	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfile(t *testing.T) {
	db := setupTestDB(t)
	changes := &changeRecorder{}
	svc := NewUserService(db, changes, testLogger())
	ctx := context.Background()

	jane := createUser(t, db, "jane@sparkclean.test")
	bob := createUser(t, db, "bob@sparkclean.test")

	for _, amount := range []float64{40, 60} {
		b := &models.Booking{UserID: jane.UserID, ServiceType: models.ServiceTypeRegularCleaning,
			BookingDate: "2026-10-01", BookingTime: "08:00", Address: "x", Status: models.StatusCompleted, TotalAmount: amount}
		require.NoError(t, db.CreateBooking(ctx, b))
	}
	pending := &models.Booking{UserID: jane.UserID, ServiceType: models.ServiceTypeRegularCleaning,
		BookingDate: "2026-10-02", BookingTime: "08:00", Address: "x", TotalAmount: 500}
	require.NoError(t, db.CreateBooking(ctx, pending))

	profile, err := svc.GetProfile(ctx, jane, 0)
	require.NoError(t, err)
	assert.Equal(t, "Test", profile.FirstName)
	assert.Equal(t, 100.0, profile.TotalSpent)

	_, err = svc.GetProfile(ctx, bob, jane.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	name := "  Jane Doe "
	updated, err := svc.UpdateProfile(ctx, jane, models.UserProfilePatch{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.FullName)
	assert.Equal(t, "Jane", updated.FirstName)
	assert.Len(t, changes.of(models.TableUsers, models.ChangeUpdate), 1)

	blank := "   "
	_, err = svc.UpdateProfile(ctx, jane, models.UserProfilePatch{FullName: &blank})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdminUserOperations(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, nil, testLogger())
	ctx := context.Background()

	admin := createAdmin(t, db, "boss@sparkclean.test")
	jane := createUser(t, db, "jane@sparkclean.test")

	_, err := svc.ListUsers(ctx, jane)
	assert.ErrorIs(t, err, ErrForbidden)
	users, err := svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = svc.AdjustCredits(ctx, jane, jane.UserID, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := svc.AdjustCredits(ctx, admin, jane.UserID, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, u.Credits)

	_, err = svc.AdjustCredits(ctx, admin, jane.UserID, -30)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AdjustCredits(ctx, admin, jane.UserID, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AdjustCredits(ctx, admin, 999, 5)
	assert.ErrorIs(t, err, database.ErrNotFound)

	u, err = svc.AdjustCredits(ctx, admin, jane.UserID, -25)
	require.NoError(t, err)
	assert.Zero(t, u.Credits)
}
