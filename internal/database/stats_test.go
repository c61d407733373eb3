package database

import (
	"context"
	"testing"

	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "a@example.com")
	createTestUser(t, db, "b@example.com")

	for _, b := range []struct {
		status string
		amount float64
	}{
		{models.StatusCompleted, 100},
		{models.StatusCompleted, 49.5},
		{models.StatusPending, 300},
		{models.StatusCancelled, 80},
		{models.StatusConfirmed, 20},
	} {
		booking := newTestBooking(1, models.ServiceTypeRegularCleaning)
		booking.Status = b.status
		booking.TotalAmount = b.amount
		require.NoError(t, db.CreateBooking(ctx, booking))
	}

	require.NoError(t, db.CreateSupportTicket(ctx, &models.SupportTicket{UserID: 1, Subject: "s", Description: "d", Priority: models.PriorityLow, Status: models.TicketOpen}))
	require.NoError(t, db.CreateSupportTicket(ctx, &models.SupportTicket{UserID: 1, Subject: "s", Description: "d", Priority: models.PriorityLow, Status: models.TicketClosed}))
	require.NoError(t, db.CreateContactMessage(ctx, &models.ContactMessage{Name: "n", Email: "e@x.y", Message: "m"}))

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalBookings)
	assert.Equal(t, 2, stats.CompletedBookings)
	assert.Equal(t, 1, stats.PendingBookings)
	assert.Equal(t, 1, stats.ConfirmedBookings)
	assert.Equal(t, 1, stats.CancelledBookings)
	assert.InDelta(t, 149.5, stats.TotalRevenue, 0.001)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.OpenTickets)
	assert.Equal(t, 1, stats.NewMessages)
}
