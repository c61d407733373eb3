package export

import (
	"bytes"
	"testing"
	"time"

	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleBookings() ([]models.Booking, map[int64]models.User) {
	ts := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	bookings := []models.Booking{
		{ID: 1, UserID: 10, ServiceType: models.ServiceTypeDeepCleaning, BookingDate: "2026-10-02", Status: models.StatusCompleted, TotalAmount: 120, CreatedAt: ts},
		{ID: 2, UserID: 10, ServiceType: models.ServiceTypeLaundry, BookingDate: "2026-10-03", Status: models.StatusPending, TotalAmount: 30, CreatedAt: ts},
		{ID: 3, UserID: 11, ServiceType: models.ServiceTypeMoveInOut, BookingDate: "2026-10-04", Status: models.StatusCompleted, TotalAmount: 80, CreatedAt: ts},
	}
	users := map[int64]models.User{10: {ID: 10, FullName: "Ann Lee", Email: "ann@example.com"}}
	return bookings, users
}

func TestBookingsWorkbook(t *testing.T) {
	bookings, users := sampleBookings()
	f, err := BookingsWorkbook(bookings, users)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{bookingsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(bookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, bookingHeaders, rows[0])
	assert.Equal(t, "Ann Lee", rows[1][1])
	assert.Equal(t, "", rows[3][1])

	revenue, err := f.GetCellValue(summarySheet, "C5")
	require.NoError(t, err)
	assert.Equal(t, "200", revenue)
}

func TestWriteAndSaveBookings(t *testing.T) {
	bookings, users := sampleBookings()

	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, bookings, users))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	f.Close()

	path, err := SaveBookings(t.TempDir(), time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC), bookings, users)
	require.NoError(t, err)
	assert.Contains(t, path, "bookings_20261016_120000.xlsx")
}
