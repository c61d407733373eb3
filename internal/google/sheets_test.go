package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *BookingLedger) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return mux, newLedger(srv, "ledger_tid", nil)
}

func testBooking(id int64) *models.Booking {
	ts := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	return &models.Booking{
		ID: id, UserID: 7, ServiceType: models.ServiceTypeDeepCleaning,
		BookingDate: "2026-10-05", BookingTime: "10:00", Address: "1 Main St",
		Status: models.StatusPending, TotalAmount: 120, CreatedAt: ts, UpdatedAt: ts,
	}
}

func TestBookingRowValues(t *testing.T) {
	values := bookingRowValues(testBooking(123))
	assert.Equal(t, []interface{}{
		int64(123), int64(7), "deep_cleaning", "2026-10-05", "10:00", "1 Main St",
		"pending", 120.0, "2026-10-01 09:30:00", "2026-10-01 09:30:00",
	}, values)
	assert.Len(t, values, len(ledgerHeader))
}

func TestFirstRow(t *testing.T) {
	assert.Equal(t, 10, firstRow("Bookings!A10:J10"))
	assert.Equal(t, 3, firstRow("B3"))
	assert.Equal(t, 0, firstRow("Bookings!A:A"))
}

func TestTestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestWarmUpCache(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"123"}, {}, {456.0}}})
	})
	require.NoError(t, s.WarmUpCache(context.Background()))

	row, ok := s.getCachedRow(123)
	assert.True(t, ok)
	assert.Equal(t, 2, row)
	row, _ = s.getCachedRow(456)
	assert.Equal(t, 4, row)
}

func TestUpsertAppendsUnknownBooking(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Bookings!A10:J10"},
		})
	})

	require.NoError(t, s.UpsertBooking(context.Background(), testBooking(789)))
	row, ok := s.getCachedRow(789)
	assert.True(t, ok)
	assert.Equal(t, 10, row)
}

func TestUpsertUpdatesKnownRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow(123, 2)
	called := false
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A2:J2", func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	require.NoError(t, s.UpsertBooking(context.Background(), testBooking(123)))
	assert.True(t, called)
}

func TestDeleteBookingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow(456, 3)
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A3:J3:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})

	require.NoError(t, s.DeleteBookingRow(context.Background(), 456))
	_, ok := s.getCachedRow(456)
	assert.False(t, ok)

	// Never written: nothing to clear.
	assert.NoError(t, s.DeleteBookingRow(context.Background(), 999))
}

func TestReplaceBookings(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A1:Z:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	var written sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&written)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	require.NoError(t, s.ReplaceBookings(context.Background(), []models.Booking{*testBooking(5), *testBooking(9)}))
	assert.Len(t, written.Values, 3)
	row, _ := s.getCachedRow(9)
	assert.Equal(t, 3, row)
}
