package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sparkclean/internal/mirror"
	"sparkclean/internal/models"
	"sparkclean/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRest answers PostgREST requests for the bookings table from one row.
type fakeRest struct {
	mu      sync.Mutex
	row     models.Booking
	patched []string
	stale   bool
}

func (f *fakeRest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if !strings.HasSuffix(r.URL.Path, "/bookings") {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation does not exist"}`))
		return
	}
	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode([]models.Booking{f.row})
	case http.MethodPatch:
		f.patched = append(f.patched, r.URL.RawQuery)
		if f.stale {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		var values map[string]any
		_ = json.NewDecoder(r.Body).Decode(&values)
		if amount, ok := values["total_amount"].(float64); ok {
			f.row.TotalAmount = amount
		}
		f.row.Version++
		_ = json.NewEncoder(w).Encode([]models.Booking{f.row})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeSupabase(t *testing.T, row models.Booking) (*Supabase, *fakeRest) {
	t.Helper()
	rest := &fakeRest{row: row}
	srv := httptest.NewServer(rest)
	t.Cleanup(srv.Close)

	s, err := NewSupabase(srv.URL, "anon-key")
	require.NoError(t, err)
	s.session = &models.Session{ID: "sb", UserID: 1, Email: "admin@example.com", Role: models.RoleAdmin, ExpiresAt: time.Now().Add(time.Hour)}
	return s, rest
}

func inspectionRow() models.Booking {
	return models.Booking{
		ID: 5, UserID: 2, ServiceType: models.ServiceTypePropertyInspection,
		BookingDate: "2026-11-02", BookingTime: "10:00", Address: "1 Main St",
		Status: models.StatusPending, TotalAmount: 158, EstimatedPrice: 158, Version: 3,
	}
}

func TestSupabaseNeedsSession(t *testing.T) {
	s, err := NewSupabase("http://127.0.0.1:1", "anon-key")
	require.NoError(t, err)

	_, err = s.CreateBooking(context.Background(), &models.Booking{})
	assert.ErrorIs(t, err, mirror.ErrUnauthorized)
	assert.ErrorIs(t, s.DeleteBooking(context.Background(), 1), mirror.ErrUnauthorized)

	_, err = s.List(context.Background(), "invoices", realtime.Filter{})
	assert.ErrorIs(t, err, mirror.ErrUnknownTable)
}

func TestSupabaseValidatesBeforeWriting(t *testing.T) {
	s, rest := newFakeSupabase(t, inspectionRow())

	_, err := s.CreateBooking(context.Background(), &models.Booking{ServiceType: models.ServiceTypeDeepCleaning})
	assert.ErrorIs(t, err, mirror.ErrValidation)

	_, err = s.UpdateInspectionPrice(context.Background(), 5, -1)
	assert.ErrorIs(t, err, mirror.ErrValidation)
	assert.Empty(t, rest.patched)
}

func TestSupabaseInspectionPriceUsesVersion(t *testing.T) {
	s, rest := newFakeSupabase(t, inspectionRow())

	updated, err := s.UpdateInspectionPrice(context.Background(), 5, 175)
	require.NoError(t, err)
	assert.Equal(t, 175.0, updated.TotalAmount)
	assert.Equal(t, int64(4), updated.Version)
	require.Len(t, rest.patched, 1)
	assert.Contains(t, rest.patched[0], "version=eq.3")
	assert.Contains(t, rest.patched[0], "id=eq.5")
}

func TestSupabaseInspectionPriceConflicts(t *testing.T) {
	laundry := inspectionRow()
	laundry.ServiceType = models.ServiceTypeLaundry
	s, rest := newFakeSupabase(t, laundry)

	_, err := s.UpdateInspectionPrice(context.Background(), 5, 175)
	assert.ErrorIs(t, err, mirror.ErrConflict)
	assert.Empty(t, rest.patched)

	s, rest = newFakeSupabase(t, inspectionRow())
	rest.stale = true
	_, err = s.UpdateInspectionPrice(context.Background(), 5, 175)
	assert.ErrorIs(t, err, mirror.ErrConflict)
}

func TestSupabaseTransitionGuard(t *testing.T) {
	done := inspectionRow()
	done.Status = models.StatusCompleted
	s, rest := newFakeSupabase(t, done)

	status := models.StatusPending
	_, err := s.UpdateBooking(context.Background(), 5, models.BookingPatch{Status: &status})
	assert.ErrorIs(t, err, mirror.ErrConflict)
	assert.Empty(t, rest.patched)
}

func TestPostgrestErrorMapping(t *testing.T) {
	cases := map[string]error{
		`(42501) permission denied for table bookings`: mirror.ErrForbidden,
		`(PGRST301) JWT expired`:                       mirror.ErrUnauthorized,
		`(23505) duplicate key value`:                  mirror.ErrConflict,
		`(23502) null value in column "address"`:       mirror.ErrValidation,
	}
	for text, want := range cases {
		assert.ErrorIs(t, postgrestError(errors.New(text)), want, text)
	}

	other := postgrestError(errors.New("connection reset"))
	assert.Contains(t, other.Error(), "supabase request failed")
}
