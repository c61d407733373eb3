package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sparkclean/internal/auth"
	"sparkclean/internal/config"
	"sparkclean/internal/database"
	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
	"sparkclean/internal/repository"
	"sparkclean/internal/service"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "sup3rsecret"

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	db     *database.DB
	hub    *realtime.Hub
	hasher *auth.Hasher
}

func newTestAPI(t *testing.T, tweak func(*config.Config)) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hub := realtime.NewHub(256, nil)
	t.Cleanup(hub.Close)

	cfg := &config.Config{}
	cfg.Auth.AccessTokenTTL = time.Hour
	cfg.Auth.LoginRateLimit = 100
	cfg.Auth.LoginRateWindow = time.Minute
	cfg.API.AllowedOrigins = []string{"http://localhost:5173"}
	if tweak != nil {
		tweak(cfg)
	}

	hasher := auth.NewFastHasher()
	svc := service.New(service.Deps{
		DB:       db,
		Sessions: repository.NewMemorySessionStore(),
		Hasher:   hasher,
		Tokens:   auth.NewTokenManager("test-secret", "sparkclean"),
		Changes:  hub,
		Config:   cfg,
		Logger:   &logger,
	})

	srv := httptest.NewServer(NewServer(cfg, svc, hub, db, nil).Handler())
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv, db: db, hub: hub, hasher: hasher}
}

func (a *testAPI) account(email, role string) int64 {
	a.t.Helper()
	hash, err := a.hasher.Hash(testPassword)
	require.NoError(a.t, err)
	u := &models.User{Email: email, PasswordHash: hash, FullName: "Test User", Role: role, EmailConfirmed: true}
	require.NoError(a.t, a.db.CreateUser(context.Background(), u))
	return u.ID
}

func (a *testAPI) signIn(email string) string {
	a.t.Helper()
	var res service.SignInResult
	status := a.call(http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": email, "password": testPassword}, &res)
	require.Equal(a.t, http.StatusOK, status)
	require.NotEmpty(a.t, res.AccessToken)
	return res.AccessToken
}

// call sends a JSON request and decodes the response into out when given.
func (a *testAPI) call(method, path, token string, body, out any) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func validBooking() map[string]any {
	return map[string]any{
		"service_type": models.ServiceTypeDeepCleaning,
		"booking_date": "2026-11-02",
		"booking_time": "10:00",
		"address":      "1 Main St",
		"total_amount": 120,
	}
}

func TestHealthAndReadiness(t *testing.T) {
	a := newTestAPI(t, nil)

	var body map[string]string
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/readyz", "", nil, &body))
	assert.Equal(t, "ready", body["status"])
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func TestReadinessReportsDatabaseDown(t *testing.T) {
	cfg := &config.Config{}
	s := NewServer(cfg, &service.Services{}, nil, failingPinger{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestSignInThenMe(t *testing.T) {
	a := newTestAPI(t, nil)
	id := a.account("jane@example.com", models.RoleCustomer)
	token := a.signIn("jane@example.com")

	var me models.User
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/me", token, nil, &me))
	assert.Equal(t, id, me.ID)
	assert.Equal(t, "jane@example.com", me.Email)
}

func TestAuthenticationErrors(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)

	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/api/v1/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/api/v1/me", "not-a-token", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodPost, "/api/v1/auth/signin", "",
		map[string]string{"email": "jane@example.com", "password": "wrong-password"}, nil))

	token := a.signIn("jane@example.com")
	assert.Equal(t, http.StatusNoContent, a.call(http.MethodPost, "/api/v1/auth/signout", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/api/v1/me", token, nil, nil))
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)

	status := a.call(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "jane@example.com", "password": testPassword, "full_name": "Jane",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestBookingOwnership(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)
	a.account("bob@example.com", models.RoleCustomer)
	a.account("admin@example.com", models.RoleAdmin)
	jane := a.signIn("jane@example.com")
	bob := a.signIn("bob@example.com")
	root := a.signIn("admin@example.com")

	var b models.Booking
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/bookings", jane, validBooking(), &b))
	assert.Equal(t, models.StatusPending, b.Status)
	path := fmt.Sprintf("/api/v1/bookings/%d", b.ID)

	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, path, bob, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodDelete, path, bob, nil, nil))

	var bobs []models.Booking
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/bookings", bob, nil, &bobs))
	assert.Empty(t, bobs)

	var all []models.Booking
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/bookings", root, nil, &all))
	assert.Len(t, all, 1)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/v1/admin/users", jane, nil, nil))
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/v1/admin/stats", jane, nil, nil))

	var confirmed models.Booking
	require.Equal(t, http.StatusOK, a.call(http.MethodPatch, path, root, map[string]string{"status": models.StatusConfirmed}, &confirmed))
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
}

func TestBookingValidation(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)
	token := a.signIn("jane@example.com")

	bad := validBooking()
	bad["booking_date"] = "02/11/2026"
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/bookings", token, bad, nil))

	unknown := validBooking()
	unknown["surprise"] = true
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/bookings", token, unknown, nil))

	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/api/v1/bookings/abc", token, nil, nil))
}

func TestInspectionBookingPrice(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)
	token := a.signIn("jane@example.com")

	var b models.Booking
	status := a.call(http.MethodPost, "/api/v1/bookings/inspection", token, models.InspectionRequest{
		Rooms:       models.InspectionRooms{Kitchens: 2, Bathrooms: 1, Bedrooms: 3, LivingRooms: 1},
		Urgency:     models.UrgencyUrgent,
		BookingDate: "2026-11-03",
		BookingTime: "09:00",
		Address:     "5 Elm St",
	}, &b)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 158.0, b.TotalAmount)
	assert.Equal(t, models.ServiceTypePropertyInspection, b.ServiceType)
}

func TestSetDefaultAddressLeavesOneDefault(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)
	token := a.signIn("jane@example.com")

	var first, second models.Address
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/addresses", token,
		map[string]any{"street": "1 Main St", "city": "Springfield", "is_default": true}, &first))
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/addresses", token,
		map[string]any{"street": "2 Oak Ave", "city": "Springfield"}, &second))

	var addrs []models.Address
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, fmt.Sprintf("/api/v1/addresses/%d/default", second.ID), token, nil, &addrs))
	require.Len(t, addrs, 2)
	defaults := 0
	for _, addr := range addrs {
		if addr.IsDefault {
			defaults++
			assert.Equal(t, second.ID, addr.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestTicketPendingStoredAsOpen(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)
	a.account("admin@example.com", models.RoleAdmin)
	jane := a.signIn("jane@example.com")
	root := a.signIn("admin@example.com")

	var ticket models.SupportTicket
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/support/tickets", jane,
		map[string]string{"subject": "Late cleaner", "description": "Nobody came"}, &ticket))
	path := fmt.Sprintf("/api/v1/support/tickets/%d", ticket.ID)

	var updated models.SupportTicket
	require.Equal(t, http.StatusOK, a.call(http.MethodPatch, path, root, map[string]string{"status": models.TicketInProgress}, &updated))
	require.Equal(t, http.StatusOK, a.call(http.MethodPatch, path, root, map[string]string{"status": "pending"}, &updated))
	assert.Equal(t, models.TicketOpen, updated.Status)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPatch, path, jane, map[string]string{"status": models.TicketInProgress}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPatch, path, root, map[string]string{"status": "snoozed"}, nil))
}

func TestCORSPreflight(t *testing.T) {
	a := newTestAPI(t, nil)

	req, err := http.NewRequest(http.MethodOptions, a.srv.URL+"/api/v1/bookings", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	req, err = http.NewRequest(http.MethodGet, a.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = a.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestIDEchoed(t *testing.T) {
	a := newTestAPI(t, nil)

	req, err := http.NewRequest(http.MethodGet, a.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))

	resp, err = a.srv.Client().Get(a.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, func(cfg *config.Config) {
		cfg.API.RateLimit.RPS = 0.001
		cfg.API.RateLimit.Burst = 2
	})

	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, a.call(http.MethodGet, "/healthz", "", nil, nil))
}

func TestExportBookingsWorkbook(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)
	a.account("admin@example.com", models.RoleAdmin)
	jane := a.signIn("jane@example.com")
	root := a.signIn("admin@example.com")
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/bookings", jane, validBooking(), nil))

	req, err := http.NewRequest(http.MethodGet, a.srv.URL+"/api/v1/admin/bookings/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+root)
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")
}

func TestRealtimeDeliversOwnChanges(t *testing.T) {
	a := newTestAPI(t, nil)
	a.account("jane@example.com", models.RoleCustomer)
	a.account("bob@example.com", models.RoleCustomer)
	jane := a.signIn("jane@example.com")
	bob := a.signIn("bob@example.com")

	url := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/api/v1/realtime?access_token=" + jane
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type": "subscribe", "ref": "r1",
		"payload": map[string]any{"table": models.TableBookings},
	}))
	var ack realtime.Message
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&ack))
	require.Equal(t, realtime.MessageSubscribed, ack.Type)

	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/bookings", bob, validBooking(), nil))
	var mine models.Booking
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/bookings", jane, validBooking(), &mine))

	var msg realtime.Message
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&msg))
	require.Equal(t, realtime.MessageChange, msg.Type)
	var change models.Change
	require.NoError(t, json.Unmarshal(msg.Payload, &change))
	assert.Equal(t, mine.ID, change.RecordID)
	assert.Equal(t, models.ChangeInsert, change.Type)
}

func TestRealtimeRequiresValidToken(t *testing.T) {
	a := newTestAPI(t, nil)

	url := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/api/v1/realtime?access_token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
