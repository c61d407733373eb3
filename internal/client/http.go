package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sparkclean/internal/mirror"
	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
	"sparkclean/internal/service"
)

const defaultTimeout = 15 * time.Second

// Client talks to the sparkclean HTTP API and implements mirror.Backend.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	token   string
	session *models.Session
}

var _ mirror.Backend = (*Client)(nil)

// New returns a client for the API served at baseURL (scheme and host; the
// /api/v1 prefix is added).
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/") + "/api/v1", http: httpClient}
}

// Token returns the bearer token of the current session, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) isAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && c.session.Role == models.RoleAdmin
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var res service.SignInResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, fmt.Errorf("sign in answered without a user")
	}
	session := &models.Session{UserID: res.User.ID, Email: res.User.Email, Role: res.User.Role, ExpiresAt: res.ExpiresAt}
	c.mu.Lock()
	c.token = res.AccessToken
	c.session = session
	c.mu.Unlock()
	return session, nil
}

// SignOut revokes the session. Without a session it does nothing.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
	c.mu.Lock()
	c.token = ""
	c.session = nil
	c.mu.Unlock()
	return err
}

var listPaths = map[string]string{
	models.TableBookings:           "/bookings",
	models.TableAddresses:          "/addresses",
	models.TableServices:           "/services?include_inactive=true",
	models.TableContactMessages:    "/admin/contact-messages",
	models.TablePickupDeliveries:   "/pickups",
	models.TableUserComplaints:     "/complaints",
	models.TableSupportTickets:     "/support/tickets",
	models.TableChatSessions:       "/admin/chat/sessions",
	models.TableAdminNotifications: "/admin/notifications",
	models.TableGalleryImages:      "/gallery",
}

func (c *Client) List(ctx context.Context, table string, filter realtime.Filter) ([]json.RawMessage, error) {
	var path string
	switch table {
	case models.TableUsers:
		if !c.isAdmin() {
			var me json.RawMessage
			if err := c.do(ctx, http.MethodGet, "/me", nil, &me); err != nil {
				return nil, err
			}
			return selectRows([]json.RawMessage{me}, table, filter), nil
		}
		path = "/admin/users"
	case models.TableSupportMessages:
		id, err := threadID(filter, "ticket_id")
		if err != nil {
			return nil, err
		}
		path = fmt.Sprintf("/support/tickets/%d/messages", id)
	case models.TableChatMessages:
		id, err := threadID(filter, "session_id")
		if err != nil {
			return nil, err
		}
		path = fmt.Sprintf("/chat/sessions/%d/messages", id)
	default:
		p, ok := listPaths[table]
		if !ok {
			return nil, fmt.Errorf("%w: %s", mirror.ErrUnknownTable, table)
		}
		path = p
	}

	var rows []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return selectRows(rows, table, filter), nil
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}

func (c *Client) CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	var out models.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBooking(ctx context.Context, id int64, patch models.BookingPatch) (*models.Booking, error) {
	var out models.Booking
	if err := c.do(ctx, http.MethodPatch, idPath("/bookings/%d", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBooking(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/bookings/%d", id), nil, nil)
}

func (c *Client) BookInspection(ctx context.Context, req models.InspectionRequest) (*models.Booking, error) {
	var out models.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings/inspection", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateInspectionPrice(ctx context.Context, id int64, price float64) (*models.Booking, error) {
	var out models.Booking
	body := map[string]float64{"price": price}
	if err := c.do(ctx, http.MethodPatch, idPath("/admin/bookings/%d/price", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch models.UserProfilePatch) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPatch, "/me", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdjustCredits(ctx context.Context, userID int64, delta float64) (*models.User, error) {
	var out models.User
	body := map[string]float64{"delta": delta}
	if err := c.do(ctx, http.MethodPatch, idPath("/admin/users/%d/credits", userID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAddress(ctx context.Context, a *models.Address) (*models.Address, error) {
	var out models.Address
	if err := c.do(ctx, http.MethodPost, "/addresses", a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error) {
	var out models.Address
	if err := c.do(ctx, http.MethodPatch, idPath("/addresses/%d", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetDefaultAddress(ctx context.Context, id int64) ([]models.Address, error) {
	var out []models.Address
	if err := c.do(ctx, http.MethodPost, idPath("/addresses/%d/default", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/addresses/%d", id), nil, nil)
}

func (c *Client) SubmitContact(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	var out models.ContactMessage
	if err := c.do(ctx, http.MethodPost, "/contact", m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateContactStatus(ctx context.Context, id int64, status string) (*models.ContactMessage, error) {
	var out models.ContactMessage
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPatch, idPath("/admin/contact-messages/%d", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SchedulePickup(ctx context.Context, p *models.PickupDelivery) (*models.PickupDelivery, error) {
	var out models.PickupDelivery
	if err := c.do(ctx, http.MethodPost, "/pickups", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePickupStatus(ctx context.Context, id int64, status, deliveryDate string) (*models.PickupDelivery, error) {
	var out models.PickupDelivery
	body := map[string]string{"status": status, "delivery_date": deliveryDate}
	if err := c.do(ctx, http.MethodPatch, idPath("/admin/pickups/%d", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FileComplaint(ctx context.Context, cm *models.UserComplaint) (*models.UserComplaint, error) {
	var out models.UserComplaint
	if err := c.do(ctx, http.MethodPost, "/complaints", cm, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateComplaintStatus(ctx context.Context, id int64, status string) (*models.UserComplaint, error) {
	var out models.UserComplaint
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPatch, idPath("/admin/complaints/%d", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RealtimeURL returns the websocket endpoint matching the API base URL.
func (c *Client) RealtimeURL() string {
	u, err := url.Parse(c.baseURL + "/realtime")
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}
