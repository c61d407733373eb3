package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"

	"github.com/rs/zerolog"
)

// SubscribedTables are followed for the whole life of the store.
var SubscribedTables = []string{
	models.TableBookings,
	models.TableContactMessages,
	models.TableUsers,
	models.TablePickupDeliveries,
	models.TableUserComplaints,
}

// refreshTables are fetched after sign in.
var refreshTables = append(append([]string(nil), SubscribedTables...), models.TableAddresses)

const keptRequests = 256

// Stats is the overview computed from mirrored rows.
type Stats struct {
	TotalBookings     int     `json:"total_bookings"`
	PendingBookings   int     `json:"pending_bookings"`
	CompletedBookings int     `json:"completed_bookings"`
	TotalRevenue      float64 `json:"total_revenue"`
	ActiveUsers       int     `json:"active_users"`
	NewMessages       int     `json:"new_messages"`
}

// Store mirrors the backend tables in memory. Every table has one copy keyed
// by id; CRUD results and realtime changes are merged into it through the same
// version check.
type Store struct {
	backend  Backend
	feed     Feed
	logger   *zerolog.Logger
	requests *requestTracker
	tables   map[string]table

	mu      sync.RWMutex
	session *models.Session
	subs    map[string]Subscription
	follows map[Subscription]struct{}
	wg      sync.WaitGroup
	closed  bool
}

func NewStore(backend Backend, feed Feed, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "mirror").Logger()
	return &Store{
		backend:  backend,
		feed:     feed,
		logger:   &l,
		requests: newRequestTracker(keptRequests),
		tables: map[string]table{
			models.TableUsers:              newTable[models.User](models.TableUsers),
			models.TableBookings:           newTable[models.Booking](models.TableBookings),
			models.TableServices:           newTable[models.Service](models.TableServices),
			models.TableContactMessages:    newTable[models.ContactMessage](models.TableContactMessages),
			models.TableAddresses:          newTable[models.Address](models.TableAddresses),
			models.TablePickupDeliveries:   newTable[models.PickupDelivery](models.TablePickupDeliveries),
			models.TableUserComplaints:     newTable[models.UserComplaint](models.TableUserComplaints),
			models.TableSupportTickets:     newTable[models.SupportTicket](models.TableSupportTickets),
			models.TableSupportMessages:    newTable[models.SupportMessage](models.TableSupportMessages),
			models.TableChatSessions:       newTable[models.ChatSession](models.TableChatSessions),
			models.TableChatMessages:       newTable[models.ChatMessage](models.TableChatMessages),
			models.TableAdminNotifications: newTable[models.AdminNotification](models.TableAdminNotifications),
			models.TableGalleryImages:      newTable[models.GalleryImage](models.TableGalleryImages),
		},
		subs:    make(map[string]Subscription),
		follows: make(map[Subscription]struct{}),
	}
}

// TableOf returns the typed table registered under name.
func TableOf[T models.Record](s *Store, name string) (*Table[T], error) {
	raw, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	t, ok := raw.(*Table[T])
	if !ok {
		var zero T
		return nil, fmt.Errorf("table %s does not hold %T", name, zero)
	}
	return t, nil
}

func mustTable[T models.Record](s *Store, name string) *Table[T] {
	t, err := TableOf[T](s, name)
	if err != nil {
		panic(err)
	}
	return t
}

func (s *Store) Bookings() *Table[models.Booking] {
	return mustTable[models.Booking](s, models.TableBookings)
}

func (s *Store) Users() *Table[models.User] {
	return mustTable[models.User](s, models.TableUsers)
}

func (s *Store) Addresses() *Table[models.Address] {
	return mustTable[models.Address](s, models.TableAddresses)
}

func (s *Store) ContactMessages() *Table[models.ContactMessage] {
	return mustTable[models.ContactMessage](s, models.TableContactMessages)
}

func (s *Store) PickupDeliveries() *Table[models.PickupDelivery] {
	return mustTable[models.PickupDelivery](s, models.TablePickupDeliveries)
}

func (s *Store) Complaints() *Table[models.UserComplaint] {
	return mustTable[models.UserComplaint](s, models.TableUserComplaints)
}

// Start signs out any session the backend still holds, so nobody is signed
// in silently, and opens the store subscriptions.
func (s *Store) Start(ctx context.Context) error {
	id := s.requests.begin(ctx, "sign_out")
	err := s.backend.SignOut(ctx)
	if errors.Is(err, ErrUnauthorized) {
		err = nil
	}
	s.requests.finish(id, err)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	s.setSession(nil)
	s.resubscribe(ctx)
	return nil
}

func (s *Store) Session() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	session := *s.session
	return &session
}

func (s *Store) setSession(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// SignIn authenticates, drops rows mirrored for the previous session, follows
// the store tables with the new credentials and fetches them.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := track(s, ctx, "sign_in", func(ctx context.Context) (*models.Session, error) {
		return s.backend.SignIn(ctx, email, password)
	})
	if err != nil {
		return nil, err
	}
	s.setSession(session)
	s.resetTables()
	s.resubscribe(ctx)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("refresh after sign in")
	}
	return session, nil
}

func (s *Store) SignOut(ctx context.Context) error {
	id := s.requests.begin(ctx, "sign_out")
	err := s.backend.SignOut(ctx)
	s.requests.finishAllowingRefusal(id, err)
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	s.setSession(nil)
	s.resetTables()
	s.resubscribe(ctx)
	return nil
}

// Refresh refetches the store tables. Tables the session may not read are
// skipped.
func (s *Store) Refresh(ctx context.Context) error {
	var errs []error
	for _, name := range refreshTables {
		t := s.tables[name]
		mark := t.mark()
		id := s.requests.begin(ctx, "fetch "+name)
		rows, err := s.backend.List(ctx, name, realtime.Filter{})
		if err == nil {
			err = t.replace(rows, mark)
		}
		s.requests.finishAllowingRefusal(id, err)
		if err != nil && !refused(err) {
			errs = append(errs, fmt.Errorf("failed to fetch %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Request returns a tracked request by id.
func (s *Store) Request(id string) (Request, bool) {
	return s.requests.get(id)
}

// Pending returns the requests still in flight.
func (s *Store) Pending() []Request {
	return s.requests.list(func(r *Request) bool { return r.State == RequestPending })
}

// Failed returns the recent requests that failed.
func (s *Store) Failed() []Request {
	return s.requests.list(func(r *Request) bool { return r.State == RequestFailed })
}

// Refused returns the recent requests the session was not allowed to make.
func (s *Store) Refused() []Request {
	return s.requests.list(func(r *Request) bool { return r.State == RequestRefused })
}

func (s *Store) Loading() bool {
	return len(s.Pending()) > 0
}

// Stats recomputes the overview from the mirrored rows. Revenue counts
// completed bookings only.
func (s *Store) Stats() Stats {
	var st Stats
	for _, b := range s.Bookings().List() {
		st.TotalBookings++
		switch b.Status {
		case models.StatusPending:
			st.PendingBookings++
		case models.StatusCompleted:
			st.CompletedBookings++
			st.TotalRevenue += b.TotalAmount
		}
	}
	st.ActiveUsers = s.Users().Len()
	st.NewMessages = len(s.ContactMessages().Filter(func(m models.ContactMessage) bool {
		return m.Status == models.ContactNew
	}))
	return st
}

// Close ends every subscription and view.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	subs := make([]Subscription, 0, len(s.follows))
	for sub := range s.follows {
		subs = append(subs, sub)
	}
	s.follows = make(map[Subscription]struct{})
	s.subs = make(map[string]Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close subscription")
		}
	}
	s.wg.Wait()
	for _, t := range s.tables {
		t.closeViews()
	}
	return nil
}

func (s *Store) resetTables() {
	for _, t := range s.tables {
		t.reset()
	}
}

// resubscribe replaces the store subscriptions. A table the session may not
// follow is left unsubscribed.
func (s *Store) resubscribe(ctx context.Context) {
	s.mu.Lock()
	old := s.subs
	s.subs = make(map[string]Subscription)
	s.mu.Unlock()
	for _, sub := range old {
		if err := s.unfollow(sub); err != nil {
			s.logger.Warn().Err(err).Msg("close subscription")
		}
	}

	for _, name := range SubscribedTables {
		id := s.requests.begin(ctx, "subscribe "+name)
		sub, err := s.feed.Subscribe(ctx, name, realtime.Filter{})
		s.requests.finishAllowingRefusal(id, err)
		if err != nil {
			s.logger.Debug().Err(err).Str("table", name).Msg("subscription refused")
			continue
		}
		s.mu.Lock()
		s.subs[name] = sub
		s.mu.Unlock()
		s.follow(s.tables[name], sub)
	}
}

func (s *Store) subscribed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subs[name]
	return ok
}

// follow merges the changes of sub into t until sub ends.
func (s *Store) follow(t table, sub Subscription) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Close()
		return
	}
	s.follows[sub] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for ch := range sub.Changes() {
			if _, err := t.apply(ch); err != nil {
				s.logger.Warn().Err(err).Str("table", t.Name()).Int64("seq", ch.Seq).Msg("skip change")
			}
		}
	}()
}

func (s *Store) unfollow(sub Subscription) error {
	s.mu.Lock()
	_, ok := s.follows[sub]
	delete(s.follows, sub)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.Close()
}

// track runs one backend call as a tracked request.
func track[R any](s *Store, ctx context.Context, op string, fn func(context.Context) (R, error)) (R, error) {
	id := s.requests.begin(ctx, op)
	r, err := fn(ctx)
	s.requests.finish(id, err)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}
