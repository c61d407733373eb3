package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"sparkclean/internal/mirror"
	"sparkclean/internal/models"
	"sparkclean/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const feedBuffer = 64

var errFeedClosed = errors.New("realtime connection closed")

// Feed subscribes to table changes over the realtime websocket endpoint.
// All subscriptions share one connection, which is redialed when the bearer
// token changes.
type Feed struct {
	url    string
	token  func() string
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *feedConn
	closed  bool
	nextRef int
}

var _ mirror.Feed = (*Feed)(nil)

// NewFeed returns a feed for the websocket endpoint at url. token is asked for
// the current bearer token before every subscription.
func NewFeed(url string, token func() string, logger *zerolog.Logger) *Feed {
	if token == nil {
		token = func() string { return "" }
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Feed{
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logger.With().Str("component", "realtime_feed").Logger(),
	}
}

type ackResult struct {
	sub *feedSubscription
	err error
}

// feedConn is one websocket connection and the subscriptions riding on it.
type feedConn struct {
	ws     *websocket.Conn
	token  string
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan ackResult
	subs    map[string]*feedSubscription
	done    chan struct{}
}

func (f *Feed) connect(ctx context.Context) (*feedConn, string, error) {
	token := f.token()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, "", errFeedClosed
	}
	f.nextRef++
	ref := "r" + strconv.Itoa(f.nextRef)

	if f.conn != nil {
		select {
		case <-f.conn.done:
			f.conn = nil
		default:
			if f.conn.token == token {
				return f.conn, ref, nil
			}
			f.conn.close()
			f.conn = nil
		}
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, "", fmt.Errorf("%w: %v", mirror.ErrUnauthorized, err)
		}
		return nil, "", fmt.Errorf("failed to dial %s: %w", f.url, err)
	}
	c := &feedConn{
		ws:      ws,
		token:   token,
		logger:  f.logger,
		pending: make(map[string]chan ackResult),
		subs:    make(map[string]*feedSubscription),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	f.conn = c
	return c, ref, nil
}

func (f *Feed) Subscribe(ctx context.Context, table string, filter realtime.Filter) (mirror.Subscription, error) {
	c, ref, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}

	wait := make(chan ackResult, 1)
	c.mu.Lock()
	c.pending[ref] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, ref)
		c.mu.Unlock()
	}()

	msg, err := realtime.NewMessage(realtime.MessageSubscribe, ref, realtime.SubscribePayload{Table: table, Filter: filter.String()})
	if err != nil {
		return nil, err
	}
	if err := c.write(msg); err != nil {
		return nil, err
	}

	select {
	case res := <-wait:
		if res.err != nil {
			return nil, res.err
		}
		return res.sub, nil
	case <-c.done:
		return nil, errFeedClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops the connection and ends every subscription.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.conn != nil {
		f.conn.close()
		f.conn = nil
	}
	return nil
}

func (c *feedConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send realtime message: %w", err)
	}
	return nil
}

func (c *feedConn) close() {
	_ = c.ws.Close()
}

func (c *feedConn) readLoop() {
	defer c.shutdown()
	for {
		var msg realtime.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("realtime connection ended")
			}
			return
		}
		c.route(msg)
	}
}

func (c *feedConn) route(msg realtime.Message) {
	switch msg.Type {
	case realtime.MessageSubscribed:
		var p realtime.SubscribedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.answer(msg.Ref, ackResult{err: fmt.Errorf("bad subscribe ack: %w", err)})
			return
		}
		sub := &feedSubscription{conn: c, id: p.ID, table: p.Table, ch: make(chan models.Change, feedBuffer)}
		c.mu.Lock()
		c.subs[p.ID] = sub
		c.mu.Unlock()
		if !c.answer(msg.Ref, ackResult{sub: sub}) {
			sub.Close()
		}
	case realtime.MessageChange:
		var ch models.Change
		if err := json.Unmarshal(msg.Payload, &ch); err != nil {
			c.logger.Warn().Err(err).Str("subscription", msg.Ref).Msg("discarding malformed change")
			return
		}
		if slow := c.deliver(msg.Ref, ch); slow != nil {
			c.logger.Warn().Str("subscription", slow.id).Str("table", slow.table).Msg("subscriber too slow, closing subscription")
			slow.Close()
		}
	case realtime.MessageError:
		var p realtime.ErrorPayload
		_ = json.Unmarshal(msg.Payload, &p)
		if c.answer(msg.Ref, ackResult{err: subscribeError(p.Error)}) {
			return
		}
		c.mu.Lock()
		sub := c.subs[msg.Ref]
		c.mu.Unlock()
		if sub != nil {
			c.logger.Debug().Str("subscription", sub.id).Str("reason", p.Error).Msg("subscription ended by server")
			sub.end()
		}
	}
}

// deliver sends ch to the subscription without blocking. The send happens
// under c.mu, which end also holds while closing the channel. A subscriber
// whose buffer is full is returned for closing.
func (c *feedConn) deliver(id string, ch models.Change) *feedSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.subs[id]
	if sub == nil {
		return nil
	}
	select {
	case sub.ch <- ch:
		return nil
	default:
		return sub
	}
}

// answer hands an ack to the Subscribe call waiting on ref.
func (c *feedConn) answer(ref string, res ackResult) bool {
	c.mu.Lock()
	wait, ok := c.pending[ref]
	delete(c.pending, ref)
	c.mu.Unlock()
	if !ok {
		return false
	}
	wait <- res
	return true
}

func (c *feedConn) shutdown() {
	c.mu.Lock()
	subs := make([]*feedSubscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.end()
	}
	close(c.done)
	_ = c.ws.Close()
}

func subscribeError(text string) error {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "unauthorized"):
		return fmt.Errorf("%w: %s", mirror.ErrUnauthorized, text)
	case strings.Contains(lower, "forbidden"):
		return fmt.Errorf("%w: %s", mirror.ErrForbidden, text)
	case strings.Contains(lower, "unknown table"):
		return fmt.Errorf("%w: %s", mirror.ErrUnknownTable, text)
	default:
		return fmt.Errorf("subscribe refused: %s", text)
	}
}

type feedSubscription struct {
	conn  *feedConn
	id    string
	table string
	ch    chan models.Change
	ended bool // guarded by conn.mu
}

func (s *feedSubscription) Changes() <-chan models.Change { return s.ch }

// end forgets the subscription locally and closes its channel.
func (s *feedSubscription) end() bool {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	delete(s.conn.subs, s.id)
	close(s.ch)
	return true
}

// Close ends the subscription and asks the server to drop it.
func (s *feedSubscription) Close() error {
	if !s.end() {
		return nil
	}
	select {
	case <-s.conn.done:
		return nil
	default:
	}
	msg, err := realtime.NewMessage(realtime.MessageUnsubscribe, "", realtime.UnsubscribePayload{ID: s.id})
	if err != nil {
		return err
	}
	if err := s.conn.write(msg); err != nil {
		s.conn.logger.Debug().Err(err).Str("subscription", s.id).Msg("unsubscribe not sent")
	}
	return nil
}
