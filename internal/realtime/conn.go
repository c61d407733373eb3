package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sparkclean/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Authorizer checks a subscription request and returns the filter to apply.
// It may narrow the requested filter or refuse the table.
type Authorizer func(table string, requested Filter) (Filter, error)

// Conn serves one websocket connection: it reads subscribe/unsubscribe
// requests and writes acks and changes.
type Conn struct {
	hub       *Hub
	ws        *websocket.Conn
	send      chan []byte
	authorize Authorizer
	logger    *zerolog.Logger

	mu     sync.Mutex
	subs   map[string]*Subscription
	done   chan struct{}
	closer sync.Once
}

func NewConn(hub *Hub, ws *websocket.Conn, authorize Authorizer, logger *zerolog.Logger) *Conn {
	if authorize == nil {
		authorize = func(_ string, f Filter) (Filter, error) { return f, nil }
	}
	return &Conn{
		hub:       hub,
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		authorize: authorize,
		logger:    logger,
		subs:      make(map[string]*Subscription),
		done:      make(chan struct{}),
	}
}

// Serve runs the pumps until the peer disconnects.
func (c *Conn) Serve() {
	go c.writePump()
	c.readPump()
}

func (c *Conn) close() {
	c.closer.Do(func() {
		close(c.done)
		c.mu.Lock()
		for id, sub := range c.subs {
			c.hub.Unsubscribe(sub)
			delete(c.subs, id)
		}
		c.mu.Unlock()
		c.ws.Close()
	})
}

// enqueue hands a frame to the write pump. A peer that cannot keep up is
// disconnected.
func (c *Conn) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn().Msg("websocket send buffer full, closing connection")
		c.close()
	}
}

func (c *Conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(NewErrorMessage("", "malformed message"))
			continue
		}
		c.handle(msg)
	}
}

func (c *Conn) handle(msg Message) {
	switch msg.Type {
	case MessageSubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Table == "" {
			c.enqueue(NewErrorMessage(msg.Ref, "subscribe requires a table"))
			return
		}
		if err := c.subscribe(msg.Ref, p); err != nil {
			c.enqueue(NewErrorMessage(msg.Ref, err.Error()))
		}
	case MessageUnsubscribe:
		var p UnsubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.enqueue(NewErrorMessage(msg.Ref, "unsubscribe requires an id"))
			return
		}
		c.mu.Lock()
		sub, ok := c.subs[p.ID]
		delete(c.subs, p.ID)
		c.mu.Unlock()
		if !ok {
			c.enqueue(NewErrorMessage(msg.Ref, "unknown subscription"))
			return
		}
		c.hub.Unsubscribe(sub)
		data, _ := NewMessage(MessageUnsubscribed, msg.Ref, p)
		c.enqueue(data)
	default:
		c.enqueue(NewErrorMessage(msg.Ref, fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (c *Conn) subscribe(ref string, p SubscribePayload) error {
	requested, err := ParseFilter(p.Filter)
	if err != nil {
		return err
	}
	filter, err := c.authorize(p.Table, requested)
	if err != nil {
		return err
	}

	events := make([]models.ChangeType, 0, len(p.Events))
	for _, e := range p.Events {
		switch t := models.ChangeType(e); t {
		case models.ChangeInsert, models.ChangeUpdate, models.ChangeDelete:
			events = append(events, t)
		case "*":
		default:
			return fmt.Errorf("unknown event %q", e)
		}
	}

	sub := c.hub.Subscribe(p.Table, filter, events...)
	c.mu.Lock()
	c.subs[sub.ID] = sub
	c.mu.Unlock()

	ack, err := NewMessage(MessageSubscribed, ref, SubscribedPayload{ID: sub.ID, Table: sub.Table, Filter: filter.String()})
	if err != nil {
		return err
	}
	c.enqueue(ack)

	go c.forward(sub)
	return nil
}

// forward copies changes of one subscription to the socket until it ends.
func (c *Conn) forward(sub *Subscription) {
	for ch := range sub.Changes() {
		data, err := NewMessage(MessageChange, sub.ID, ch)
		if err != nil {
			c.logger.Error().Err(err).Msg("encode change")
			continue
		}
		c.enqueue(data)
	}

	c.mu.Lock()
	_, active := c.subs[sub.ID]
	delete(c.subs, sub.ID)
	c.mu.Unlock()
	if active {
		// The hub dropped the subscription; tell the peer so it can resubscribe.
		c.enqueue(NewErrorMessage(sub.ID, "subscription dropped"))
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
