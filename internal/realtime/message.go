package realtime

import (
	"encoding/json"
	"fmt"
)

const (
	MessageSubscribe    = "subscribe"
	MessageUnsubscribe  = "unsubscribe"
	MessageSubscribed   = "subscribed"
	MessageUnsubscribed = "unsubscribed"
	MessageChange       = "change"
	MessageError        = "error"
)

// Message is the websocket envelope. Ref correlates a subscribe request with
// its ack and carries the subscription id on change messages.
type Message struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	Table  string   `json:"table"`
	Filter string   `json:"filter,omitempty"`
	Events []string `json:"events,omitempty"`
}

// SubscribedPayload acknowledges a subscription. Filter is the filter actually
// applied, which may be narrower than the one requested.
type SubscribedPayload struct {
	ID     string `json:"id"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type UnsubscribePayload struct {
	ID string `json:"id"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage encodes a message with the payload marshalled to JSON.
func NewMessage(messageType, ref string, payload interface{}) ([]byte, error) {
	msg := Message{Type: messageType, Ref: ref}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", messageType, err)
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}

func NewErrorMessage(ref, text string) []byte {
	data, _ := NewMessage(MessageError, ref, ErrorPayload{Error: text})
	return data
}
