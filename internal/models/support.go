package models

import "time"

type SupportTicket struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t SupportTicket) RecordID() int64            { return t.ID }
func (t SupportTicket) RecordUpdatedAt() time.Time { return t.UpdatedAt }

type SupportMessage struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	SenderID   int64     `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (m SupportMessage) RecordID() int64            { return m.ID }
func (m SupportMessage) RecordUpdatedAt() time.Time { return m.UpdatedAt }

type ChatSession struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	Status          string     `json:"status"`
	AssignedAdminID *int64     `json:"assigned_admin_id,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s ChatSession) RecordID() int64            { return s.ID }
func (s ChatSession) RecordUpdatedAt() time.Time { return s.UpdatedAt }

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// NormalizeTicketStatus maps legacy labels onto the ticket enum. The second
// result is false for unknown statuses.
func NormalizeTicketStatus(status string) (string, bool) {
	switch status {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return status, true
	case "pending", "new":
		return TicketOpen, true
	default:
		return "", false
	}
}

// IsValidPriority reports whether p is a known ticket priority.
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type ChatMessage struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	SenderID   int64     `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (m ChatMessage) RecordID() int64            { return m.ID }
func (m ChatMessage) RecordUpdatedAt() time.Time { return m.UpdatedAt }

// IsValidChatStatus reports whether s is a known chat session status.
func IsValidChatStatus(s string) bool {
	switch s {
	case ChatActive, ChatWaiting, ChatClosed:
		return true
	}
	return false
}
