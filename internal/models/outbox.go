package models

import "time"

// OutboxTask represents a queued side effect (email, admin ping, ledger row).
type OutboxTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	ReferenceID int64      `json:"reference_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

const (
	OutboxPending   = "pending"
	OutboxRetry     = "retry"
	OutboxCompleted = "completed"
	OutboxFailed    = "failed"
)

// Outbox task types.
const (
	TaskEmailConfirmation  = "email_confirmation"
	TaskEmailPasswordReset = "email_password_reset"
	TaskAdminEmail         = "admin_email"
	TaskTelegramNotify     = "telegram_notify"
	TaskSheetsUpsert       = "sheets_upsert"
	TaskSheetsDelete       = "sheets_delete"
)

// EmailTask is the payload of the email task types.
type EmailTask struct {
	To        string `json:"to"`
	Name      string `json:"name"`
	ActionURL string `json:"action_url,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
}

// TelegramTask is the payload of TaskTelegramNotify.
type TelegramTask struct {
	Text string `json:"text"`
}
