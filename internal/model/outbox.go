package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Outbox event types published by the notification service.
const (
	EventNotificationInApp = "notification.in_app"
	EventNotificationEmail = "notification.email"
)

// OutboxEvent is a pending side effect written in the same transaction as the
// state change that produced it. A background processor delivers it.
type OutboxEvent struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	EventType    string          `json:"event_type" db:"event_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	Status       OutboxStatus    `json:"status" db:"status"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	RetryCount   int             `json:"retry_count" db:"retry_count"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}

// NotificationEventPayload is the body of notification outbox events.
type NotificationEventPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	TypeName       string    `json:"type_name"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Priority       Priority  `json:"priority"`
	Email          string    `json:"email,omitempty"`
}
