package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority levels for notifications
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Category groups notifications by business area
type Category string

const (
	CategoryLeave          Category = "leave"
	CategoryTimecard       Category = "timecard"
	CategorySchedule       Category = "schedule"
	CategoryAttendance     Category = "attendance"
	CategoryUrgentApproval Category = "urgent_approval"
	CategorySystem         Category = "system"
)

// ManagerVisibleCategories is the slice of team notifications a department
// manager may see on top of their own rows.
var ManagerVisibleCategories = []Category{
	CategoryLeave,
	CategoryTimecard,
	CategoryAttendance,
	CategoryUrgentApproval,
}

// Well-known type names emitted by the leave workflows.
const (
	TypeLeaveApprovalRequired = "leave_approval_required"
	TypeLeaveStatus           = "leave_status"
	TypeTimecardMissing       = "timecard_missing"
	TypeSchedulePublished     = "schedule_published"
	TypeSystemAnnouncement    = "system_announcement"
)

// NotificationType is a registered kind of notification. Types are seeded at
// startup and registered lazily by name on first use.
type NotificationType struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Icon        string    `json:"icon" db:"icon"`
	Color       string    `json:"color" db:"color"`
	Priority    Priority  `json:"priority" db:"priority"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// HumanizeTypeName derives a display name from a type key:
// "shift_swap_request" becomes "Shift Swap Request".
func HumanizeTypeName(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Notification is an in-app message owned by exactly one recipient.
type Notification struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	UserID            uuid.UUID  `json:"user_id" db:"user_id"`
	TypeID            uuid.UUID  `json:"type_id" db:"type_id"`
	Title             string     `json:"title" db:"title"`
	Message           string     `json:"message" db:"message"`
	ActionURL         *string    `json:"action_url,omitempty" db:"action_url"`
	ActionText        *string    `json:"action_text,omitempty" db:"action_text"`
	Priority          Priority   `json:"priority" db:"priority"`
	Category          *Category  `json:"category,omitempty" db:"category"`
	RelatedEntityType *string    `json:"related_entity_type,omitempty" db:"related_entity_type"`
	RelatedEntityID   *uuid.UUID `json:"related_entity_id,omitempty" db:"related_entity_id"`
	IsRead            bool       `json:"is_read" db:"is_read"`
	ReadAt            *time.Time `json:"read_at,omitempty" db:"read_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`

	// Joined projections, populated on reads only.
	Type *NotificationType `json:"type,omitempty" db:"-"`
	User *UserRef          `json:"user,omitempty" db:"-"`
}

// Expired reports whether the notification has an expiry in the past.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// NotificationPreference holds per-user, per-type channel opt-ins. At most one
// row exists per (user, type) pair; updates are upserts.
type NotificationPreference struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	TypeID       uuid.UUID `json:"type_id" db:"type_id"`
	WebEnabled   bool      `json:"web_enabled" db:"web_enabled"`
	EmailEnabled bool      `json:"email_enabled" db:"email_enabled"`
	SMSEnabled   bool      `json:"sms_enabled" db:"sms_enabled"`
	Immediate    bool      `json:"immediate" db:"immediate"`
	DailyDigest  bool      `json:"daily_digest" db:"daily_digest"`
	WeeklyDigest bool      `json:"weekly_digest" db:"weekly_digest"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	Type *NotificationType `json:"type,omitempty" db:"-"`
}

// DefaultPreference returns the preference applied when a user has no stored
// row for a type: web on, everything else off, immediate delivery.
func DefaultPreference(userID, typeID uuid.UUID) *NotificationPreference {
	return &NotificationPreference{
		UserID:     userID,
		TypeID:     typeID,
		WebEnabled: true,
		Immediate:  true,
	}
}

// CreateNotificationRequest is the payload for direct notification creation.
type CreateNotificationRequest struct {
	UserID            uuid.UUID  `json:"user_id" binding:"required"`
	TypeName          string     `json:"type_name" binding:"required"`
	Title             string     `json:"title" binding:"required"`
	Message           string     `json:"message" binding:"required"`
	ActionURL         *string    `json:"action_url"`
	ActionText        *string    `json:"action_text"`
	Priority          Priority   `json:"priority" binding:"omitempty,notifpriority"`
	Category          *Category  `json:"category" binding:"omitempty,notifcategory"`
	RelatedEntityType *string    `json:"related_entity_type"`
	RelatedEntityID   *uuid.UUID `json:"related_entity_id"`
	ExpiresHours      *int       `json:"expires_hours" binding:"omitempty,min=1"`
}

// UpdatePreferenceRequest carries partial preference flags; nil fields keep
// the stored (or default) value.
type UpdatePreferenceRequest struct {
	WebEnabled   *bool `json:"web_enabled"`
	EmailEnabled *bool `json:"email_enabled"`
	SMSEnabled   *bool `json:"sms_enabled"`
	Immediate    *bool `json:"immediate"`
	DailyDigest  *bool `json:"daily_digest"`
	WeeklyDigest *bool `json:"weekly_digest"`
}

// ListOptions narrows a notification listing.
type ListOptions struct {
	Limit      int
	UnreadOnly bool
	Category   *Category
}
