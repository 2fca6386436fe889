package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Leave application status constants
const (
	LeaveStatusPending   = "Pending"
	LeaveStatusApproved  = "Approved"
	LeaveStatusRejected  = "Rejected"
	LeaveStatusCancelled = "Cancelled"
)

// LeaveApplication is a request for time off. Owned by the leave subsystem;
// the notification service only reads it.
type LeaveApplication struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	LeaveTypeName *string   `json:"leave_type_name" db:"leave_type_name"`
	StartDate     time.Time `json:"start_date" db:"start_date"`
	EndDate       time.Time `json:"end_date" db:"end_date"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	// Joined requester, populated on reads.
	User *User `json:"user,omitempty" db:"-"`
}

// TotalDays is the inclusive calendar day count: Monday through Friday is 5.
func (l *LeaveApplication) TotalDays() int {
	days := int(math.Ceil(l.EndDate.Sub(l.StartDate).Hours()/24)) + 1
	if days < 1 {
		return 1
	}
	return days
}

// LeaveTypeLabel names the leave kind for messages, defaulting to "leave".
func (l *LeaveApplication) LeaveTypeLabel() string {
	if l.LeaveTypeName != nil && *l.LeaveTypeName != "" {
		return *l.LeaveTypeName
	}
	return "leave"
}
