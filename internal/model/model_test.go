package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHumanizeTypeName(t *testing.T) {
	cases := map[string]string{
		"leave_approval_required": "Leave Approval Required",
		"leave_status":            "Leave Status",
		"shift_swap":              "Shift Swap",
		"announcement":            "Announcement",
	}
	for in, want := range cases {
		assert.Equal(t, want, HumanizeTypeName(in))
	}
}

func TestLeaveApplicationTotalDays(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC)
	}

	cases := []struct {
		start, end time.Time
		want       int
	}{
		{day(7), day(11), 5},
		{day(7), day(7), 1},
		{day(11), day(7), 1}, // inverted range clamps to a single day
	}
	for _, tc := range cases {
		l := &LeaveApplication{StartDate: tc.start, EndDate: tc.end}
		assert.Equal(t, tc.want, l.TotalDays())
	}
}

func TestLeaveTypeLabel(t *testing.T) {
	annual := "Annual Leave"
	empty := ""
	assert.Equal(t, "Annual Leave", (&LeaveApplication{LeaveTypeName: &annual}).LeaveTypeLabel())
	assert.Equal(t, "leave", (&LeaveApplication{LeaveTypeName: &empty}).LeaveTypeLabel())
	assert.Equal(t, "leave", (&LeaveApplication{}).LeaveTypeLabel())
}

func TestDepartmentApproverIDs(t *testing.T) {
	manager := uuid.New()
	deputy := uuid.New()

	d := &Department{ManagerID: &manager, DeputyManagerID: &deputy}
	assert.ElementsMatch(t, []uuid.UUID{manager, deputy}, d.ApproverIDs())

	d = &Department{ManagerID: &manager, DeputyManagerID: &manager}
	assert.Equal(t, []uuid.UUID{manager}, d.ApproverIDs())

	d = &Department{DeputyManagerID: &deputy}
	assert.Equal(t, []uuid.UUID{deputy}, d.ApproverIDs())

	assert.Empty(t, (&Department{}).ApproverIDs())
}

func TestUserFullName(t *testing.T) {
	first, last, empty := "Ada", "Lovelace", ""

	u := &User{Username: "ada", FirstName: &first, LastName: &last}
	assert.Equal(t, "Ada Lovelace", u.FullName())

	u = &User{Username: "ada", FirstName: &first}
	assert.Equal(t, "ada", u.FullName())

	u = &User{Username: "ada", FirstName: &first, LastName: &empty}
	assert.Equal(t, "ada", u.FullName())
}

func TestNotificationExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&Notification{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&Notification{ExpiresAt: &future}).Expired(now))
	assert.False(t, (&Notification{}).Expired(now), "no expiry means permanent")
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleManager, ParseRole("manager"))
	assert.Equal(t, RoleSystemSuperAdmin, ParseRole("system_super_admin"))
	assert.Equal(t, RoleEmployee, ParseRole("something_else"))
}

func TestDefaultPreference(t *testing.T) {
	p := DefaultPreference(uuid.New(), uuid.New())
	assert.True(t, p.WebEnabled)
	assert.True(t, p.Immediate)
	assert.False(t, p.EmailEnabled)
	assert.False(t, p.SMSEnabled)
	assert.False(t, p.DailyDigest)
	assert.False(t, p.WeeklyDigest)
}
