package model

import (
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// Role is the closed set of roles the platform recognizes. Authorization
// decisions key off this enum, never off free-form strings from the request.
type Role string

const (
	RoleSystemSuperAdmin Role = "system_super_admin"
	RoleSuperUser        Role = "super_user"
	RoleAdmin            Role = "admin"
	RoleHR               Role = "hr"
	RoleManager          Role = "manager"
	RoleEmployee         Role = "employee"
)

// ParseRole maps a stored role string onto the enum. Unknown values fall back
// to the least-privileged role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSystemSuperAdmin, RoleSuperUser, RoleAdmin, RoleHR, RoleManager, RoleEmployee:
		return Role(s)
	}
	return RoleEmployee
}

// User represents a workforce member account
type User struct {
	Base
	Email            string     `json:"email" db:"email"`
	Username         string     `json:"username" db:"username"`
	Password         string     `json:"password,omitempty" db:"-"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	FirstName        *string    `json:"first_name" db:"first_name"`
	LastName         *string    `json:"last_name" db:"last_name"`
	Role             Role       `json:"role" db:"role"`
	DepartmentID     *uuid.UUID `json:"department_id" db:"department_id"`
	Status           string     `json:"status" db:"status"`
	LoginAttempts    int        `json:"-" db:"login_attempts"`
	LastLoginAttempt time.Time  `json:"-" db:"last_login_attempt"`
	LastLoginAt      *time.Time `json:"last_login_at" db:"last_login_at"`
}

// FullName returns "First Last" when both parts are present, otherwise the
// username. Notification messages always refer to people through this.
func (u *User) FullName() string {
	if u.FirstName != nil && u.LastName != nil && *u.FirstName != "" && *u.LastName != "" {
		return *u.FirstName + " " + *u.LastName
	}
	return u.Username
}

// UserRef is the minimal projection attached to notification rows.
type UserRef struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	FirstName *string   `json:"first_name" db:"first_name"`
	LastName  *string   `json:"last_name" db:"last_name"`
}

// Principal is the authenticated caller threaded explicitly through service
// calls. Services never read identity out of request-scoped globals.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}
