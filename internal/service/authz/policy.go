package authz

import (
	"fmt"

	"github.com/timelogic/wfm-api/internal/model"
)

// Action is something a caller wants to do that needs a policy decision.
type Action string

const (
	ActionCreateNotification Action = "notification.create"
	ActionCleanupExpired     Action = "notification.cleanup"
	ActionEmitLeaveEvent     Action = "notification.leave_event"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(p model.Principal, action Action) Decision {
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("role %s may not perform %s", p.Role, action),
	}
}

var policy = map[Action][]model.Role{
	ActionCreateNotification: {
		model.RoleSystemSuperAdmin,
		model.RoleSuperUser,
		model.RoleAdmin,
	},
	ActionCleanupExpired: {
		model.RoleSystemSuperAdmin,
		model.RoleSuperUser,
		model.RoleAdmin,
	},
	ActionEmitLeaveEvent: {
		model.RoleSystemSuperAdmin,
		model.RoleSuperUser,
		model.RoleAdmin,
		model.RoleHR,
		model.RoleManager,
	},
}

// Evaluate decides whether the principal may perform the action. The role set
// is closed; unknown actions are denied.
func Evaluate(p model.Principal, action Action) Decision {
	roles, ok := policy[action]
	if !ok {
		return Decision{Allowed: false, Reason: fmt.Sprintf("unknown action %s", action)}
	}
	for _, r := range roles {
		if p.Role == r {
			return allow()
		}
	}
	return deny(p, action)
}
