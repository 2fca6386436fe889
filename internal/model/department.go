package model

import (
	"github.com/google/uuid"
)

// Department is an organizational unit under a site. Manager and deputy are
// consulted when leave approval notifications fan out.
type Department struct {
	Base
	Name            string     `json:"name" db:"name"`
	SiteID          uuid.UUID  `json:"site_id" db:"site_id"`
	ManagerID       *uuid.UUID `json:"manager_id" db:"manager_id"`
	DeputyManagerID *uuid.UUID `json:"deputy_manager_id" db:"deputy_manager_id"`
}

// ApproverIDs returns the distinct, non-nil manager ids of the department.
// A department whose deputy is the manager yields a single recipient.
func (d *Department) ApproverIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, 2)
	var ids []uuid.UUID
	for _, p := range []*uuid.UUID{d.ManagerID, d.DeputyManagerID} {
		if p == nil {
			continue
		}
		if _, ok := seen[*p]; ok {
			continue
		}
		seen[*p] = struct{}{}
		ids = append(ids, *p)
	}
	return ids
}
