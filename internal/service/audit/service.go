package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/repository"
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

type LogOptions struct {
	Changes   interface{}
	Metadata  interface{}
	IPAddress string
	UserAgent string
}

// Log creates an audit log entry. Failures are logged, never propagated:
// auditing must not break the operation it records.
func (s *Service) Log(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	entry := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now(),
	}

	if opts != nil {
		if opts.Changes != nil {
			if raw, err := json.Marshal(opts.Changes); err == nil {
				entry.Changes = raw
			}
		}
		if opts.Metadata != nil {
			if raw, err := json.Marshal(opts.Metadata); err == nil {
				entry.Metadata = raw
			}
		}
		entry.IPAddress = opts.IPAddress
		entry.UserAgent = opts.UserAgent
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Msg("failed to write audit log")
	}
}
