package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/timelogic/wfm-api/internal/model"
)

// NotificationQuery describes a visibility-scoped listing. TeamDepartmentID is
// set only for managers; when present the query also matches active teammates'
// rows in TeamCategories.
type NotificationQuery struct {
	UserID           uuid.UUID
	TeamDepartmentID *uuid.UUID
	TeamCategories   []model.Category
	UnreadOnly       bool
	Category         *model.Category
	Limit            int
	Now              time.Time
}

// All repository interfaces in one file
type (
	// NotificationRepository handles notification rows, types and preferences
	NotificationRepository interface {
		// CreateBatch persists notifications and their outbox events in a
		// single transaction. A failure rolls back the whole batch.
		CreateBatch(ctx context.Context, notifications []*model.Notification, events []*model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		ListVisible(ctx context.Context, q NotificationQuery) ([]*model.Notification, error)
		CountVisible(ctx context.Context, q NotificationQuery) (int, error)
		MarkAsRead(ctx context.Context, id, userID uuid.UUID, readAt time.Time) (*model.Notification, error)
		MarkAllAsRead(ctx context.Context, userID uuid.UUID, readAt time.Time) (int64, error)
		DeleteExpired(ctx context.Context, before time.Time) (int64, error)

		GetTypeByName(ctx context.Context, name string) (*model.NotificationType, error)
		GetType(ctx context.Context, id uuid.UUID) (*model.NotificationType, error)
		InsertTypeIfAbsent(ctx context.Context, t *model.NotificationType) error
		ListActiveTypes(ctx context.Context) ([]*model.NotificationType, error)

		ListPreferences(ctx context.Context, userID uuid.UUID) ([]*model.NotificationPreference, error)
		GetPreference(ctx context.Context, userID, typeID uuid.UUID) (*model.NotificationPreference, error)
		UpsertPreference(ctx context.Context, pref *model.NotificationPreference) error
	}

	// UserRepository handles user lookups and login bookkeeping
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
	}

	// DepartmentRepository resolves organizational units
	DepartmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Department, error)
	}

	// LeaveRepository reads leave applications with their requester joined
	LeaveRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.LeaveApplication, error)
	}

	// AuditRepository persists audit trail entries
	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
	}

	// OutboxRepository drives the transactional outbox
	OutboxRepository interface {
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
