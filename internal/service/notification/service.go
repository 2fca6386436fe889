package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/repository"
	"github.com/timelogic/wfm-api/internal/service/audit"
	apperrors "github.com/timelogic/wfm-api/pkg/errors"
)

const (
	defaultListLimit = 50

	leaveApprovalExpiry = 168 // hours, one week for approvers to act
	leaveStatusExpiry   = 72

	defaultTypeIcon  = "bell"
	defaultTypeColor = "primary"

	typeCacheTTL     = 5 * time.Minute
	typeCacheCleanup = 10 * time.Minute

	shortDateFormat = "Jan 2, 2006"
)

// seedTypes are registered on startup so routine operation does not depend on
// lazy creation.
var seedTypes = []string{
	model.TypeLeaveApprovalRequired,
	model.TypeLeaveStatus,
	model.TypeTimecardMissing,
	model.TypeSchedulePublished,
	model.TypeSystemAnnouncement,
}

type Service struct {
	repo      repository.NotificationRepository
	userRepo  repository.UserRepository
	deptRepo  repository.DepartmentRepository
	leaveRepo repository.LeaveRepository
	auditor   *audit.Service
	typeCache *gocache.Cache
}

func NewService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	deptRepo repository.DepartmentRepository,
	leaveRepo repository.LeaveRepository,
	auditor *audit.Service,
) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		deptRepo:  deptRepo,
		leaveRepo: leaveRepo,
		auditor:   auditor,
		typeCache: gocache.New(typeCacheTTL, typeCacheCleanup),
	}
}

// SeedTypes registers the well-known notification types.
func (s *Service) SeedTypes(ctx context.Context) error {
	for _, name := range seedTypes {
		if _, err := s.EnsureType(ctx, name); err != nil {
			return fmt.Errorf("failed to seed type %s: %w", name, err)
		}
	}
	return nil
}

// EnsureType resolves a type by name, registering it on first use. The
// insert is an upsert on the unique name, so a concurrent first use creates
// the row exactly once; everyone re-reads the winner.
func (s *Service) EnsureType(ctx context.Context, name string) (*model.NotificationType, error) {
	if cached, ok := s.typeCache.Get(name); ok {
		return cached.(*model.NotificationType), nil
	}

	t, err := s.repo.GetTypeByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		nt := &model.NotificationType{
			Name:        name,
			DisplayName: model.HumanizeTypeName(name),
			Icon:        defaultTypeIcon,
			Color:       defaultTypeColor,
			Priority:    model.PriorityMedium,
			IsActive:    true,
		}
		if err := s.repo.InsertTypeIfAbsent(ctx, nt); err != nil {
			return nil, err
		}
		t, err = s.repo.GetTypeByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("notification type %s missing after registration", name)
		}
	}

	s.typeCache.Set(name, t, gocache.DefaultExpiration)
	return t, nil
}

// Create inserts a single notification plus the outbox events for whichever
// delivery channels the recipient's preference enables, in one transaction.
func (s *Service) Create(ctx context.Context, principal model.Principal, req *model.CreateNotificationRequest) (*model.Notification, error) {
	t, err := s.EnsureType(ctx, req.TypeName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notification type: %w", err)
	}

	n := &model.Notification{
		ID:                uuid.New(),
		UserID:            req.UserID,
		TypeID:            t.ID,
		Title:             req.Title,
		Message:           req.Message,
		ActionURL:         req.ActionURL,
		ActionText:        req.ActionText,
		Priority:          req.Priority,
		Category:          req.Category,
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
		CreatedAt:         time.Now(),
	}
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}
	if req.ExpiresHours != nil {
		exp := n.CreatedAt.Add(time.Duration(*req.ExpiresHours) * time.Hour)
		n.ExpiresAt = &exp
	}

	events, err := s.buildDeliveryEvents(ctx, n, t)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateBatch(ctx, []*model.Notification{n}, events); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.auditor.Log(ctx, principal.UserID, "create", "notification", n.ID, &audit.LogOptions{
		Changes: n,
	})

	return n, nil
}

// buildDeliveryEvents maps the recipient's preference for the type onto
// outbox events. Missing preference rows fall back to the default (web only).
func (s *Service) buildDeliveryEvents(ctx context.Context, n *model.Notification, t *model.NotificationType) ([]*model.OutboxEvent, error) {
	pref, err := s.repo.GetPreference(ctx, n.UserID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preference: %w", err)
	}
	if pref == nil {
		pref = model.DefaultPreference(n.UserID, t.ID)
	}

	payload := model.NotificationEventPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		TypeName:       t.Name,
		Title:          n.Title,
		Message:        n.Message,
		Priority:       n.Priority,
	}

	var events []*model.OutboxEvent
	if pref.WebEnabled {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event payload: %w", err)
		}
		events = append(events, &model.OutboxEvent{
			EventType: model.EventNotificationInApp,
			Payload:   raw,
		})
	}
	if pref.EmailEnabled {
		recipient, err := s.userRepo.Get(ctx, n.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipient: %w", err)
		}
		if recipient != nil && recipient.Email != "" {
			emailPayload := payload
			emailPayload.Email = recipient.Email
			raw, err := json.Marshal(emailPayload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode event payload: %w", err)
			}
			events = append(events, &model.OutboxEvent{
				EventType: model.EventNotificationEmail,
				Payload:   raw,
			})
		}
	}
	return events, nil
}

// CreateLeaveApprovalNotification fans out an approval request to the
// requester's department manager and deputy. Unresolvable context (missing
// application, department assignment, or department row) is a soft failure:
// ok is false, nothing is created, no error is raised.
func (s *Service) CreateLeaveApprovalNotification(ctx context.Context, leaveAppID uuid.UUID) (bool, error) {
	leave, err := s.leaveRepo.Get(ctx, leaveAppID)
	if err != nil {
		return false, err
	}
	if leave == nil || leave.User == nil || leave.User.DepartmentID == nil {
		return false, nil
	}

	dept, err := s.deptRepo.Get(ctx, *leave.User.DepartmentID)
	if err != nil {
		return false, err
	}
	if dept == nil {
		return false, nil
	}

	recipients := dept.ApproverIDs()
	if len(recipients) == 0 {
		return false, nil
	}

	t, err := s.EnsureType(ctx, model.TypeLeaveApprovalRequired)
	if err != nil {
		return false, err
	}

	message := fmt.Sprintf("%s has requested %d days of %s from %s to %s",
		leave.User.FullName(),
		leave.TotalDays(),
		leave.LeaveTypeLabel(),
		leave.StartDate.Format(shortDateFormat),
		leave.EndDate.Format(shortDateFormat),
	)

	now := time.Now()
	expiresAt := now.Add(leaveApprovalExpiry * time.Hour)
	actionURL := "/leave/approvals"
	actionText := "Review"
	category := model.CategoryLeave
	entityType := "leave_application"

	var notifications []*model.Notification
	var events []*model.OutboxEvent
	for _, recipientID := range recipients {
		n := &model.Notification{
			ID:                uuid.New(),
			UserID:            recipientID,
			TypeID:            t.ID,
			Title:             "Leave Approval Required",
			Message:           message,
			ActionURL:         &actionURL,
			ActionText:        &actionText,
			Priority:          model.PriorityHigh,
			Category:          &category,
			RelatedEntityType: &entityType,
			RelatedEntityID:   &leave.ID,
			ExpiresAt:         &expiresAt,
			CreatedAt:         now,
		}
		notifications = append(notifications, n)

		recipientEvents, err := s.buildDeliveryEvents(ctx, n, t)
		if err != nil {
			return false, err
		}
		events = append(events, recipientEvents...)
	}

	// All recipients commit or none do; a mid-batch failure must not leave a
	// partial fan-out behind.
	if err := s.repo.CreateBatch(ctx, notifications, events); err != nil {
		return false, fmt.Errorf("failed to fan out leave approval: %w", err)
	}

	s.auditor.Log(ctx, leave.UserID, "fan_out", "leave_application", leave.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"recipients": len(notifications),
			"type":       model.TypeLeaveApprovalRequired,
		},
	})

	return true, nil
}

var leaveStatusMessages = map[string]string{
	model.LeaveStatusApproved:  "Your leave request from %s to %s has been approved.",
	model.LeaveStatusRejected:  "Your leave request from %s to %s has been rejected.",
	model.LeaveStatusCancelled: "Your leave request from %s to %s has been cancelled.",
}

var leaveStatusPriorities = map[string]model.Priority{
	model.LeaveStatusApproved:  model.PriorityMedium,
	model.LeaveStatusRejected:  model.PriorityHigh,
	model.LeaveStatusCancelled: model.PriorityLow,
}

// CreateLeaveStatusNotification tells the requester their application changed
// state. Unrecognized status strings get the generic template and medium
// priority rather than an error.
func (s *Service) CreateLeaveStatusNotification(ctx context.Context, leaveAppID uuid.UUID, status string) (bool, error) {
	leave, err := s.leaveRepo.Get(ctx, leaveAppID)
	if err != nil {
		return false, err
	}
	if leave == nil {
		return false, nil
	}

	t, err := s.EnsureType(ctx, model.TypeLeaveStatus)
	if err != nil {
		return false, err
	}

	start := leave.StartDate.Format(shortDateFormat)
	end := leave.EndDate.Format(shortDateFormat)

	message, ok := leaveStatusMessages[status]
	if ok {
		message = fmt.Sprintf(message, start, end)
	} else {
		message = fmt.Sprintf("Your leave request from %s to %s is now %s.", start, end, status)
	}

	priority, ok := leaveStatusPriorities[status]
	if !ok {
		priority = model.PriorityMedium
	}

	now := time.Now()
	expiresAt := now.Add(leaveStatusExpiry * time.Hour)
	category := model.CategoryLeave
	entityType := "leave_application"
	actionURL := "/leave/my-requests"

	n := &model.Notification{
		ID:                uuid.New(),
		UserID:            leave.UserID,
		TypeID:            t.ID,
		Title:             "Leave Request " + status,
		Message:           message,
		ActionURL:         &actionURL,
		Priority:          priority,
		Category:          &category,
		RelatedEntityType: &entityType,
		RelatedEntityID:   &leave.ID,
		ExpiresAt:         &expiresAt,
		CreatedAt:         now,
	}

	events, err := s.buildDeliveryEvents(ctx, n, t)
	if err != nil {
		return false, err
	}

	if err := s.repo.CreateBatch(ctx, []*model.Notification{n}, events); err != nil {
		return false, fmt.Errorf("failed to create leave status notification: %w", err)
	}

	return true, nil
}

// visibilityQuery computes the row scope for a user: their own rows, extended
// for department managers to active teammates' rows in the manager-visible
// categories.
func (s *Service) visibilityQuery(ctx context.Context, userID uuid.UUID) (*repository.NotificationQuery, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	q := &repository.NotificationQuery{
		UserID: userID,
		Now:    time.Now(),
	}
	if user.Role == model.RoleManager && user.DepartmentID != nil {
		q.TeamDepartmentID = user.DepartmentID
		q.TeamCategories = model.ManagerVisibleCategories
	}
	return q, nil
}

// ListForUser returns the caller's visible notifications, newest first. A
// nonexistent user yields an empty list, not an error.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, opts model.ListOptions) ([]*model.Notification, error) {
	q, err := s.visibilityQuery(ctx, userID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return []*model.Notification{}, nil
	}

	q.UnreadOnly = opts.UnreadOnly
	q.Category = opts.Category
	q.Limit = opts.Limit
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}

	return s.repo.ListVisible(ctx, *q)
}

// UnreadCount counts unread, unexpired rows in the caller's visibility scope.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	q, err := s.visibilityQuery(ctx, userID)
	if err != nil {
		return 0, err
	}
	if q == nil {
		return 0, nil
	}

	q.UnreadOnly = true
	return s.repo.CountVisible(ctx, *q)
}

// MarkAsRead flips one notification to read. Only the owner may do this; a
// mismatch reads as not-found so the caller cannot probe other users' ids.
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.MarkAsRead(ctx, notificationID, userID, time.Now())
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperrors.NotFound("notification", nil)
	}

	s.auditor.Log(ctx, userID, "mark_read", "notification", n.ID, nil)
	return n, nil
}

// MarkAllAsRead marks the caller's own unread rows; the manager-visible team
// slice is untouched. Safe to repeat: the second call affects zero rows.
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID, time.Now())
}

// CleanupExpired removes every notification whose expiry has passed.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.auditor.Log(ctx, uuid.Nil, "cleanup_expired", "notification", uuid.Nil, &audit.LogOptions{
			Metadata: map[string]interface{}{"deleted": count},
		})
	}
	return count, nil
}

// Types lists the active notification types.
func (s *Service) Types(ctx context.Context) ([]*model.NotificationType, error) {
	return s.repo.ListActiveTypes(ctx)
}

// PreferencesForUser lists stored preference rows with type metadata joined.
func (s *Service) PreferencesForUser(ctx context.Context, userID uuid.UUID) ([]*model.NotificationPreference, error) {
	return s.repo.ListPreferences(ctx, userID)
}

// UpdatePreference merges the provided flags over the stored row (or the
// default when none exists) and upserts on (user, type).
func (s *Service) UpdatePreference(ctx context.Context, userID, typeID uuid.UUID, req *model.UpdatePreferenceRequest) (*model.NotificationPreference, error) {
	t, err := s.repo.GetType(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperrors.NotFound("notification type", nil)
	}

	pref, err := s.repo.GetPreference(ctx, userID, typeID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = model.DefaultPreference(userID, typeID)
	}

	if req.WebEnabled != nil {
		pref.WebEnabled = *req.WebEnabled
	}
	if req.EmailEnabled != nil {
		pref.EmailEnabled = *req.EmailEnabled
	}
	if req.SMSEnabled != nil {
		pref.SMSEnabled = *req.SMSEnabled
	}
	if req.Immediate != nil {
		pref.Immediate = *req.Immediate
	}
	if req.DailyDigest != nil {
		pref.DailyDigest = *req.DailyDigest
	}
	if req.WeeklyDigest != nil {
		pref.WeeklyDigest = *req.WeeklyDigest
	}

	if err := s.repo.UpsertPreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("failed to update preference: %w", err)
	}
	pref.Type = t
	return pref, nil
}
