package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*model.Notification, events []*model.OutboxEvent) error {
	if len(notifications) == 0 {
		return fmt.Errorf("no notifications to create")
	}

	notifQuery := `
		INSERT INTO notifications (
			id, user_id, type_id, title, message, action_url, action_text,
			priority, category, related_entity_type, related_entity_id,
			is_read, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	outboxQuery := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, n := range notifications {
			if n.ID == uuid.Nil {
				n.ID = uuid.New()
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = time.Now()
			}
			if _, err := tx.ExecContext(ctx, notifQuery,
				n.ID, n.UserID, n.TypeID, n.Title, n.Message,
				n.ActionURL, n.ActionText, n.Priority, n.Category,
				n.RelatedEntityType, n.RelatedEntityID,
				n.IsRead, n.ExpiresAt, n.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		for _, e := range events {
			if e.ID == uuid.Nil {
				e.ID = uuid.New()
			}
			now := time.Now()
			e.Status = model.OutboxStatusPending
			e.CreatedAt = now
			e.UpdatedAt = now
			if _, err := tx.ExecContext(ctx, outboxQuery,
				e.ID, e.EventType, e.Payload, e.Status, e.RetryCount, e.CreatedAt, e.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to create outbox event: %w", err)
			}
		}
		return nil
	})
}

// notificationRow carries a notification with its joined type and owner.
type notificationRow struct {
	model.Notification
	TypeName        string    `db:"tn_name"`
	TypeDisplayName string    `db:"tn_display_name"`
	TypeIcon        string    `db:"tn_icon"`
	TypeColor       string    `db:"tn_color"`
	OwnerUsername   string    `db:"u_username"`
	OwnerFirstName  *string   `db:"u_first_name"`
	OwnerLastName   *string   `db:"u_last_name"`
	OwnerID         uuid.UUID `db:"u_id"`
}

func (row *notificationRow) toModel() *model.Notification {
	n := row.Notification
	n.Type = &model.NotificationType{
		ID:          n.TypeID,
		Name:        row.TypeName,
		DisplayName: row.TypeDisplayName,
		Icon:        row.TypeIcon,
		Color:       row.TypeColor,
	}
	n.User = &model.UserRef{
		ID:        row.OwnerID,
		Username:  row.OwnerUsername,
		FirstName: row.OwnerFirstName,
		LastName:  row.OwnerLastName,
	}
	return &n
}

const notificationSelect = `
	SELECT n.id, n.user_id, n.type_id, n.title, n.message, n.action_url,
		   n.action_text, n.priority, n.category, n.related_entity_type,
		   n.related_entity_id, n.is_read, n.read_at, n.expires_at, n.created_at,
		   t.name AS tn_name, t.display_name AS tn_display_name,
		   t.icon AS tn_icon, t.color AS tn_color,
		   u.id AS u_id, u.username AS u_username,
		   u.first_name AS u_first_name, u.last_name AS u_last_name
	FROM notifications n
	JOIN notification_types t ON t.id = n.type_id
	JOIN users u ON u.id = n.user_id
`

// visibilityClause builds the WHERE fragment shared by ListVisible and
// CountVisible. $1 is always the requesting user id.
func visibilityClause(q repository.NotificationQuery) (string, []interface{}) {
	args := []interface{}{q.UserID}
	where := "n.user_id = $1"

	if q.TeamDepartmentID != nil && len(q.TeamCategories) > 0 {
		cats := make([]string, len(q.TeamCategories))
		for i, c := range q.TeamCategories {
			cats[i] = string(c)
		}
		args = append(args, *q.TeamDepartmentID, pq.Array(cats))
		where = fmt.Sprintf(`(%s OR (
			n.user_id IN (SELECT id FROM users WHERE department_id = $%d AND status = 'active' AND deleted_at IS NULL)
			AND n.category = ANY($%d)
		))`, where, len(args)-1, len(args))
	}

	args = append(args, q.Now)
	where += fmt.Sprintf(" AND (n.expires_at IS NULL OR n.expires_at > $%d)", len(args))

	if q.UnreadOnly {
		where += " AND n.is_read = false"
	}
	if q.Category != nil {
		args = append(args, *q.Category)
		where += fmt.Sprintf(" AND n.category = $%d", len(args))
	}

	return where, args
}

func (r *notificationRepository) ListVisible(ctx context.Context, q repository.NotificationQuery) ([]*model.Notification, error) {
	where, args := visibilityClause(q)
	args = append(args, q.Limit)
	query := fmt.Sprintf("%s WHERE %s ORDER BY n.created_at DESC LIMIT $%d",
		notificationSelect, where, len(args))

	var rows []*notificationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]*model.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *notificationRepository) CountVisible(ctx context.Context, q repository.NotificationQuery) (int, error) {
	where, args := visibilityClause(q)
	query := fmt.Sprintf("SELECT COUNT(*) FROM notifications n WHERE %s", where)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var row notificationRow
	if err := r.db.GetContext(ctx, &row, notificationSelect+" WHERE n.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return row.toModel(), nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID, readAt time.Time) (*model.Notification, error) {
	// Ownership enforced in the WHERE clause: a manager who can view a
	// teammate's row still cannot flip its read state.
	query := `
		UPDATE notifications
		SET is_read = true, read_at = $1
		WHERE id = $2 AND user_id = $3
		RETURNING id, user_id, type_id, title, message, action_url, action_text,
				  priority, category, related_entity_type, related_entity_id,
				  is_read, read_at, expires_at, created_at
	`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, readAt, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID, readAt time.Time) (int64, error) {
	query := `
		UPDATE notifications
		SET is_read = true, read_at = $1
		WHERE user_id = $2 AND is_read = false
	`

	result, err := r.db.ExecContext(ctx, query, readAt, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return result.RowsAffected()
}

func (r *notificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	return result.RowsAffected()
}

func (r *notificationRepository) GetTypeByName(ctx context.Context, name string) (*model.NotificationType, error) {
	var t model.NotificationType
	if err := r.db.GetContext(ctx, &t,
		"SELECT * FROM notification_types WHERE name = $1", name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification type: %w", err)
	}
	return &t, nil
}

func (r *notificationRepository) GetType(ctx context.Context, id uuid.UUID) (*model.NotificationType, error) {
	var t model.NotificationType
	if err := r.db.GetContext(ctx, &t,
		"SELECT * FROM notification_types WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification type: %w", err)
	}
	return &t, nil
}

func (r *notificationRepository) InsertTypeIfAbsent(ctx context.Context, t *model.NotificationType) error {
	// The unique index on name makes concurrent first use create the row
	// exactly once; losers of the race no-op and re-read.
	query := `
		INSERT INTO notification_types (
			id, name, display_name, icon, color, priority, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO NOTHING
	`

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.DisplayName, t.Icon, t.Color, t.Priority, t.IsActive, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification type: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListActiveTypes(ctx context.Context) ([]*model.NotificationType, error) {
	var types []*model.NotificationType
	err := r.db.SelectContext(ctx, &types,
		"SELECT * FROM notification_types WHERE is_active = true ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list notification types: %w", err)
	}
	return types, nil
}

type preferenceRow struct {
	model.NotificationPreference
	TypeName        string         `db:"tn_name"`
	TypeDisplayName string         `db:"tn_display_name"`
	TypeIcon        string         `db:"tn_icon"`
	TypeColor       string         `db:"tn_color"`
	TypePriority    model.Priority `db:"tn_priority"`
}

func (r *notificationRepository) ListPreferences(ctx context.Context, userID uuid.UUID) ([]*model.NotificationPreference, error) {
	query := `
		SELECT p.id, p.user_id, p.type_id, p.web_enabled, p.email_enabled,
			   p.sms_enabled, p.immediate, p.daily_digest, p.weekly_digest,
			   p.updated_at,
			   t.name AS tn_name, t.display_name AS tn_display_name,
			   t.icon AS tn_icon, t.color AS tn_color, t.priority AS tn_priority
		FROM notification_preferences p
		JOIN notification_types t ON t.id = p.type_id
		WHERE p.user_id = $1
		ORDER BY t.name
	`

	var rows []*preferenceRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}

	prefs := make([]*model.NotificationPreference, 0, len(rows))
	for _, row := range rows {
		p := row.NotificationPreference
		p.Type = &model.NotificationType{
			ID:          p.TypeID,
			Name:        row.TypeName,
			DisplayName: row.TypeDisplayName,
			Icon:        row.TypeIcon,
			Color:       row.TypeColor,
			Priority:    row.TypePriority,
		}
		prefs = append(prefs, &p)
	}
	return prefs, nil
}

func (r *notificationRepository) GetPreference(ctx context.Context, userID, typeID uuid.UUID) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	err := r.db.GetContext(ctx, &p,
		"SELECT * FROM notification_preferences WHERE user_id = $1 AND type_id = $2",
		userID, typeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &p, nil
}

func (r *notificationRepository) UpsertPreference(ctx context.Context, pref *model.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (
			id, user_id, type_id, web_enabled, email_enabled, sms_enabled,
			immediate, daily_digest, weekly_digest, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, type_id) DO UPDATE SET
			web_enabled = EXCLUDED.web_enabled,
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			immediate = EXCLUDED.immediate,
			daily_digest = EXCLUDED.daily_digest,
			weekly_digest = EXCLUDED.weekly_digest,
			updated_at = EXCLUDED.updated_at
	`

	if pref.ID == uuid.Nil {
		pref.ID = uuid.New()
	}
	pref.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		pref.ID, pref.UserID, pref.TypeID, pref.WebEnabled, pref.EmailEnabled,
		pref.SMSEnabled, pref.Immediate, pref.DailyDigest, pref.WeeklyDigest,
		pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}
	return nil
}
