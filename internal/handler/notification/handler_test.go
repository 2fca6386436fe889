package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelogic/wfm-api/internal/middleware"
	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/repository"
	"github.com/timelogic/wfm-api/internal/service/audit"
	notifsvc "github.com/timelogic/wfm-api/internal/service/notification"
	"github.com/timelogic/wfm-api/internal/validation"
	pkgauth "github.com/timelogic/wfm-api/pkg/auth"
)

type memRepo struct {
	notifications map[uuid.UUID]*model.Notification
	types         map[uuid.UUID]*model.NotificationType
	typesByName   map[string]*model.NotificationType
	preferences   map[string]*model.NotificationPreference
}

func newMemRepo() *memRepo {
	return &memRepo{
		notifications: make(map[uuid.UUID]*model.Notification),
		types:         make(map[uuid.UUID]*model.NotificationType),
		typesByName:   make(map[string]*model.NotificationType),
		preferences:   make(map[string]*model.NotificationPreference),
	}
}

func (m *memRepo) CreateBatch(_ context.Context, notifications []*model.Notification, _ []*model.OutboxEvent) error {
	for _, n := range notifications {
		m.notifications[n.ID] = n
	}
	return nil
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	return m.notifications[id], nil
}

func (m *memRepo) ListVisible(_ context.Context, q repository.NotificationQuery) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range m.notifications {
		if n.UserID != q.UserID || n.Expired(q.Now) {
			continue
		}
		if q.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memRepo) CountVisible(_ context.Context, q repository.NotificationQuery) (int, error) {
	list, _ := m.ListVisible(context.Background(), q)
	return len(list), nil
}

func (m *memRepo) MarkAsRead(_ context.Context, id, userID uuid.UUID, readAt time.Time) (*model.Notification, error) {
	n := m.notifications[id]
	if n == nil || n.UserID != userID {
		return nil, nil
	}
	n.IsRead = true
	n.ReadAt = &readAt
	return n, nil
}

func (m *memRepo) MarkAllAsRead(_ context.Context, userID uuid.UUID, readAt time.Time) (int64, error) {
	var count int64
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (m *memRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var count int64
	for id, n := range m.notifications {
		if n.ExpiresAt != nil && n.ExpiresAt.Before(before) {
			delete(m.notifications, id)
			count++
		}
	}
	return count, nil
}

func (m *memRepo) GetTypeByName(_ context.Context, name string) (*model.NotificationType, error) {
	return m.typesByName[name], nil
}

func (m *memRepo) GetType(_ context.Context, id uuid.UUID) (*model.NotificationType, error) {
	return m.types[id], nil
}

func (m *memRepo) InsertTypeIfAbsent(_ context.Context, t *model.NotificationType) error {
	if _, exists := m.typesByName[t.Name]; exists {
		return nil
	}
	t.ID = uuid.New()
	m.types[t.ID] = t
	m.typesByName[t.Name] = t
	return nil
}

func (m *memRepo) ListActiveTypes(_ context.Context) ([]*model.NotificationType, error) {
	var out []*model.NotificationType
	for _, t := range m.types {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memRepo) ListPreferences(_ context.Context, userID uuid.UUID) ([]*model.NotificationPreference, error) {
	var out []*model.NotificationPreference
	for _, p := range m.preferences {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) GetPreference(_ context.Context, userID, typeID uuid.UUID) (*model.NotificationPreference, error) {
	return m.preferences[userID.String()+"/"+typeID.String()], nil
}

func (m *memRepo) UpsertPreference(_ context.Context, pref *model.NotificationPreference) error {
	if pref.ID == uuid.Nil {
		pref.ID = uuid.New()
	}
	m.preferences[pref.UserID.String()+"/"+pref.TypeID.String()] = pref
	return nil
}

type memUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (m *memUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	return m.users[id], nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.ID] = user
	return nil
}

type memDeptRepo struct{ departments map[uuid.UUID]*model.Department }

func (m *memDeptRepo) Get(_ context.Context, id uuid.UUID) (*model.Department, error) {
	return m.departments[id], nil
}

type memLeaveRepo struct{ applications map[uuid.UUID]*model.LeaveApplication }

func (m *memLeaveRepo) Get(_ context.Context, id uuid.UUID) (*model.LeaveApplication, error) {
	return m.applications[id], nil
}

type memAuditRepo struct{}

func (memAuditRepo) Create(_ context.Context, _ *model.AuditLog) error { return nil }

type testEnv struct {
	engine *gin.Engine
	repo   *memRepo
	users  *memUserRepo
	depts  *memDeptRepo
	leaves *memLeaveRepo
	jwt    pkgauth.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.RegisterBindingValidators()

	repo := newMemRepo()
	users := &memUserRepo{users: make(map[uuid.UUID]*model.User)}
	depts := &memDeptRepo{departments: make(map[uuid.UUID]*model.Department)}
	leaves := &memLeaveRepo{applications: make(map[uuid.UUID]*model.LeaveApplication)}

	svc := notifsvc.NewService(repo, users, depts, leaves, audit.NewService(memAuditRepo{}))

	jwtSvc := pkgauth.NewJWTService(pkgauth.Config{
		Secret:             "handler-test-secret",
		RefreshSecret:      "handler-test-refresh",
		ExpiryHours:        1,
		RefreshExpiryHours: 24,
	})
	authMw := middleware.NewAuthMiddleware(jwtSvc)

	engine := gin.New()
	group := engine.Group("/api/v1/notifications")
	group.Use(authMw.Authenticate())
	NewHandler(svc).RegisterRoutes(group, authMw)

	return &testEnv{engine: engine, repo: repo, users: users, depts: depts, leaves: leaves, jwt: jwtSvc}
}

func (e *testEnv) addUser(role model.Role) *model.User {
	u := &model.User{
		Base:     model.Base{ID: uuid.New()},
		Email:    uuid.NewString() + "@example.com",
		Username: "u-" + uuid.NewString()[:8],
		Role:     role,
		Status:   model.UserStatusActive,
	}
	e.users.users[u.ID] = u
	return u
}

func (e *testEnv) token(t *testing.T, u *model.User) string {
	t.Helper()
	token, err := e.jwt.GenerateAccessToken(u)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestCreateRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/notifications", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateRoleGate(t *testing.T) {
	env := newTestEnv(t)
	employee := env.addUser(model.RoleEmployee)
	admin := env.addUser(model.RoleAdmin)
	recipient := env.addUser(model.RoleEmployee)

	body := model.CreateNotificationRequest{
		UserID:   recipient.ID,
		TypeName: model.TypeSystemAnnouncement,
		Title:    "Hello",
		Message:  "World",
	}

	w := env.do(t, http.MethodPost, "/api/v1/notifications", env.token(t, employee), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/notifications", env.token(t, admin), body)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decode(t, w)
	assert.True(t, resp.Success)

	var created model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, recipient.ID, created.UserID)
	assert.Equal(t, model.PriorityMedium, created.Priority)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(model.RoleAdmin)

	// missing title
	w := env.do(t, http.MethodPost, "/api/v1/notifications", env.token(t, admin), gin.H{
		"user_id":   uuid.NewString(),
		"type_name": model.TypeSystemAnnouncement,
		"message":   "no title",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndUnreadCount(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(model.RoleEmployee)

	for i := 0; i < 3; i++ {
		n := &model.Notification{ID: uuid.New(), UserID: user.ID, Title: "t", Message: "m", CreatedAt: time.Now()}
		env.repo.notifications[n.ID] = n
	}

	w := env.do(t, http.MethodGet, "/api/v1/notifications", env.token(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	var list []*model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 3)

	w = env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", env.token(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	var count struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &count))
	assert.Equal(t, 3, count.Count)
}

func TestRecentDefaultsToFive(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(model.RoleEmployee)

	for i := 0; i < 8; i++ {
		n := &model.Notification{ID: uuid.New(), UserID: user.ID, Title: "t", Message: "m", CreatedAt: time.Now()}
		env.repo.notifications[n.ID] = n
	}

	w := env.do(t, http.MethodGet, "/api/v1/notifications/recent", env.token(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	var list []*model.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 5)
}

func TestMarkReadEndpoints(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(model.RoleEmployee)
	other := env.addUser(model.RoleEmployee)

	n := &model.Notification{ID: uuid.New(), UserID: user.ID, Title: "t", Message: "m", CreatedAt: time.Now()}
	env.repo.notifications[n.ID] = n

	// bad id
	w := env.do(t, http.MethodPost, "/api/v1/notifications/not-a-uuid/mark-read", env.token(t, user), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// someone else's notification
	w = env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID.String()+"/mark-read", env.token(t, other), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// owner succeeds
	w = env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID.String()+"/mark-read", env.token(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, n.IsRead)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/mark-all-read", env.token(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	var count struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &count))
	assert.Zero(t, count.Count, "everything already read")
}

func TestCleanupExpiredRoleGate(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(model.RoleManager)
	admin := env.addUser(model.RoleAdmin)

	past := time.Now().Add(-time.Hour)
	n := &model.Notification{ID: uuid.New(), UserID: admin.ID, ExpiresAt: &past, CreatedAt: time.Now().Add(-2 * time.Hour)}
	env.repo.notifications[n.ID] = n

	w := env.do(t, http.MethodPost, "/api/v1/notifications/cleanup-expired", env.token(t, manager), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/cleanup-expired", env.token(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	var count struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &count))
	assert.Equal(t, int64(1), count.Count)
}

func TestLeaveApprovalEndpoint(t *testing.T) {
	env := newTestEnv(t)
	hr := env.addUser(model.RoleHR)
	employee := env.addUser(model.RoleEmployee)

	// role gate
	w := env.do(t, http.MethodPost, "/api/v1/notifications/leave-approval/"+uuid.NewString(), env.token(t, employee), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// soft failure: unknown application comes back 200 with success=false
	w = env.do(t, http.MethodPost, "/api/v1/notifications/leave-approval/"+uuid.NewString(), env.token(t, hr), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)

	// full fan-out
	deptID := uuid.New()
	manager := env.addUser(model.RoleManager)
	manager.DepartmentID = &deptID
	requester := env.addUser(model.RoleEmployee)
	requester.DepartmentID = &deptID
	env.depts.departments[deptID] = &model.Department{
		Base:      model.Base{ID: deptID},
		Name:      "Ops",
		ManagerID: &manager.ID,
	}
	leaveID := uuid.New()
	env.leaves.applications[leaveID] = &model.LeaveApplication{
		ID:        leaveID,
		UserID:    requester.ID,
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(48 * time.Hour),
		Status:    model.LeaveStatusPending,
		User:      requester,
	}

	w = env.do(t, http.MethodPost, "/api/v1/notifications/leave-approval/"+leaveID.String(), env.token(t, hr), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.True(t, resp.Success)
	assert.Len(t, env.repo.notifications, 1)
}

func TestLeaveStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	hr := env.addUser(model.RoleHR)
	requester := env.addUser(model.RoleEmployee)

	leaveID := uuid.New()
	env.leaves.applications[leaveID] = &model.LeaveApplication{
		ID:        leaveID,
		UserID:    requester.ID,
		StartDate: time.Now(),
		EndDate:   time.Now(),
		User:      requester,
	}

	// status query parameter is required
	w := env.do(t, http.MethodPost, "/api/v1/notifications/leave-status/"+leaveID.String(), env.token(t, hr), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/leave-status/"+leaveID.String()+"?status=Approved", env.token(t, hr), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	assert.Len(t, env.repo.notifications, 1)
}

func TestPreferenceEndpoints(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(model.RoleEmployee)

	typ := &model.NotificationType{Name: model.TypeLeaveStatus, DisplayName: "Leave Status", IsActive: true, Priority: model.PriorityMedium}
	require.NoError(t, env.repo.InsertTypeIfAbsent(context.Background(), typ))

	w := env.do(t, http.MethodGet, "/api/v1/notifications/types", env.token(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var types []*model.NotificationType
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &types))
	assert.Len(t, types, 1)

	on := true
	w = env.do(t, http.MethodPost, "/api/v1/notifications/preferences/"+typ.ID.String(), env.token(t, user),
		model.UpdatePreferenceRequest{EmailEnabled: &on})
	require.Equal(t, http.StatusOK, w.Code)
	var pref model.NotificationPreference
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &pref))
	assert.True(t, pref.EmailEnabled)
	assert.True(t, pref.WebEnabled)

	w = env.do(t, http.MethodGet, "/api/v1/notifications/preferences", env.token(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var prefs []*model.NotificationPreference
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &prefs))
	assert.Len(t, prefs, 1)

	// unknown type id
	w = env.do(t, http.MethodPost, "/api/v1/notifications/preferences/"+uuid.NewString(), env.token(t, user),
		model.UpdatePreferenceRequest{EmailEnabled: &on})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
