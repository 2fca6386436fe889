package notification

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/timelogic/wfm-api/internal/middleware"
	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/service/authz"
	"github.com/timelogic/wfm-api/internal/service/notification"
	apperrors "github.com/timelogic/wfm-api/pkg/errors"
	"github.com/timelogic/wfm-api/pkg/httputil"
)

const recentLimit = 5

type Handler struct {
	service *notification.Service
}

func NewHandler(service *notification.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the notification surface. The group is expected to
// carry the authentication middleware already.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	r.POST("", auth.RequireAction(authz.ActionCreateNotification), h.Create)
	r.GET("", h.List)
	r.GET("/unread-count", h.UnreadCount)
	r.GET("/recent", h.Recent)
	r.POST("/:id/mark-read", h.MarkAsRead)
	r.POST("/mark-all-read", h.MarkAllAsRead)
	r.GET("/types", h.Types)
	r.GET("/preferences", h.Preferences)
	r.POST("/preferences/:typeId", h.UpdatePreference)
	r.POST("/cleanup-expired", auth.RequireAction(authz.ActionCleanupExpired), h.CleanupExpired)
	r.POST("/leave-approval/:id", auth.RequireAction(authz.ActionEmitLeaveEvent), h.LeaveApproval)
	r.POST("/leave-status/:id", auth.RequireAction(authz.ActionEmitLeaveEvent), h.LeaveStatus)
}

func (h *Handler) Create(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	n, err := h.service.Create(c.Request.Context(), principal, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, n)
}

func (h *Handler) List(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	opts, err := listOptions(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	notifications, err := h.service.ListForUser(c.Request.Context(), principal.UserID, opts)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, notifications)
}

func (h *Handler) Recent(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	limit := recentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid limit", err))
			return
		}
		limit = parsed
	}

	notifications, err := h.service.ListForUser(c.Request.Context(), principal.UserID, model.ListOptions{Limit: limit})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, notifications)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"count": count})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid notification ID", err))
		return
	}

	n, err := h.service.MarkAsRead(c.Request.Context(), id, principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, n)
}

func (h *Handler) MarkAllAsRead(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	count, err := h.service.MarkAllAsRead(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"count": count})
}

func (h *Handler) Types(c *gin.Context) {
	types, err := h.service.Types(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, types)
}

func (h *Handler) Preferences(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	prefs, err := h.service.PreferencesForUser(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, prefs)
}

func (h *Handler) UpdatePreference(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	typeID, err := uuid.Parse(c.Param("typeId"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid type ID", err))
		return
	}

	var req model.UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	pref, err := h.service.UpdatePreference(c.Request.Context(), principal.UserID, typeID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, pref)
}

func (h *Handler) CleanupExpired(c *gin.Context) {
	count, err := h.service.CleanupExpired(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"count": count})
}

func (h *Handler) LeaveApproval(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid leave application ID", err))
		return
	}

	created, err := h.service.CreateLeaveApprovalNotification(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !created {
		httputil.RespondNothingDone(c, "leave application or approvers not found")
		return
	}

	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) LeaveStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid leave application ID", err))
		return
	}

	status := c.Query("status")
	if status == "" {
		httputil.RespondWithError(c, apperrors.BadRequest("status is required", nil))
		return
	}

	created, err := h.service.CreateLeaveStatusNotification(c.Request.Context(), id, status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !created {
		httputil.RespondNothingDone(c, "leave application not found")
		return
	}

	httputil.RespondWithSuccess(c, nil)
}

func listOptions(c *gin.Context) (model.ListOptions, error) {
	var opts model.ListOptions

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return opts, apperrors.BadRequest("invalid limit", err)
		}
		opts.Limit = limit
	}

	if raw := c.Query("unread_only"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apperrors.BadRequest("invalid unread_only", err)
		}
		opts.UnreadOnly = unread
	}

	if raw := c.Query("category"); raw != "" {
		category := model.Category(raw)
		switch category {
		case model.CategoryLeave, model.CategoryTimecard, model.CategorySchedule,
			model.CategoryAttendance, model.CategoryUrgentApproval, model.CategorySystem:
			opts.Category = &category
		default:
			return opts, apperrors.BadRequest("invalid category", nil)
		}
	}

	return opts, nil
}
