package handlers

import (
	"context"
	"net/http"
	"time"

	"ecosystia_backend/internal/middleware"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/services"
	"ecosystia_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

// BulkSender fans one payload out to many users, immediately or later.
type BulkSender interface {
	SendBulk(ctx context.Context, userIDs []string, p services.Payload) (int, error)
	ScheduleBulk(ctx context.Context, userIDs []string, p services.Payload, delay time.Duration)
}

type NotificationHandler struct {
	*BaseHandler
	inbox    services.InboxService
	notifier services.NotificationService
	bulk     BulkSender
}

func NewNotificationHandler(base *BaseHandler, inbox services.InboxService, notifier services.NotificationService, bulk BulkSender) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler: base,
		inbox:       inbox,
		notifier:    notifier,
		bulk:        bulk,
	}
}

func (h *NotificationHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	notifications := r.Group("/notifications")
	notifications.Use(authMW)
	{
		notifications.GET("", h.List)
		notifications.POST("", h.Create)
		notifications.GET("/preferences", h.GetPreferences)
		notifications.PUT("/preferences", h.UpdatePreferences)
		notifications.GET("/stats", h.Stats)
		notifications.POST("/mark-all-read", h.MarkAllAsRead)
		notifications.DELETE("/delete-read", h.DeleteRead)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.GET("/recent", h.Recent)
		notifications.GET("/:id", h.Get)
		notifications.PATCH("/:id", h.Update)
		notifications.DELETE("/:id", h.Delete)
		notifications.POST("/:id/mark-read", h.MarkAsRead)
	}

	staff := notifications.Group("")
	staff.Use(middleware.RequireStaff())
	{
		staff.POST("/system", h.SendSystem)
		staff.POST("/bulk", h.SendBulk)
		staff.GET("/templates", h.ListTemplates)
		staff.POST("/templates", h.CreateTemplate)
		staff.POST("/templates/:name/send", h.SendTemplate)
	}
}

// --- Inbox ---

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var q dto.NotificationListQuery
	if !h.BindAndValidate_Query(c, &q) {
		return
	}
	q.Page, q.PageSize = ParsePagination(c)

	resp, err := h.inbox.List(c.Request.Context(), userID, q)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NotificationHandler) Create(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateNotificationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.inbox.Create(c.Request.Context(), userID, middleware.IsStaff(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *NotificationHandler) Get(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.inbox.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NotificationHandler) Update(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateNotificationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.inbox.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.inbox.Delete(c.Request.Context(), userID, id); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.inbox.MarkAsRead(c.Request.Context(), userID, id); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	count, err := h.inbox.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "all marked as read", "count": count})
}

func (h *NotificationHandler) DeleteRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	count, err := h.inbox.DeleteRead(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read notifications deleted", "count": count})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	count, err := h.inbox.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadCountResponse{UnreadCount: count})
}

func (h *NotificationHandler) Recent(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	list, err := h.inbox.Recent(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	stats, err := h.inbox.Stats(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// --- Preferences ---

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	pref, err := h.inbox.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpdatePreferencesRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	pref, err := h.inbox.UpdatePreferences(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

// --- Staff ---

func (h *NotificationHandler) SendSystem(c *gin.Context) {
	var req dto.SystemNotificationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	err := h.notifier.SendSystemNotification(c.Request.Context(), services.Payload{
		Title:   req.Title,
		Message: req.Message,
		Type:    models.NotificationType(req.Type),
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "broadcast"})
}

func (h *NotificationHandler) SendBulk(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.BulkNotificationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	p := services.Payload{
		Title:     req.Title,
		Message:   req.Message,
		Type:      models.NotificationType(req.Type),
		Category:  models.NotificationCategory(req.Category),
		SenderID:  userID,
		ActionURL: req.ActionURL,
	}

	if req.DelaySeconds > 0 {
		// The send outlives the request; the worker stops it at shutdown.
		ctx := context.WithoutCancel(c.Request.Context())
		h.bulk.ScheduleBulk(ctx, req.UserIDs, p, time.Duration(req.DelaySeconds)*time.Second)
		c.JSON(http.StatusAccepted, dto.BulkNotificationResponse{
			Recipients:   len(req.UserIDs),
			DelaySeconds: req.DelaySeconds,
			Status:       "scheduled",
		})
		return
	}

	sent, err := h.bulk.SendBulk(c.Request.Context(), req.UserIDs, p)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BulkNotificationResponse{
		Recipients: len(req.UserIDs),
		Sent:       sent,
		Status:     "sent",
	})
}

func (h *NotificationHandler) ListTemplates(c *gin.Context) {
	list, err := h.inbox.ListTemplates(c.Request.Context())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) CreateTemplate(c *gin.Context) {
	var req dto.CreateTemplateRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	tpl, err := h.inbox.CreateTemplate(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *NotificationHandler) SendTemplate(c *gin.Context) {
	var req dto.SendTemplateRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.notifier.SendFromTemplate(c.Request.Context(), c.Param("name"), req.UserIDs, req.Context); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent", "recipients": len(req.UserIDs)})
}
