package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/pkg/response"
	"gorm.io/gorm"
)

// NotificationHandler exposes the notification gate, the in-app notification
// center and the per-brand alert preferences.
type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// NotifyRequest is the body of POST /api/brands/:id/notify.
type NotifyRequest struct {
	Type    string                 `json:"type" binding:"required"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

// Notify runs an event from another collaborator through the gate.
func (h *NotificationHandler) Notify(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.notificationService.NotifyBrand(c.Request.Context(), brandID, models.NotificationType(req.Type), services.NotifyPayload{
		Title:   req.Title,
		Message: req.Message,
		Data:    req.Data,
	})
	switch {
	case errors.Is(err, services.ErrUnknownEventType):
		response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrBrandNotFound):
		response.NotFound(c, err.Error())
	case err != nil:
		response.ServerError(c, "failed to notify brand: "+err.Error())
	default:
		response.Success(c, result)
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}

	rows, err := h.notificationService.ListNotifications(c.Request.Context(), brandID, c.Query("unread") == "true", intQuery(c, "limit", 50))
	if err != nil {
		response.ServerError(c, "failed to list notifications: "+err.Error())
		return
	}
	response.Success(c, rows)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid notification id")
		return
	}

	n, err := h.notificationService.MarkRead(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFound(c, "notification not found")
		return
	}
	if err != nil {
		response.ServerError(c, "failed to mark notification read: "+err.Error())
		return
	}
	response.Success(c, n)
}

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}

	pref, err := h.notificationService.GetPreferences(c.Request.Context(), brandID)
	if err != nil {
		response.ServerError(c, "failed to load alert preferences: "+err.Error())
		return
	}
	response.Success(c, pref)
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}
	var req services.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pref, err := h.notificationService.UpdatePreferences(c.Request.Context(), brandID, &req)
	if err != nil {
		response.ServerError(c, "failed to update alert preferences: "+err.Error())
		return
	}
	response.Success(c, pref)
}
