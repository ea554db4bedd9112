package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

type notificationInput struct {
	Content   string     `json:"content"`
	Level     string     `json:"level"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// GET /notifications/active
func (h *NotificationHandler) Active(c *gin.Context) {
	var (
		items []*model.Notification
		err   error
	)
	if raw := c.Query("at"); raw != "" {
		at, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			respondError(c, apperr.New(apperr.KindValidation, "at must be RFC3339"))
			return
		}
		items, err = h.notifications.ActiveAt(c.Request.Context(), at)
	} else {
		items, err = h.notifications.Active(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// GET /admin/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.notifications.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items, "total": len(items)})
}

// POST /admin/notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	var in notificationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	notification := &model.Notification{
		Content:   in.Content,
		Level:     model.NotificationLevel(in.Level),
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}
	if err := h.notifications.Create(c.Request.Context(), c.GetString("admin_email"), notification); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, notification)
}

// PUT /admin/notifications/:id
func (h *NotificationHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid notification id"))
		return
	}

	var in notificationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	notification := &model.Notification{
		ID:        id,
		Content:   in.Content,
		Level:     model.NotificationLevel(in.Level),
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}
	if err := h.notifications.Update(c.Request.Context(), notification); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, notification)
}

// DELETE /admin/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid notification id"))
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
