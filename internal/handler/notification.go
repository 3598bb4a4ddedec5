package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/pkg/gateway"
	"github.com/Gopher0727/SocialSync/internal/service"
)

type NotificationHandler struct {
	notificationService service.INotificationService
	hub                 *gateway.Hub
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService service.INotificationService, hub *gateway.Hub, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{
		notificationService: notificationService,
		hub:                 hub,
		logger:              logger,
	}
}

// List 最近 20 条通知及其中未读数
func (h *NotificationHandler) List(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	list, err := h.notificationService.List(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), sess, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := h.notificationService.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}

// Stream upgrades to a websocket that receives every new notification of the user.
func (h *NotificationHandler) Stream(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	sub, err := h.hub.Subscribe(c.Writer, c.Request, sess.UserID)
	if err != nil {
		// upgrader 已经写回了 HTTP 错误
		h.logger.Debug("websocket subscribe failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return
	}
	defer sub.Close()
	sub.Run()
}
