package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/service"
)

type BadgeHandler struct {
	badgeService service.IBadgeService
}

func NewBadgeHandler(badgeService service.IBadgeService) *BadgeHandler {
	return &BadgeHandler{badgeService: badgeService}
}

// TrophyRoom 所有徽章及当前用户是否已获得
func (h *BadgeHandler) TrophyRoom(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	badges, err := h.badgeService.TrophyRoom(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, badges)
}

// Evaluate returns only the badges awarded by this call.
func (h *BadgeHandler) Evaluate(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	awarded, err := h.badgeService.Evaluate(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awarded})
}
