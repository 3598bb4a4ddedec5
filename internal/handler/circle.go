package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/service"
)

type CircleHandler struct {
	circleService  service.ICircleService
	meetingService service.IMeetingService
}

func NewCircleHandler(circleService service.ICircleService, meetingService service.IMeetingService) *CircleHandler {
	return &CircleHandler{
		circleService:  circleService,
		meetingService: meetingService,
	}
}

// circleView carries the shareable join link next to the circle.
type circleView struct {
	*model.Circle
	InviteLink string `json:"invite_link"`
}

func (h *CircleHandler) view(circle *model.Circle) *circleView {
	if circle == nil {
		return nil
	}
	return &circleView{Circle: circle, InviteLink: h.circleService.InviteLink(circle.InviteCode)}
}

// ListMine retrieves circles of the authenticated user
func (h *CircleHandler) ListMine(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	circles, err := h.circleService.ListMine(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]*circleView, 0, len(circles))
	for _, circle := range circles {
		views = append(views, h.view(circle))
	}
	c.JSON(http.StatusOK, views)
}

// Create handles circle creation
func (h *CircleHandler) Create(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.CreateCircleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	circle, err := h.circleService.Create(c.Request.Context(), sess, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(circle))
}

// Join handles joining a circle via invite code
func (h *CircleHandler) Join(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.JoinCircleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	circle, err := h.circleService.Join(c.Request.Context(), sess, req.InviteCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(circle))
}

// Invite adds a registered user directly or returns a join link for everyone else.
func (h *CircleHandler) Invite(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	outcome, err := h.circleService.InviteByEmail(c.Request.Context(), sess, c.Param("id"), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Leave 退出圈子
func (h *CircleHandler) Leave(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := h.circleService.Leave(c.Request.Context(), sess, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left circle"})
}

// Delete 解散圈子，仅创建者可操作
func (h *CircleHandler) Delete(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := h.circleService.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "circle deleted"})
}

// Members retrieves the member directory of a circle
func (h *CircleHandler) Members(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	members, err := h.circleService.ListMembers(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// Active returns the last used circle; "circle" is null when the user has none.
func (h *CircleHandler) Active(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	circle, err := h.circleService.GetActive(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"circle": h.view(circle)})
}

func (h *CircleHandler) SetActive(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req struct {
		CircleID string `json:"circle_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	circle, err := h.circleService.SetActive(c.Request.Context(), sess, req.CircleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"circle": h.view(circle)})
}

// Meetings lists the circle's memories, optionally for one year.
func (h *CircleHandler) Meetings(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	meetings, err := h.meetingService.ListByCircle(c.Request.Context(), sess, c.Param("id"), c.Query("year"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meetings)
}
