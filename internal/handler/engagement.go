package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/service"
)

// EngagementHandler serves comments and reactions on meetings.
type EngagementHandler struct {
	engagementService service.IEngagementService
}

func NewEngagementHandler(engagementService service.IEngagementService) *EngagementHandler {
	return &EngagementHandler{engagementService: engagementService}
}

// Comments retrieves comments of a meeting, oldest first
func (h *EngagementHandler) Comments(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	comments, err := h.engagementService.ListComments(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *EngagementHandler) AddComment(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	comment, err := h.engagementService.AddComment(c.Request.Context(), sess, c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment 只能删除自己的评论
func (h *EngagementHandler) DeleteComment(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := h.engagementService.DeleteComment(c.Request.Context(), sess, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

func (h *EngagementHandler) Reactions(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	summary, err := h.engagementService.Reactions(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ToggleReaction 同一表情再点一次即撤销
func (h *EngagementHandler) ToggleReaction(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.engagementService.ToggleReaction(c.Request.Context(), sess, c.Param("id"), req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
