package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/service"
)

type ProfileHandler struct {
	profileService service.IProfileService
}

func NewProfileHandler(profileService service.IProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// Me 当前用户的资料
func (h *ProfileHandler) Me(c *gin.Context) {
	h.get(c, "")
}

// Get 成员目录中的其他用户
func (h *ProfileHandler) Get(c *gin.Context) {
	h.get(c, c.Param("id"))
}

func (h *ProfileHandler) get(c *gin.Context, userID string) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	profile, err := h.profileService.Get(c.Request.Context(), sess, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Update 部分更新，未提供的字段保持不变
func (h *ProfileHandler) Update(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := h.profileService.Update(c.Request.Context(), sess, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UploadAvatar expects a multipart file field named "avatar".
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	profile, err := h.profileService.UploadAvatar(c.Request.Context(), sess, service.Upload{Filename: fh.Filename, Body: f})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
