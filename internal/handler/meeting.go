package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/service"
)

// mediaField is the multipart field carrying meeting attachments.
const mediaField = "media"

type MeetingHandler struct {
	meetingService service.IMeetingService
}

func NewMeetingHandler(meetingService service.IMeetingService) *MeetingHandler {
	return &MeetingHandler{meetingService: meetingService}
}

// openUploads opens every file of the media field. The returned close func
// must be called once the service is done reading.
func openUploads(c *gin.Context) ([]service.Upload, func(), error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}

	var (
		uploads []service.Upload
		files   []io.Closer
	)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, fh := range form.File[mediaField] {
		var f multipart.File
		if f, err = fh.Open(); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Body: f})
	}
	return uploads, closeAll, nil
}

// Log 记录一次聚会，表单字段见 service.MeetingInput，附件字段为 media
func (h *MeetingHandler) Log(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var in service.MeetingInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, err)
		return
	}
	uploads, done, err := openUploads(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	defer done()

	detail, err := h.meetingService.Log(c.Request.Context(), sess, &in, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// Edit 仅创建者可编辑
func (h *MeetingHandler) Edit(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var in service.MeetingInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, err)
		return
	}
	uploads, done, err := openUploads(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	defer done()

	detail, err := h.meetingService.Edit(c.Request.Context(), sess, c.Param("id"), &in, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListMine 当前用户创建的聚会，按日期倒序
func (h *MeetingHandler) ListMine(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	meetings, err := h.meetingService.ListMine(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meetings)
}

func (h *MeetingHandler) Get(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	detail, err := h.meetingService.Get(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *MeetingHandler) Delete(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := h.meetingService.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "meeting deleted"})
}
