package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/service"
)

// AnalyticsHandler serves the circle dashboard and its printable export.
type AnalyticsHandler struct {
	analyticsService service.IAnalyticsService
	scrapbookService service.IScrapbookService
}

func NewAnalyticsHandler(analyticsService service.IAnalyticsService, scrapbookService service.IScrapbookService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		scrapbookService: scrapbookService,
	}
}

// Circle ?year= 为空或 "All"（不区分大小写）表示全部年份
func (h *AnalyticsHandler) Circle(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	analytics, err := h.analyticsService.Circle(c.Request.Context(), sess, c.Param("id"), c.Query("year"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// Scrapbook renders printable HTML.
func (h *AnalyticsHandler) Scrapbook(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	page, err := h.scrapbookService.Render(c.Request.Context(), sess, c.Param("id"), c.Query("year"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
