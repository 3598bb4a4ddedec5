package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/service"
)

type GeoHandler struct {
	geoService service.IGeoService
}

func NewGeoHandler(geoService service.IGeoService) *GeoHandler {
	return &GeoHandler{geoService: geoService}
}

// Reverse GET /geo/reverse?lat=&lon=
func (h *GeoHandler) Reverse(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat must be a number"})
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lon must be a number"})
		return
	}

	result, err := h.geoService.Reverse(c.Request.Context(), lat, lon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Search GET /geo/search?q=
func (h *GeoHandler) Search(c *gin.Context) {
	result, err := h.geoService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
