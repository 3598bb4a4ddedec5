package stats

import (
	"math"

	"github.com/Gopher0727/SocialSync/internal/model"
)

const (
	defaultCenterLat = 40.730610
	defaultCenterLng = -73.935242
	defaultZoom      = 10
)

type Pin struct {
	MeetingID string  `json:"meeting_id"`
	Title     string  `json:"title"`
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type MapView struct {
	Pins      []Pin   `json:"pins"`
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
	Zoom      int     `json:"zoom"`
}

// BuildMapView 以所有坐标的平均值为中心，按经纬度跨度选择缩放级别
func BuildMapView(meetings []*model.Meeting) MapView {
	view := MapView{Pins: make([]Pin, 0), CenterLat: defaultCenterLat, CenterLng: defaultCenterLng, Zoom: defaultZoom}

	for _, m := range meetings {
		if m.Latitude == nil || m.Longitude == nil {
			continue
		}
		view.Pins = append(view.Pins, Pin{
			MeetingID: m.ID,
			Title:     m.Title,
			Location:  m.Location,
			Latitude:  *m.Latitude,
			Longitude: *m.Longitude,
		})
	}
	if len(view.Pins) == 0 {
		return view
	}

	var sumLat, sumLng float64
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for _, p := range view.Pins {
		sumLat += p.Latitude
		sumLng += p.Longitude
		minLat, maxLat = math.Min(minLat, p.Latitude), math.Max(maxLat, p.Latitude)
		minLng, maxLng = math.Min(minLng, p.Longitude), math.Max(maxLng, p.Longitude)
	}
	n := float64(len(view.Pins))
	view.CenterLat = sumLat / n
	view.CenterLng = sumLng / n
	view.Zoom = zoomForSpread(math.Max(maxLat-minLat, maxLng-minLng))
	return view
}

func zoomForSpread(spread float64) int {
	switch {
	case spread > 10:
		return 4
	case spread > 5:
		return 6
	case spread > 1:
		return 8
	case spread > 0.5:
		return 10
	default:
		return 12
	}
}
