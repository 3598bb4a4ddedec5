package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/pkg/geocode"
)

// ReverseResult carries a warning when the address fell back to raw coordinates.
type ReverseResult struct {
	Address string `json:"address"`
	Warning string `json:"warning,omitempty"`
}

type SearchResult struct {
	Places  []geocode.Place `json:"places"`
	Warning string          `json:"warning,omitempty"`
}

// IGeoService defines the geocoding lookups; failures never fail the call
type IGeoService interface {
	Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error)
	Search(ctx context.Context, query string) (*SearchResult, error)
}

type GeoService struct {
	geocoder geocode.Geocoder
	logger   *zap.Logger
}

func NewGeoService(geocoder geocode.Geocoder, logger *zap.Logger) IGeoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if geocoder == nil {
		geocoder = geocode.Disabled{}
	}
	return &GeoService{geocoder: geocoder, logger: logger}
}

func (s *GeoService) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	const op = "service.Geo.Reverse"
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, apperr.Validation(op, "coordinates out of range")
	}
	addr, err := s.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		warn := apperr.ExternalService(op, err)
		if !errors.Is(err, geocode.ErrDisabled) {
			s.logger.Warn("reverse geocoding failed", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		}
		return &ReverseResult{Address: geocode.Fallback(lat, lon), Warning: apperr.Message(warn)}, nil
	}
	return &ReverseResult{Address: addr}, nil
}

func (s *GeoService) Search(ctx context.Context, query string) (*SearchResult, error) {
	const op = "service.Geo.Search"
	query = strings.TrimSpace(query)
	if query == "" {
		return &SearchResult{Places: []geocode.Place{}}, nil
	}
	places, err := s.geocoder.Search(ctx, query)
	if err != nil {
		warn := apperr.ExternalService(op, err)
		if !errors.Is(err, geocode.ErrDisabled) {
			s.logger.Warn("forward geocoding failed", zap.String("query", query), zap.Error(err))
		}
		return &SearchResult{Places: []geocode.Place{}, Warning: apperr.Message(warn)}, nil
	}
	if places == nil {
		places = []geocode.Place{}
	}
	return &SearchResult{Places: places}, nil
}
