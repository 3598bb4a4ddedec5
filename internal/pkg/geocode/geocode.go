// Package geocode 通过 Google Geocoding API 做正向与反向地理编码。
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/Gopher0727/SocialSync/config"
)

// MaxResults caps forward search results used for autocomplete.
const MaxResults = 5

var (
	ErrDisabled = errors.New("geocoder is not configured")
	ErrNoResult = errors.New("no geocoding result")
)

type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
	Search(ctx context.Context, query string) ([]Place, error)
}

type Client struct {
	maps     *maps.Client
	language string
	timeout  time.Duration
}

// New returns a Disabled geocoder when no API key is configured.
func New(cfg config.GeocoderConfig) (Geocoder, error) {
	if cfg.APIKey == "" {
		return Disabled{}, nil
	}
	return NewClient(cfg)
}

func NewClient(cfg config.GeocoderConfig) (*Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("init maps client: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{maps: mc, language: cfg.Language, timeout: timeout}, nil
}

// Reverse returns a short address: the first three comma separated parts.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: lat, Lng: lon},
		Language: c.language,
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return "", ErrNoResult
	}
	return ShortAddress(results[0].FormattedAddress), nil
}

func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{
		Address:  query,
		Language: c.language,
	})
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	places := make([]Place, 0, min(len(results), MaxResults))
	for _, r := range results {
		if len(places) == MaxResults {
			break
		}
		places = append(places, Place{
			DisplayName: r.FormattedAddress,
			Lat:         r.Geometry.Location.Lat,
			Lon:         r.Geometry.Location.Lng,
		})
	}
	return places, nil
}

// ShortAddress keeps the first three comma separated parts of addr.
func ShortAddress(addr string) string {
	parts := strings.Split(addr, ",")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}

// Fallback is shown when reverse geocoding fails.
func Fallback(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}

// Disabled fails every lookup with ErrDisabled.
type Disabled struct{}

func (Disabled) Reverse(context.Context, float64, float64) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Search(context.Context, string) ([]Place, error) {
	return nil, ErrDisabled
}
