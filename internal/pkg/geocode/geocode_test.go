package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.GeocoderConfig{APIKey: "AIza-test-key", BaseURL: srv.URL, Language: "en"})
	require.NoError(t, err)
	return c
}

func TestReverse(t *testing.T) {
	t.Run("keeps the first three parts", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
			assert.Contains(t, r.URL.Query().Get("latlng"), "35.0116")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Gion, Higashiyama Ward, Kyoto, 605-0001, Japan","geometry":{"location":{"lat":35.0116,"lng":135.7681}}}]}`))
		})

		addr, err := c.Reverse(context.Background(), 35.0116, 135.7681)
		require.NoError(t, err)
		assert.Equal(t, "Gion, Higashiyama Ward, Kyoto", addr)
	})

	t.Run("zero results", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		})

		_, err := c.Reverse(context.Background(), 0, 0)
		assert.Error(t, err)
	})

	t.Run("upstream failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := c.Reverse(context.Background(), 1, 2)
		assert.Error(t, err)
	})
}

func TestSearch(t *testing.T) {
	t.Run("caps results", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "kyoto station", r.URL.Query().Get("address"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"OK","results":[
				{"formatted_address":"A","geometry":{"location":{"lat":1,"lng":2}}},
				{"formatted_address":"B","geometry":{"location":{"lat":3,"lng":4}}},
				{"formatted_address":"C","geometry":{"location":{"lat":5,"lng":6}}},
				{"formatted_address":"D","geometry":{"location":{"lat":7,"lng":8}}},
				{"formatted_address":"E","geometry":{"location":{"lat":9,"lng":10}}},
				{"formatted_address":"F","geometry":{"location":{"lat":11,"lng":12}}}
			]}`))
		})

		places, err := c.Search(context.Background(), " kyoto station ")
		require.NoError(t, err)
		require.Len(t, places, MaxResults)
		assert.Equal(t, Place{DisplayName: "A", Lat: 1, Lon: 2}, places[0])
		assert.Equal(t, "E", places[4].DisplayName)
	})

	t.Run("blank query does not call upstream", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("unexpected request")
		})

		places, err := c.Search(context.Background(), "   ")
		require.NoError(t, err)
		assert.Empty(t, places)
	})
}

func TestShortAddress(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a, b, c, d, e", "a, b, c"},
		{"a,b", "a, b"},
		{"single", "single"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortAddress(tt.in))
		})
	}
}

func TestFallbackAndDisabled(t *testing.T) {
	assert.Equal(t, "40.7306, -73.9352", Fallback(40.730610, -73.935242))

	g, err := New(config.GeocoderConfig{})
	require.NoError(t, err)
	_, err = g.Reverse(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.Search(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
}
