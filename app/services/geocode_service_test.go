package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapboxClientGeocode(t *testing.T) {
	t.Run("ResolvesAddress", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "token-123", r.URL.Query().Get("access_token"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			assert.Equal(t, "DE", r.URL.Query().Get("country"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"features":[{"center":[11.575,48.137]}]}`))
		}))
		defer server.Close()

		client := NewMapboxClient(server.URL, "token-123", "DE", 5*time.Second)
		coord, err := client.Geocode(context.Background(), "Hauptstraße 12, 80331 München, Germany")
		require.NoError(t, err)
		require.NotNil(t, coord)
		// Mapbox centers are [lon, lat].
		assert.Equal(t, 11.575, coord.Lon)
		assert.Equal(t, 48.137, coord.Lat)
		assert.Equal(t, "mapbox", coord.Source)
	})

	t.Run("NoFeatures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"features":[]}`))
		}))
		defer server.Close()

		client := NewMapboxClient(server.URL, "token-123", "DE", 5*time.Second)
		coord, err := client.Geocode(context.Background(), "Nirgendwo 1")
		require.NoError(t, err)
		assert.Nil(t, coord)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewMapboxClient(server.URL, "token-123", "DE", 5*time.Second)
		_, err := client.Geocode(context.Background(), "Hauptstraße 12")
		assert.Error(t, err)
	})

	t.Run("MissingTokenResolvesNothing", func(t *testing.T) {
		client := NewMapboxClient("http://127.0.0.1:0", "", "DE", time.Second)
		coord, err := client.Geocode(context.Background(), "Hauptstraße 12")
		require.NoError(t, err)
		assert.Nil(t, coord)
	})

	t.Run("Defaults", func(t *testing.T) {
		client := NewMapboxClient("", "token-123", "", 0)
		assert.Equal(t, "https://api.mapbox.com/geocoding/v5/mapbox.places", client.BaseURL)
		assert.Equal(t, 10*time.Second, client.Timeout)
	})
}
