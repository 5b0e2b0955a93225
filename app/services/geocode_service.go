package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marcel-gle/gb-qr-tracker/models"
)

// Geocoder resolves a free-form address to a coordinate. Returns (nil, nil)
// when the address cannot be resolved; errors are reserved for transport
// failures.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Coordinate, error)
}

type MapboxClient struct {
	BaseURL     string
	AccessToken string
	CountryHint string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

func NewMapboxClient(baseURL, accessToken, countryHint string, timeout time.Duration) *MapboxClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	}
	return &MapboxClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: accessToken,
		CountryHint: countryHint,
		HTTPClient:  &http.Client{Timeout: timeout},
		Timeout:     timeout,
	}
}

func (c *MapboxClient) Name() string { return "mapbox" }

type mapboxFeature struct {
	Center []float64 `json:"center"` // [lon, lat]
}

type mapboxGeocodeResp struct {
	Features []mapboxFeature `json:"features"`
}

func (c *MapboxClient) Geocode(ctx context.Context, address string) (*models.Coordinate, error) {
	if c.AccessToken == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/%s.json", c.BaseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("access_token", c.AccessToken)
	q.Set("limit", "1")
	if c.CountryHint != "" {
		q.Set("country", c.CountryHint)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox geocoding returned status %d", resp.StatusCode)
	}

	var out mapboxGeocodeResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Features) == 0 || len(out.Features[0].Center) != 2 {
		return nil, nil
	}
	return &models.Coordinate{
		Lon:    out.Features[0].Center[0],
		Lat:    out.Features[0].Center[1],
		Source: "mapbox",
	}, nil
}
