package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/climatrack/climatrack/internal/models"
)

// GeoClient resolves free-text location queries to canonical locations via
// the OpenWeatherMap direct-geocoding endpoint. It is a collaborator of the
// gateway, not part of the weather quota.
type GeoClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewGeoClient creates a geocoding client. baseURL is the geocoding API root
// (e.g. https://api.openweathermap.org/geo/1.0); the /direct endpoint is
// appended unless the URL already names it.
func NewGeoClient(apiKey, baseURL string, timeout time.Duration) (*GeoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/direct") {
		endpoint += "/direct"
	}
	return &GeoClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Resolve returns the best match for the query. An empty result set maps to
// ErrLocationNotFound.
func (g *GeoClient) Resolve(ctx context.Context, query string) (models.Location, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "1")
	params.Set("appid", g.apiKey)

	u, err := url.Parse(g.endpoint)
	if err != nil {
		return models.Location{}, fmt.Errorf("invalid geocoding URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return models.Location{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Location{}, fmt.Errorf("%w: geocode timeout: %v", ErrNetwork, err)
		}
		return models.Location{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := handleErrorResponse(resp); err != nil {
		return models.Location{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: read response body: %v", ErrNetwork, err)
	}

	var hits []GeoHitPayload
	if err := json.Unmarshal(body, &hits); err != nil {
		return models.Location{}, fmt.Errorf("parse geocode response: %w", err)
	}
	if len(hits) == 0 {
		return models.Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	}

	hit := hits[0]
	return models.Location{
		ID:      canonicalLocationID(hit.Name, hit.Country),
		Name:    hit.Name,
		Country: hit.Country,
		Lat:     hit.Lat,
		Lon:     hit.Lon,
	}, nil
}

// canonicalLocationID builds a stable lowercase identifier ("london,gb").
func canonicalLocationID(name, country string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	if country != "" {
		id += "," + strings.ToLower(strings.TrimSpace(country))
	}
	return id
}
