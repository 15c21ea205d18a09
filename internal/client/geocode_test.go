package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestGeoClient(t *testing.T, serverURL string) *GeoClient {
	t.Helper()
	g, err := NewGeoClient(testAPIKey, serverURL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewGeoClient() error = %v", err)
	}
	return g
}

func TestGeoClient_Resolve(t *testing.T) {
	// Arrange: base URL is the API root, as the config supplies it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geo/1.0/direct" {
			t.Errorf("request path = %q, want /geo/1.0/direct", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "London" {
			t.Errorf("q = %q, want London", r.URL.Query().Get("q"))
		}
		w.Write([]byte(`[{"name":"London","lat":51.5074,"lon":-0.1278,"country":"GB"}]`))
	}))
	defer server.Close()
	g := newTestGeoClient(t, server.URL+"/geo/1.0")

	// Act
	loc, err := g.Resolve(context.Background(), "London")

	// Assert
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loc.ID != "london,gb" {
		t.Errorf("ID = %q, want london,gb", loc.ID)
	}
	if loc.Name != "London" || loc.Country != "GB" {
		t.Errorf("name/country = %q/%q, want London/GB", loc.Name, loc.Country)
	}
	if loc.Lat != 51.5074 || loc.Lon != -0.1278 {
		t.Errorf("coordinates = %v/%v, want 51.5074/-0.1278", loc.Lat, loc.Lon)
	}
}

func TestGeoClient_Resolve_NoMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()
	g := newTestGeoClient(t, server.URL)

	_, err := g.Resolve(context.Background(), "nowhere-at-all")

	if !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("Resolve() error = %v, want ErrLocationNotFound", err)
	}
}

func TestGeoClient_Resolve_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	g := newTestGeoClient(t, server.URL)

	_, err := g.Resolve(context.Background(), "London")

	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Resolve() error = %v, want ErrInvalidAPIKey", err)
	}
}

func TestGeoClient_DirectEndpointResolution(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"api root", "https://api.openweathermap.org/geo/1.0", "https://api.openweathermap.org/geo/1.0/direct"},
		{"trailing slash", "https://api.openweathermap.org/geo/1.0/", "https://api.openweathermap.org/geo/1.0/direct"},
		{"already direct", "https://api.openweathermap.org/geo/1.0/direct", "https://api.openweathermap.org/geo/1.0/direct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGeoClient(testAPIKey, tt.baseURL, time.Second)
			if err != nil {
				t.Fatalf("NewGeoClient() error = %v", err)
			}
			if g.endpoint != tt.want {
				t.Errorf("endpoint = %q, want %q", g.endpoint, tt.want)
			}
		})
	}
}

func TestCanonicalLocationID(t *testing.T) {
	tests := []struct {
		name    string
		city    string
		country string
		want    string
	}{
		{"city and country", "London", "GB", "london,gb"},
		{"no country", "Atlantis", "", "atlantis"},
		{"trims whitespace", " New York ", " US ", "new york,us"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canonicalLocationID(tt.city, tt.country); got != tt.want {
				t.Errorf("canonicalLocationID(%q, %q) = %q, want %q", tt.city, tt.country, got, tt.want)
			}
		})
	}
}
