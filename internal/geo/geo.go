package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/your-org/mpr/internal/config"
)

// ErrUnresolved is returned when the current location cannot be determined.
// Callers treat this as a silent downgrade: no location is recorded and no
// error is surfaced to the session.
var ErrUnresolved = errors.New("geolocation unresolved")

// Coordinates is an approximate latitude/longitude for the current network
// vantage point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Locator resolves the current approximate location.
type Locator interface {
	CurrentLocation(ctx context.Context) (Coordinates, error)
}

// IPLocator queries an ip-api.com style JSON endpoint.
type IPLocator struct {
	client *http.Client
	url    string
}

func NewIPLocator(cfg config.GeolocationConfig) *IPLocator {
	return &IPLocator{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.URL,
	}
}

func (l *IPLocator) CurrentLocation(ctx context.Context) (Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("build geolocation request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("%w: status %d", ErrUnresolved, resp.StatusCode)
	}

	var body struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinates{}, fmt.Errorf("%w: decode response: %v", ErrUnresolved, err)
	}
	if body.Status != "success" {
		return Coordinates{}, fmt.Errorf("%w: status %q", ErrUnresolved, body.Status)
	}

	return Coordinates{Latitude: body.Lat, Longitude: body.Lon}, nil
}
