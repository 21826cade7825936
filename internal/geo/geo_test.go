package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/mpr/internal/config"
)

func locatorFor(srv *httptest.Server) *IPLocator {
	return NewIPLocator(config.GeolocationConfig{
		URL:     srv.URL,
		Timeout: 2 * time.Second,
	})
}

func TestCurrentLocationSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","lat":12.97,"lon":77.59}`))
	}))
	defer srv.Close()

	coords, err := locatorFor(srv).CurrentLocation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.97, coords.Latitude, 0.0001)
	assert.InDelta(t, 77.59, coords.Longitude, 0.0001)
}

func TestCurrentLocationProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	_, err := locatorFor(srv).CurrentLocation(context.Background())
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestCurrentLocationHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := locatorFor(srv).CurrentLocation(context.Background())
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestCurrentLocationUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	_, err := locatorFor(srv).CurrentLocation(context.Background())
	require.ErrorIs(t, err, ErrUnresolved)
}
