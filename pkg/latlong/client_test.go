package latlong

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteatlas/siteatlas/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token",
		WithBaseURL(srv.URL),
		WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	)
}

func TestIsochroneGeometry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/isochrone.json", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Authorization-Token"))
		assert.Equal(t, "1", r.URL.Query().Get("distance_limit"))

		w.Write([]byte(`{
			"status": "success",
			"data": {
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[77.1,28.5],[77.2,28.5],[77.2,28.6],[77.1,28.5]]]}
			}
		}`))
	})

	geom, err := c.IsochroneGeometry(context.Background(), 28.55, 77.15, 1.0)
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(geom, &decoded))
	assert.Equal(t, "Polygon", decoded.Type)
}

func TestIsochroneMissingGeometry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"type": "Feature"}}`))
	})
	_, err := c.IsochroneGeometry(context.Background(), 28.55, 77.15, 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no geometry")
}

func TestGeocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode.json", r.URL.Path)
		assert.Equal(t, "Hauz Khas Village", r.URL.Query().Get("address"))
		w.Write([]byte(`{"status": "success", "data": {"name": "Hauz Khas Village", "latitude": 28.5535, "longitude": 77.1945}}`))
	})

	res, err := c.Geocode(context.Background(), "Hauz Khas Village")
	require.NoError(t, err)
	assert.InDelta(t, 28.5535, res.Latitude, 1e-9)
}

func TestAutocomplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/autocomplete.json", r.URL.Path)
		assert.Equal(t, "khan", r.URL.Query().Get("query"))
		assert.Equal(t, "28.600000", r.URL.Query().Get("lat"))
		w.Write([]byte(`{"status": "success", "data": [{"geoid": "g1", "name": "Khan Market"}]}`))
	})

	out, err := c.Autocomplete(context.Background(), "khan", &Bias{Lat: 28.6, Lon: 77.2}, 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Khan Market", out[0].Name)
}

func TestErrorStatusEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "message": "invalid token"}`))
	})
	_, err := c.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestTransientRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status": "success", "data": {"name": "ok", "latitude": 1, "longitude": 2}}`))
	})

	res, err := c.Geocode(context.Background(), "anywhere")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`bad request`))
	})

	_, err := c.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
