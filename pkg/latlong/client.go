// Package latlong wraps the LatLong.ai geospatial API: isochrones, geocoding
// and place autocomplete.
package latlong

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/siteatlas/siteatlas/internal/resilience"
)

const defaultBaseURL = "https://apihub.latlong.ai/v4"

// Client calls the LatLong API.
type Client interface {
	// IsochroneGeometry returns the GeoJSON geometry of the area reachable
	// within distanceKM of a point.
	IsochroneGeometry(ctx context.Context, lat, lon, distanceKM float64) (json.RawMessage, error)

	// Geocode resolves a free-text address.
	Geocode(ctx context.Context, address string) (*GeocodeResult, error)

	// Autocomplete suggests places for a partial query, optionally biased
	// towards a location.
	Autocomplete(ctx context.Context, query string, bias *Bias, limit int) ([]Suggestion, error)
}

// GeocodeResult is one resolved address.
type GeocodeResult struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  string  `json:"accuracy,omitempty"`
}

// Bias biases autocomplete results towards a point.
type Bias struct {
	Lat float64
	Lon float64
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	GeoID string `json:"geoid"`
	Name  string `json:"name"`
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)) }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) { c.retry = cfg }
}

type client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a LatLong API client authenticated by token.
func NewClient(token string, opts ...Option) Client {
	c := &client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common LatLong response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

func (c *client) IsochroneGeometry(ctx context.Context, lat, lon, distanceKM float64) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", lat))
	params.Set("longitude", fmt.Sprintf("%f", lon))
	params.Set("distance_limit", fmt.Sprintf("%g", distanceKM))

	data, err := c.get(ctx, "isochrone.json", params)
	if err != nil {
		return nil, err
	}

	var feature struct {
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(data, &feature); err != nil {
		return nil, eris.Wrap(err, "latlong: decode isochrone feature")
	}
	if len(feature.Geometry) == 0 {
		return nil, eris.New("latlong: isochrone response has no geometry")
	}
	return feature.Geometry, nil
}

func (c *client) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	params := url.Values{}
	params.Set("address", address)

	data, err := c.get(ctx, "geocode.json", params)
	if err != nil {
		return nil, err
	}
	var res GeocodeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, eris.Wrap(err, "latlong: decode geocode result")
	}
	return &res, nil
}

func (c *client) Autocomplete(ctx context.Context, query string, bias *Bias, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("language", "en")
	if bias != nil {
		params.Set("lat", fmt.Sprintf("%f", bias.Lat))
		params.Set("lon", fmt.Sprintf("%f", bias.Lon))
	}

	data, err := c.get(ctx, "autocomplete.json", params)
	if err != nil {
		return nil, err
	}
	var out []Suggestion
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "latlong: decode suggestions")
	}
	return out, nil
}

// get runs one authenticated GET with rate limiting and transient retry, and
// unwraps the response envelope.
func (c *client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "latlong: rate limit wait")
		}

		u := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "latlong: build request %s", endpoint)
		}
		req.Header.Set("X-Authorization-Token", c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "latlong: %s", endpoint), 0)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, eris.Wrapf(err, "latlong: read %s response", endpoint)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("latlong: %s returned %d", endpoint, resp.StatusCode), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("latlong: %s returned %d: %s", endpoint, resp.StatusCode, string(body))
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, eris.Wrapf(err, "latlong: decode %s envelope", endpoint)
		}
		if env.Status != "success" {
			return nil, eris.Errorf("latlong: %s status %q: %s", endpoint, env.Status, env.Message)
		}
		return env.Data, nil
	})
}
