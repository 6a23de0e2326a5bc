package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteatlas/siteatlas/internal/basescore"
	"github.com/siteatlas/siteatlas/internal/enrich"
	"github.com/siteatlas/siteatlas/internal/geomath"
	"github.com/siteatlas/siteatlas/internal/opportunity"
	"github.com/siteatlas/siteatlas/internal/recommend"
	"github.com/siteatlas/siteatlas/internal/rescache"
	"github.com/siteatlas/siteatlas/internal/spatial"
	"github.com/siteatlas/siteatlas/pkg/latlong"
)

// fakeStore is an in-memory spatial.Store with scripted data.
type fakeStore struct {
	mu            sync.Mutex
	areas         map[string]spatial.Area
	competitors   map[string]int
	complementary map[string]int
	distributions map[string]map[string]int
	average       map[string]float64
	pois          []spatial.POI
	pingErr       error

	listCalls int
	bboxCalls int
}

func (f *fakeStore) ListAreas(ctx context.Context) ([]spatial.Area, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	var out []spatial.Area
	for _, a := range f.areas {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) FindArea(ctx context.Context, name string) (*spatial.Area, error) {
	if a, ok := f.areas[name]; ok {
		return &a, nil
	}
	return nil, spatial.ErrUnknownArea
}

func (f *fakeStore) AreaCentroids(ctx context.Context, names []string) ([]spatial.Area, error) {
	var out []spatial.Area
	for _, n := range names {
		if a, ok := f.areas[n]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) LocateFromPOIs(ctx context.Context, name string) (*spatial.Location, error) {
	return nil, spatial.ErrUnknownArea
}

func (f *fakeStore) CountInPolygon(ctx context.Context, categories []string, iso *geomath.Isochrone) (int, error) {
	return 0, eris.New("fake: no polygon support")
}

func (f *fakeStore) CountInRadius(ctx context.Context, categories []string, lat, lon, radiusKM float64) (int, error) {
	name := ""
	for n, a := range f.areas {
		if a.Lat == lat && a.Lon == lon {
			name = n
		}
	}
	if len(categories) == 1 {
		return f.competitors[name], nil
	}
	return f.complementary[name], nil
}

func (f *fakeStore) CategoryDistribution(ctx context.Context, areaName string) (map[string]int, error) {
	return f.distributions[areaName], nil
}

func (f *fakeStore) CategoryDistributionRadius(ctx context.Context, lat, lon, radiusKM float64) (map[string]int, error) {
	return nil, nil
}

func (f *fakeStore) AverageDistribution(ctx context.Context) (map[string]float64, error) {
	return f.average, nil
}

func (f *fakeStore) POIsInBBox(ctx context.Context, bbox geomath.BBox, limit int) ([]spatial.POI, error) {
	f.mu.Lock()
	f.bboxCalls++
	f.mu.Unlock()
	var out []spatial.POI
	for _, p := range f.pois {
		if bbox.Contains(geomath.Point{Lat: p.Lat, Lon: p.Lon}) {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(ctx context.Context) error    { return f.pingErr }
func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func testStore() *fakeStore {
	return &fakeStore{
		areas: map[string]spatial.Area{
			"Hauz Khas":  {Name: "Hauz Khas", Lat: 28.5494, Lon: 77.2001},
			"Karol Bagh": {Name: "Karol Bagh", Lat: 28.6519, Lon: 77.1909},
		},
		competitors:   map[string]int{"Hauz Khas": 12, "Karol Bagh": 2},
		complementary: map[string]int{"Hauz Khas": 40, "Karol Bagh": 6},
		distributions: map[string]map[string]int{
			"Hauz Khas": {"Food & Beverages": 30, "Fitness & Wellness": 2},
		},
		average: map[string]float64{"Food & Beverages": 20, "Fitness & Wellness": 8},
		pois: []spatial.POI{
			{ID: 1, Name: "Blue Tokai", Category: "cafe", SuperCategory: "Food & Beverages", Lat: 28.55, Lon: 77.20},
			{ID: 2, Name: "Cult Fit", Category: "gym", SuperCategory: "Fitness & Wellness", Lat: 28.56, Lon: 77.21},
			{ID: 3, Name: "Far Away Diner", Category: "restaurant", SuperCategory: "Food & Beverages", Lat: 28.90, Lon: 77.60},
		},
	}
}

func testProvider() *basescore.Provider {
	return basescore.NewProvider([]basescore.Area{
		{Name: "Hauz Khas", Criteria: map[string]float64{"Score_Footfall": 90}},
		{Name: "Karol Bagh", Criteria: map[string]float64{"Score_Footfall": 70}},
	})
}

func newTestServer(st *fakeStore, caches *rescache.Tiers, opts ...Option) *httptest.Server {
	scores := testProvider()
	engine := recommend.NewEngine(recommend.NewAggregator(st, scores), caches)
	analyzer := opportunity.NewAnalyzer(st, scores, caches)
	srv := New(engine, analyzer, st, caches, opts...)
	return httptest.NewServer(srv.Router())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_StoreDown(t *testing.T) {
	st := testStore()
	st.pingErr = eris.New("fake: connection refused")
	ts := newTestServer(st, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "degraded", body["status"])
}

func TestRecommend(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/recommend", map[string]any{
		"category":    "cafe",
		"distance_km": 1.0,
		"limit":       3,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[recommend.Result](t, resp)
	assert.Equal(t, "cafe", res.Category)
	assert.Equal(t, "Food & Beverages", res.SuperCategory)
	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, 0, res.Recommendations[0].Rank)
}

func TestRecommend_UnknownCategory(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/recommend", map[string]any{"category": "submarine leasing"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "unknown category", body.Error)
	assert.NotEmpty(t, body.RequestID)
}

func TestRecommend_BadBody(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/recommend", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRecommend_MissingCategory(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/recommend", map[string]any{"distance_km": 1.0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRecommendPoint(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/recommend/point", map[string]any{
		"category": "cafe",
		"name":     "Hauz Khas",
		"lat":      28.5494,
		"lon":      77.2001,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[recommend.Result](t, resp)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "Hauz Khas", res.Recommendations[0].Area)
	assert.Equal(t, 12, res.Recommendations[0].Competitors)
}

func TestRecommendPoint_MissingCoords(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/recommend/point", map[string]any{"category": "cafe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/analyze", map[string]any{"area": "Hauz Khas"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[opportunity.Analysis](t, resp)
	assert.Equal(t, "Hauz Khas", res.Area)
	assert.Equal(t, 32, res.TotalPOIs)
	assert.NotEmpty(t, res.Gaps)
}

func TestAnalyze_UnknownArea(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/analyze", map[string]any{"area": "Atlantis"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "unknown area", body.Error)
}

func TestAreas_UsesStaticCache(t *testing.T) {
	st := testStore()
	ts := newTestServer(st, rescache.NewTiers())
	defer ts.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/areas")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string][]spatial.Area](t, resp)
		assert.Len(t, body["areas"], 2)
	}
	assert.Equal(t, 1, st.listCalls)
}

func TestPoints(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/points?min_lat=28.5&min_lon=77.1&max_lat=28.6&max_lon=77.3")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Points []spatial.POI `json:"points"`
		Count  int           `json:"count"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	for _, p := range body.Points {
		assert.NotEqual(t, "Far Away Diner", p.Name)
	}
}

func TestPoints_UsesViewportCache(t *testing.T) {
	st := testStore()
	ts := newTestServer(st, rescache.NewTiers())
	defer ts.Close()

	url := ts.URL + "/api/points?min_lat=28.5&min_lon=77.1&max_lat=28.6&max_lon=77.3&limit=100"
	for i := 0; i < 2; i++ {
		resp, err := http.Get(url)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 1, st.bboxCalls)
}

func TestPoints_MissingParams(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/points?min_lat=28.5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPoints_InvertedBBox(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/points?min_lat=28.6&min_lon=77.1&max_lat=28.5&max_lon=77.3")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCategories(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/categories")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string][]string](t, resp)
	assert.Contains(t, body["categories"], "Food & Beverages")
}

func TestCacheStats(t *testing.T) {
	ts := newTestServer(testStore(), rescache.NewTiers())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/cache/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]rescache.Stats](t, resp)
	assert.Contains(t, body, "viewport")
	assert.Contains(t, body, "general")
	assert.Contains(t, body, "static")
}

type fakeGeocoder struct{}

func (fakeGeocoder) IsochroneGeometry(ctx context.Context, lat, lon, distanceKM float64) (json.RawMessage, error) {
	return nil, eris.New("fake: not implemented")
}

func (fakeGeocoder) Geocode(ctx context.Context, address string) (*latlong.GeocodeResult, error) {
	return &latlong.GeocodeResult{Name: address, Latitude: 28.6, Longitude: 77.2}, nil
}

func (fakeGeocoder) Autocomplete(ctx context.Context, query string, bias *latlong.Bias, limit int) ([]latlong.Suggestion, error) {
	return nil, nil
}

func TestGeocode(t *testing.T) {
	ts := newTestServer(testStore(), nil, WithGeocoder(fakeGeocoder{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/geocode?address=Khan+Market")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[latlong.GeocodeResult](t, resp)
	assert.Equal(t, "Khan Market", body.Name)
	assert.InDelta(t, 28.6, body.Latitude, 1e-9)
}

func TestGeocode_DisabledWithoutClient(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/geocode?address=Khan+Market")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRequestID_EchoedAndGenerated(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	resp.Body.Close()
}

func TestCORS_Preflight(t *testing.T) {
	ts := newTestServer(testStore(), nil, WithAllowedOrigins([]string{"http://localhost:3000"}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/recommend", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	resp.Body.Close()
}

type noteProvider struct {
	mu    sync.Mutex
	calls []string
}

func (p *noteProvider) Research(_ context.Context, area, category string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, area+"/"+category)
	return "market note for " + area, nil
}

func TestRecommend_EnrichFlag(t *testing.T) {
	provider := &noteProvider{}
	caches := rescache.NewTiers()
	ts := newTestServer(testStore(), caches, WithMerger(enrich.NewMerger(provider, 5*time.Second)))
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/recommend", map[string]any{
		"category": "cafe",
		"enrich":   true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[recommend.Result](t, resp)
	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, "market note for "+res.Recommendations[0].Area, res.Recommendations[0].Research)

	// the cached result must stay clean for callers that did not ask
	resp = postJSON(t, ts.URL+"/api/recommend", map[string]any{"category": "cafe"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[recommend.Result](t, resp)
	require.NotEmpty(t, res.Recommendations)
	assert.Empty(t, res.Recommendations[0].Research)
}

func TestRecommend_EnrichIgnoredWithoutMerger(t *testing.T) {
	ts := newTestServer(testStore(), nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/recommend", map[string]any{
		"category": "cafe",
		"enrich":   true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[recommend.Result](t, resp)
	require.NotEmpty(t, res.Recommendations)
	assert.Empty(t, res.Recommendations[0].Research)
}

func TestAnalyze_EnrichFlag(t *testing.T) {
	provider := &noteProvider{}
	ts := newTestServer(testStore(), nil, WithMerger(enrich.NewMerger(provider, 5*time.Second)))
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/analyze", map[string]any{
		"area":   "Hauz Khas",
		"enrich": true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	analysis := decode[opportunity.Analysis](t, resp)
	assert.Equal(t, "market note for Hauz Khas", analysis.Research)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "Hauz Khas/Food & Beverages", provider.calls[0])
}
