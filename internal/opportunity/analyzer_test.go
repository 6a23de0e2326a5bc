package opportunity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteatlas/siteatlas/internal/basescore"
	"github.com/siteatlas/siteatlas/internal/geomath"
	"github.com/siteatlas/siteatlas/internal/rescache"
	"github.com/siteatlas/siteatlas/internal/spatial"
)

// stubStore serves a fixed area, distribution and city average.
type stubStore struct {
	area     *spatial.Area
	poiLoc   *spatial.Location
	dist     map[string]int
	cityAvg  map[string]float64
	avgCalls int
}

func (s *stubStore) FindArea(ctx context.Context, name string) (*spatial.Area, error) {
	if s.area != nil {
		return s.area, nil
	}
	return nil, spatial.ErrUnknownArea
}

func (s *stubStore) LocateFromPOIs(ctx context.Context, name string) (*spatial.Location, error) {
	if s.poiLoc != nil {
		return s.poiLoc, nil
	}
	return nil, spatial.ErrUnknownArea
}

func (s *stubStore) CategoryDistribution(ctx context.Context, areaName string) (map[string]int, error) {
	return s.dist, nil
}

func (s *stubStore) CategoryDistributionRadius(ctx context.Context, lat, lon, radiusKM float64) (map[string]int, error) {
	return s.dist, nil
}

func (s *stubStore) AverageDistribution(ctx context.Context) (map[string]float64, error) {
	s.avgCalls++
	return s.cityAvg, nil
}

func (s *stubStore) ListAreas(ctx context.Context) ([]spatial.Area, error) { return nil, nil }
func (s *stubStore) AreaCentroids(ctx context.Context, names []string) ([]spatial.Area, error) {
	return nil, nil
}
func (s *stubStore) CountInPolygon(ctx context.Context, categories []string, iso *geomath.Isochrone) (int, error) {
	return 0, nil
}
func (s *stubStore) CountInRadius(ctx context.Context, categories []string, lat, lon, radiusKM float64) (int, error) {
	return 0, nil
}
func (s *stubStore) POIsInBBox(ctx context.Context, bbox geomath.BBox, limit int) ([]spatial.POI, error) {
	return nil, nil
}
func (s *stubStore) Ping(ctx context.Context) error    { return nil }
func (s *stubStore) Migrate(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                      { return nil }

func highScoreProvider() *basescore.Provider {
	criteria := map[string]float64{
		"Score_Population_Density": 90, "Score_Footfall": 90, "Score_Transit": 90,
		"Score_Traffic": 90, "Score_Rent_Value": 90, "Score_Parking": 90,
		"Score_Night_Activity": 90, "Score_Walkability": 90, "Score_POI_Synergy": 90,
		"Score_Safety": 90,
	}
	return basescore.NewProvider([]basescore.Area{{Name: "Hauz Khas", Criteria: criteria}})
}

func TestAnalyzeGymGapScenario(t *testing.T) {
	// zero gyms, 50 restaurants, in a high-base-score area
	st := &stubStore{
		area: &spatial.Area{Name: "Hauz Khas", Lat: 28.5494, Lon: 77.2001},
		dist: map[string]int{
			"Food & Beverages":  50,
			"Shopping & Retail": 20,
		},
		cityAvg: map[string]float64{
			"Food & Beverages":   30,
			"Fitness & Wellness": 8,
			"Shopping & Retail":  25,
		},
	}
	a := NewAnalyzer(st, highScoreProvider(), nil)

	res, err := a.Analyze(context.Background(), "Hauz Khas")
	require.NoError(t, err)
	assert.Equal(t, "Hauz Khas", res.Area)
	assert.Equal(t, 70, res.TotalPOIs)

	var fitness *Gap
	for i := range res.Gaps {
		if res.Gaps[i].Category == "Fitness & Wellness" {
			fitness = &res.Gaps[i]
		}
	}
	require.NotNil(t, fitness, "missing fitness gap in %+v", res.Gaps)
	assert.Equal(t, "underserved", fitness.Status)
	assert.Greater(t, fitness.GapScore, 50.0)

	for _, g := range res.Gaps {
		if g.Category == "Food & Beverages" {
			assert.Equal(t, "saturated", g.Status)
			assert.Less(t, g.GapScore, fitness.GapScore)
		}
	}
}

func TestAnalyzeGapMonotonicInSupply(t *testing.T) {
	mk := func(fitnessCount int) float64 {
		st := &stubStore{
			area:    &spatial.Area{Name: "Hauz Khas"},
			dist:    map[string]int{"Fitness & Wellness": fitnessCount, "Food & Beverages": 30},
			cityAvg: map[string]float64{"Fitness & Wellness": 10, "Food & Beverages": 30},
		}
		a := NewAnalyzer(st, highScoreProvider(), nil)
		res, err := a.Analyze(context.Background(), "Hauz Khas")
		require.NoError(t, err)
		for _, g := range res.Gaps {
			if g.Category == "Fitness & Wellness" {
				return g.GapScore
			}
		}
		t.Fatalf("no fitness gap")
		return 0
	}

	prev := 101.0
	for _, n := range []int{0, 2, 5, 10, 20} {
		score := mk(n)
		assert.LessOrEqual(t, score, prev, "supply %d", n)
		prev = score
	}
}

func TestAnalyzeComplementaryOpportunities(t *testing.T) {
	// Food & Beverages dominant; its complementary Entertainment & Leisure absent
	st := &stubStore{
		area: &spatial.Area{Name: "Hauz Khas"},
		dist: map[string]int{
			"Food & Beverages":  60,
			"Shopping & Retail": 40,
		},
		cityAvg: map[string]float64{"Food & Beverages": 50, "Shopping & Retail": 40},
	}
	a := NewAnalyzer(st, highScoreProvider(), nil)

	res, err := a.Analyze(context.Background(), "Hauz Khas")
	require.NoError(t, err)
	require.NotEmpty(t, res.Complementary)
	assert.LessOrEqual(t, len(res.Complementary), 5)

	seen := map[string]bool{}
	for _, it := range res.Complementary {
		assert.False(t, seen[it.Category], "duplicate %s", it.Category)
		seen[it.Category] = true
		assert.Equal(t, ItemComplementary, it.Type)
		assert.NotEmpty(t, it.Reason)
		assert.LessOrEqual(t, len(it.Examples), 3)
	}
	assert.True(t, seen["Entertainment & Leisure"])
}

func TestAnalyzeDominantOrderingAndRecommendationCap(t *testing.T) {
	st := &stubStore{
		area: &spatial.Area{Name: "Hauz Khas"},
		dist: map[string]int{
			"Food & Beverages":    50,
			"Shopping & Retail":   50,
			"Fitness & Wellness":  10,
			"Health & Medical":    5,
			"Education & Training": 2,
		},
		cityAvg: map[string]float64{
			"Food & Beverages": 40, "Shopping & Retail": 40, "Fitness & Wellness": 20,
			"Health & Medical": 15, "Education & Training": 10, "Entertainment & Leisure": 10,
		},
	}
	a := NewAnalyzer(st, highScoreProvider(), nil)

	res, err := a.Analyze(context.Background(), "Hauz Khas")
	require.NoError(t, err)

	require.Len(t, res.Dominant, 3)
	// tie between F&B and Shopping broken alphabetically
	assert.Equal(t, "Food & Beverages", res.Dominant[0].Category)
	assert.Equal(t, "Shopping & Retail", res.Dominant[1].Category)

	assert.LessOrEqual(t, len(res.Recommendations), 5)
	for i, rec := range res.Recommendations {
		assert.Equal(t, i+1, rec.Rank)
	}
}

func TestAnalyzePOIFallback(t *testing.T) {
	st := &stubStore{
		poiLoc:  &spatial.Location{Name: "Khan Market", Lat: 28.6003, Lon: 77.2270, POICount: 17, Source: "poi"},
		dist:    map[string]int{"Food & Beverages": 12},
		cityAvg: map[string]float64{"Food & Beverages": 10},
	}
	a := NewAnalyzer(st, nil, nil)

	res, err := a.Analyze(context.Background(), "khan market")
	require.NoError(t, err)
	assert.Equal(t, "Khan Market", res.Area)
	assert.Equal(t, "poi", res.Location.Source)
}

func TestAnalyzeUnknownArea(t *testing.T) {
	a := NewAnalyzer(&stubStore{}, nil, nil)
	_, err := a.Analyze(context.Background(), "atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, spatial.ErrUnknownArea)
}

func TestAnalyzeCaches(t *testing.T) {
	st := &stubStore{
		area:    &spatial.Area{Name: "Hauz Khas"},
		dist:    map[string]int{"Food & Beverages": 10},
		cityAvg: map[string]float64{"Food & Beverages": 10},
	}
	a := NewAnalyzer(st, nil, rescache.NewTiers())

	first, err := a.Analyze(context.Background(), "Hauz Khas")
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), "Hauz Khas")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, st.avgCalls, "second call should hit the cache")
}

func TestTrendClassification(t *testing.T) {
	mk := func(dominantCount int, avg float64, scores *basescore.Provider) string {
		st := &stubStore{
			area:    &spatial.Area{Name: "Hauz Khas"},
			dist:    map[string]int{"Food & Beverages": dominantCount},
			cityAvg: map[string]float64{"Food & Beverages": avg},
		}
		a := NewAnalyzer(st, scores, nil)
		res, err := a.Analyze(context.Background(), "Hauz Khas")
		require.NoError(t, err)
		return res.Trend
	}

	assert.Equal(t, "saturated", mk(40, 20, nil))                // ratio 2.0
	assert.Equal(t, "emerging", mk(4, 20, highScoreProvider())) // low density, strong base
	assert.Equal(t, "growing", mk(4, 20, nil))                  // low density, neutral base
	assert.Equal(t, "growing", mk(20, 20, highScoreProvider())) // mid density
}
