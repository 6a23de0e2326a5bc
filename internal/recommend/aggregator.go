package recommend

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siteatlas/siteatlas/internal/basescore"
	"github.com/siteatlas/siteatlas/internal/geomath"
	"github.com/siteatlas/siteatlas/internal/spatial"
	"github.com/siteatlas/siteatlas/internal/taxonomy"
)

const (
	// areas considered per request before ranking
	defaultCandidateCount = 10
	// concurrent per-candidate aggregations
	defaultConcurrency = 4
	// neutral base score for ad-hoc points with no area criteria row
	neutralBaseScore = 50.0
)

// IsochroneSource produces a reachable-area polygon around a point. Optional:
// without one the aggregator falls back to a plain radius.
type IsochroneSource interface {
	Isochrone(ctx context.Context, lat, lon, distanceKM float64) (*geomath.Isochrone, error)
}

// Aggregator gathers AreaAggregates from the spatial store.
type Aggregator struct {
	store          spatial.Store
	scores         *basescore.Provider
	iso            IsochroneSource
	candidateCount int
	concurrency    int
}

// AggregatorOption tunes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithIsochrones enables isochrone catchments instead of plain radii.
func WithIsochrones(src IsochroneSource) AggregatorOption {
	return func(a *Aggregator) { a.iso = src }
}

// WithCandidateCount sets how many top areas are aggregated per request.
func WithCandidateCount(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.candidateCount = n
		}
	}
}

// WithConcurrency bounds the per-candidate fan-out.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAggregator builds an Aggregator over a spatial store and base scores.
func NewAggregator(store spatial.Store, scores *basescore.Provider, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:          store,
		scores:         scores,
		candidateCount: defaultCandidateCount,
		concurrency:    defaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate resolves the category and gathers one AreaAggregate per
// candidate. Candidates whose spatial queries fail are dropped with a logged
// warning; an empty slice with a nil error means no candidate survived.
func (a *Aggregator) Aggregate(ctx context.Context, category string, scope Scope, distanceKM float64) ([]AreaAggregate, taxonomy.SuperCategory, error) {
	sc, err := taxonomy.Resolve(category)
	if err != nil {
		return nil, taxonomy.SuperCategory{}, err
	}
	if distanceKM <= 0 {
		distanceKM = 1.0
	}

	if scope.Kind == ScopePoint {
		agg, err := a.aggregateOne(ctx, sc, scope.Name, scope.Center, distanceKM, neutralBaseScore, "poi")
		if err != nil {
			zap.L().Warn("point aggregation failed",
				zap.String("name", scope.Name),
				zap.Error(err))
			return []AreaAggregate{}, sc, nil
		}
		return []AreaAggregate{*agg}, sc, nil
	}

	top := a.scores.TopAreas(sc.Name, a.candidateCount)
	if len(top) == 0 {
		return []AreaAggregate{}, sc, nil
	}
	names := make([]string, len(top))
	baseByArea := make(map[string]float64, len(top))
	for i, t := range top {
		names[i] = t.Area
		baseByArea[t.Area] = t.Score
	}

	centroids, err := a.store.AreaCentroids(ctx, names)
	if err != nil {
		return nil, sc, err
	}
	centroidByArea := make(map[string]spatial.Area, len(centroids))
	for _, c := range centroids {
		centroidByArea[c.Name] = c
	}

	results := make([]*AreaAggregate, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, name := range names {
		centroid, ok := centroidByArea[name]
		if !ok {
			zap.L().Warn("candidate area has no centroid", zap.String("area", name))
			continue
		}
		g.Go(func() error {
			agg, err := a.aggregateOne(gctx, sc, name,
				geomath.Point{Lat: centroid.Lat, Lon: centroid.Lon},
				distanceKM, baseByArea[name], "area")
			if err != nil {
				zap.L().Warn("candidate aggregation failed",
					zap.String("area", name),
					zap.Error(err))
				return nil // drop the candidate, keep the batch
			}
			results[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, sc, err
	}

	out := make([]AreaAggregate, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, sc, nil
}

// aggregateOne issues the competitor and complementary counts for a single
// candidate, preferring an isochrone catchment and falling back to a radius.
func (a *Aggregator) aggregateOne(ctx context.Context, sc taxonomy.SuperCategory, name string, center geomath.Point, distanceKM, baseScore float64, source string) (*AreaAggregate, error) {
	var iso *geomath.Isochrone
	if a.iso != nil {
		var err error
		iso, err = a.iso.Isochrone(ctx, center.Lat, center.Lon, distanceKM)
		if err != nil {
			zap.L().Debug("isochrone unavailable, using radius",
				zap.String("candidate", name),
				zap.Error(err))
			iso = nil
		}
	}

	count := func(categories []string) (int, error) {
		if iso != nil {
			return a.store.CountInPolygon(ctx, categories, iso)
		}
		return a.store.CountInRadius(ctx, categories, center.Lat, center.Lon, distanceKM)
	}

	var competitors, complementary int
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := count([]string{sc.Name})
		competitors = n
		return err
	})
	g.Go(func() error {
		n, err := count(sc.Complementary)
		complementary = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &AreaAggregate{
		Area:          name,
		Lat:           center.Lat,
		Lon:           center.Lon,
		BaseScore:     baseScore,
		Competitors:   competitors,
		Complementary: complementary,
		Source:        source,
	}, nil
}
