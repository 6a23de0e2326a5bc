package recommend

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/rescache"
)

const maxExamples = 4

// Engine serves recommendation requests, fronted by the general result cache.
type Engine struct {
	agg    *Aggregator
	caches *rescache.Tiers
}

// Request is one recommendation query.
type Request struct {
	Category   string  `json:"category"`
	DistanceKM float64 `json:"distance_km"`
	Limit      int     `json:"limit"`
}

// NewEngine builds an Engine. caches may be nil, in which case every request
// recomputes.
func NewEngine(agg *Aggregator, caches *rescache.Tiers) *Engine {
	return &Engine{agg: agg, caches: caches}
}

// Recommend ranks the best areas for a category. Results are cached in the
// general tier; the cache is advisory and a miss recomputes from the store.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Result, error) {
	if req.DistanceKM <= 0 {
		req.DistanceKM = 1.0
	}
	if req.Limit <= 0 {
		req.Limit = defaultTopN
	}

	key := rescache.MakeKey("recommend", map[string]string{
		"category": req.Category,
		"distance": strconv.FormatFloat(req.DistanceKM, 'f', 2, 64),
		"limit":    strconv.Itoa(req.Limit),
	})
	if e.caches != nil {
		if v, ok := e.caches.General.Get(key); ok {
			if res, ok := v.(*Result); ok {
				return res, nil
			}
		}
	}

	aggs, sc, err := e.agg.Aggregate(ctx, req.Category, Scope{Kind: ScopeAreas}, req.DistanceKM)
	if err != nil {
		return nil, err
	}

	recs := Rank(aggs, req.Limit)
	for i := range recs {
		recs[i].Examples = exampleNames(sc.Examples)
	}

	res := &Result{
		Category:        req.Category,
		SuperCategory:   sc.Name,
		DistanceKM:      req.DistanceKM,
		Recommendations: recs,
	}
	if e.caches != nil {
		e.caches.General.Set(key, res)
	}

	zap.L().Info("recommendation computed",
		zap.String("super_category", sc.Name),
		zap.Int("candidates", len(aggs)),
		zap.Int("results", len(recs)))
	return res, nil
}

// RecommendAt scores a single ad-hoc point for a category.
func (e *Engine) RecommendAt(ctx context.Context, req Request, scope Scope) (*Result, error) {
	if req.DistanceKM <= 0 {
		req.DistanceKM = 1.0
	}
	aggs, sc, err := e.agg.Aggregate(ctx, req.Category, scope, req.DistanceKM)
	if err != nil {
		return nil, err
	}
	recs := Rank(aggs, req.Limit)
	for i := range recs {
		recs[i].Examples = exampleNames(sc.Examples)
	}
	return &Result{
		Category:        req.Category,
		SuperCategory:   sc.Name,
		DistanceKM:      req.DistanceKM,
		Recommendations: recs,
	}, nil
}

func exampleNames(examples []string) []string {
	if len(examples) > maxExamples {
		examples = examples[:maxExamples]
	}
	out := make([]string, len(examples))
	copy(out, examples)
	return out
}
