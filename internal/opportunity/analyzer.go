// Package opportunity answers "what should open here": it compares an area's
// category mix against the city average to find under-served categories and
// complementary plays near the area's dominant businesses.
package opportunity

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/basescore"
	"github.com/siteatlas/siteatlas/internal/rescache"
	"github.com/siteatlas/siteatlas/internal/spatial"
	"github.com/siteatlas/siteatlas/internal/taxonomy"
)

const (
	// share of total POIs above which a category counts as dominant
	dominantShareThreshold = 0.05
	// complementary presence below this fraction of the dominant count is an opportunity
	complementaryDeficit = 0.5
	// recommendation and gap list caps
	maxRecommendations = 5
	maxGapItems        = 5
	maxItemExamples    = 3

	// trend thresholds on the dominant category's ratio to city average
	trendSaturatedRatio = 1.5
	trendEmergingRatio  = 0.5
	trendEmergingBase   = 70.0

	poiRadiusKM = 1.0
)

// ItemType distinguishes the two recommendation kinds.
type ItemType string

const (
	ItemGap           ItemType = "gap"
	ItemComplementary ItemType = "complementary"
)

// Item is one recommended category for an area.
type Item struct {
	Rank     int      `json:"rank,omitempty"`
	Category string   `json:"category"`
	Type     ItemType `json:"type"`
	Score    float64  `json:"score"`
	Reason   string   `json:"reason"`
	Examples []string `json:"examples,omitempty"`
}

// Gap describes one category's standing against the city average.
type Gap struct {
	Category    string  `json:"category"`
	AreaCount   int     `json:"area_count"`
	CityAverage float64 `json:"city_average"`
	GapScore    float64 `json:"gap_score"`
	Status      string  `json:"status"` // underserved, moderate, saturated
}

// CategoryCount is a category with its POI count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Analysis is the full result for one area.
type Analysis struct {
	Area            string           `json:"area"`
	Location        spatial.Location `json:"location"`
	TotalPOIs       int              `json:"total_pois"`
	Dominant        []CategoryCount  `json:"dominant_categories"`
	Recommendations []Item           `json:"recommendations"`
	Gaps            []Gap            `json:"gap_analysis"`
	Complementary   []Item           `json:"complementary_opportunities"`
	Trend           string           `json:"trend_indicator"`
	Summary         string           `json:"summary"`
	Research        string           `json:"research,omitempty"`
}

// Analyzer runs area opportunity analysis.
type Analyzer struct {
	store  spatial.Store
	scores *basescore.Provider
	caches *rescache.Tiers
}

// NewAnalyzer builds an Analyzer. caches may be nil.
func NewAnalyzer(store spatial.Store, scores *basescore.Provider, caches *rescache.Tiers) *Analyzer {
	return &Analyzer{store: store, scores: scores, caches: caches}
}

// Analyze resolves a place name (defined area first, then POI cluster) and
// produces gap and complementary recommendations for it. Unknown names fail
// with spatial.ErrUnknownArea.
func (a *Analyzer) Analyze(ctx context.Context, areaName string) (*Analysis, error) {
	key := rescache.MakeKey("analyze", map[string]string{"area": areaName})
	if a.caches != nil {
		if v, ok := a.caches.General.Get(key); ok {
			if res, ok := v.(*Analysis); ok {
				return res, nil
			}
		}
	}

	loc, dist, err := a.resolve(ctx, areaName)
	if err != nil {
		return nil, err
	}

	cityAvg, err := a.store.AverageDistribution(ctx)
	if err != nil {
		return nil, err
	}

	res := a.build(loc, dist, cityAvg)
	if a.caches != nil {
		a.caches.General.Set(key, res)
	}

	zap.L().Info("area analyzed",
		zap.String("area", res.Area),
		zap.String("source", loc.Source),
		zap.Int("total_pois", res.TotalPOIs),
		zap.String("trend", res.Trend))
	return res, nil
}

func (a *Analyzer) resolve(ctx context.Context, areaName string) (*spatial.Location, map[string]int, error) {
	area, err := a.store.FindArea(ctx, areaName)
	if err == nil {
		dist, err := a.store.CategoryDistribution(ctx, area.Name)
		if err != nil {
			return nil, nil, err
		}
		return &spatial.Location{Name: area.Name, Lat: area.Lat, Lon: area.Lon, Source: "area"}, dist, nil
	}

	loc, perr := a.store.LocateFromPOIs(ctx, areaName)
	if perr != nil {
		return nil, nil, err // the original unknown-area error
	}
	dist, err := a.store.CategoryDistributionRadius(ctx, loc.Lat, loc.Lon, poiRadiusKM)
	if err != nil {
		return nil, nil, err
	}
	return loc, dist, nil
}

func (a *Analyzer) build(loc *spatial.Location, dist map[string]int, cityAvg map[string]float64) *Analysis {
	total := 0
	for _, n := range dist {
		total += n
	}

	dominant := dominantCategories(dist)
	gaps := a.analyzeGaps(loc.Name, dist, cityAvg)
	comp := analyzeComplementary(dist, total)
	recs := buildRecommendations(gaps, comp)
	trend := a.trend(loc.Name, dominant, cityAvg)

	res := &Analysis{
		Area:            loc.Name,
		Location:        *loc,
		TotalPOIs:       total,
		Dominant:        dominant,
		Recommendations: recs,
		Gaps:            capGaps(gaps),
		Complementary:   comp,
		Trend:           trend,
	}
	res.Summary = summarize(res)
	return res
}

// analyzeGaps scores each super-category by how far below the city average the
// area sits, scaled by the area's base score for that category: strong areas
// with missing supply gap hardest.
func (a *Analyzer) analyzeGaps(area string, dist map[string]int, cityAvg map[string]float64) []Gap {
	var gaps []Gap
	for category, avg := range cityAvg {
		if avg <= 0 {
			continue
		}
		count := dist[category]
		ratio := float64(count) / avg

		base := 50.0
		if a.scores != nil {
			base = a.scores.Score(area, category)
		}
		score := 100 * clamp01(base/100-complementaryDeficit*ratio)

		status := "saturated"
		switch {
		case ratio < 0.5:
			status = "underserved"
		case ratio < 1.0:
			status = "moderate"
		}

		gaps = append(gaps, Gap{
			Category:    category,
			AreaCount:   count,
			CityAverage: round1(avg),
			GapScore:    round1(score),
			Status:      status,
		})
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].GapScore != gaps[j].GapScore {
			return gaps[i].GapScore > gaps[j].GapScore
		}
		return gaps[i].Category < gaps[j].Category
	})
	return gaps
}

// analyzeComplementary finds categories that would feed off the area's
// dominant businesses but are under-represented next to them.
func analyzeComplementary(dist map[string]int, total int) []Item {
	if total == 0 {
		return nil
	}

	var items []Item
	for category, count := range dist {
		share := float64(count) / float64(total)
		if share <= dominantShareThreshold {
			continue
		}
		comps, err := taxonomy.Complementary(category)
		if err != nil {
			continue
		}
		for _, compCat := range comps {
			compCount := dist[compCat]
			if float64(compCount) >= complementaryDeficit*float64(count) {
				continue
			}
			score := 100 - float64(compCount)/float64(count)*100
			items = append(items, Item{
				Category: compCat,
				Type:     ItemComplementary,
				Score:    round1(score),
				Reason:   fmt.Sprintf("Complements existing %s businesses (%d POIs)", category, count),
				Examples: examplesFor(compCat),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Category < items[j].Category
	})

	seen := map[string]bool{}
	var out []Item
	for _, it := range items {
		if seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		out = append(out, it)
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}

// buildRecommendations interleaves top gaps (underserved or moderate only)
// with complementary opportunities, deduplicated, capped at five.
func buildRecommendations(gaps []Gap, comp []Item) []Item {
	var recs []Item
	seen := map[string]bool{}

	for _, g := range gaps {
		if len(recs) == 3 {
			break
		}
		if g.Status != "underserved" && g.Status != "moderate" {
			continue
		}
		if seen[g.Category] {
			continue
		}
		seen[g.Category] = true
		recs = append(recs, Item{
			Rank:     len(recs) + 1,
			Category: g.Category,
			Type:     ItemGap,
			Score:    g.GapScore,
			Reason:   fmt.Sprintf("Gap opportunity: %d existing vs %.1f city average", g.AreaCount, g.CityAverage),
			Examples: examplesFor(g.Category),
		})
	}

	for _, it := range comp {
		if len(recs) == maxRecommendations {
			break
		}
		if seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		it.Rank = len(recs) + 1
		recs = append(recs, it)
	}
	return recs
}

// trend classifies the area by its dominant category's density relative to
// the city average.
func (a *Analyzer) trend(area string, dominant []CategoryCount, cityAvg map[string]float64) string {
	if len(dominant) == 0 {
		return "emerging"
	}
	top := dominant[0]
	avg := cityAvg[top.Category]
	if avg <= 0 {
		return "growing"
	}
	ratio := float64(top.Count) / avg

	base := 50.0
	if a.scores != nil {
		base = a.scores.Score(area, top.Category)
	}

	switch {
	case ratio > trendSaturatedRatio:
		return "saturated"
	case ratio < trendEmergingRatio && base >= trendEmergingBase:
		return "emerging"
	default:
		return "growing"
	}
}

func dominantCategories(dist map[string]int) []CategoryCount {
	out := make([]CategoryCount, 0, len(dist))
	for cat, n := range dist {
		out = append(out, CategoryCount{Category: cat, Count: n})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func capGaps(gaps []Gap) []Gap {
	if len(gaps) > maxGapItems {
		return gaps[:maxGapItems]
	}
	return gaps
}

func examplesFor(category string) []string {
	ex, err := taxonomy.Examples(category)
	if err != nil {
		return nil
	}
	if len(ex) > maxItemExamples {
		ex = ex[:maxItemExamples]
	}
	return ex
}

func summarize(a *Analysis) string {
	msg := fmt.Sprintf("Business opportunities in %s: %d existing businesses, trend %s.", a.Area, a.TotalPOIs, a.Trend)
	if len(a.Recommendations) > 0 {
		msg += " Top recommendation: " + a.Recommendations[0].Category + "."
	}
	return msg
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
