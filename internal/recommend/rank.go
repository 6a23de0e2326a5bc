package recommend

import (
	"math"
	"sort"
)

// Composite weights. Fixed constants, not runtime-configurable.
const (
	weightArea        = 0.40
	weightOpportunity = 0.35
	weightEcosystem   = 0.25

	defaultTopN = 3
)

// Rank scores a batch of aggregates and returns the top n (default 3)
// sorted by composite score descending, names ascending on ties. The input
// slice is not mutated and an empty batch yields an empty result.
func Rank(aggs []AreaAggregate, n int) []ScoredRecommendation {
	if len(aggs) == 0 {
		return []ScoredRecommendation{}
	}
	if n <= 0 {
		n = defaultTopN
	}

	competitors := make([]int, len(aggs))
	complementary := make([]int, len(aggs))
	for i, a := range aggs {
		competitors[i] = a.Competitors
		complementary[i] = a.Complementary
	}
	refDensity := percentile90(competitors)
	refComplement := percentile90(complementary)
	soloBatch := len(aggs) == 1

	out := make([]ScoredRecommendation, 0, len(aggs))
	for _, a := range aggs {
		opp := opportunityScore(a.Competitors, refDensity)
		eco := ecosystemScore(a.Complementary, refComplement)
		if soloBatch {
			// a single candidate is its own reference on both axes
			opp, eco = 100, 100
		}
		area := clamp(a.BaseScore, 0, 100)
		composite := weightArea*area + weightOpportunity*opp + weightEcosystem*eco

		out = append(out, ScoredRecommendation{
			Area:             a.Area,
			Lat:              a.Lat,
			Lon:              a.Lon,
			AreaScore:        round2(area),
			OpportunityScore: round2(opp),
			EcosystemScore:   round2(eco),
			CompositeScore:   round2(clamp(composite, 0, 100)),
			Competitors:      a.Competitors,
			Complementary:    a.Complementary,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CompositeScore != out[j].CompositeScore {
			return out[i].CompositeScore > out[j].CompositeScore
		}
		return out[i].Area < out[j].Area
	})

	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i
	}
	return out
}

// opportunityScore rewards low competitor density relative to the batch. A
// zero reference means every candidate has zero competitors, which is the
// best case for all of them.
func opportunityScore(competitors int, reference float64) float64 {
	if reference <= 0 {
		return 100
	}
	return 100 * clamp(1-float64(competitors)/reference, 0, 1)
}

// ecosystemScore rewards complementary presence relative to the batch. With
// no comparative basis (reference zero, e.g. a batch of one with no
// complementary POIs) the single value is its own reference and scores full.
func ecosystemScore(complementary int, reference float64) float64 {
	if reference <= 0 {
		return 100
	}
	return 100 * clamp(float64(complementary)/reference, 0, 1)
}

// percentile90 is the nearest-rank 90th percentile.
func percentile90(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	idx := int(math.Ceil(0.9*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return float64(sorted[idx])
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
