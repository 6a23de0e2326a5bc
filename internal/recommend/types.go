// Package recommend aggregates candidate areas for a business category and
// ranks them with a composite of base area quality, competitive opportunity
// and complementary-business ecosystem.
package recommend

import "github.com/siteatlas/siteatlas/internal/geomath"

// ScopeKind selects how candidates are enumerated.
type ScopeKind string

const (
	// ScopeAreas ranks the named candidate areas.
	ScopeAreas ScopeKind = "areas"
	// ScopePoint scores a single ad-hoc location.
	ScopePoint ScopeKind = "point"
)

// Scope describes the candidate universe for one request.
type Scope struct {
	Kind     ScopeKind
	Name     string        // point scope: display name
	Center   geomath.Point // point scope: location
	RadiusKM float64       // point scope: catchment radius
}

// AreaAggregate is the raw per-candidate input to ranking: identity, base
// score and the two POI counts.
type AreaAggregate struct {
	Area          string  `json:"area"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	BaseScore     float64 `json:"base_score"`
	Competitors   int     `json:"competitors"`
	Complementary int     `json:"complementary"`
	Source        string  `json:"source"` // "area" or "poi"
}

// ScoredRecommendation is one ranked result.
type ScoredRecommendation struct {
	Rank             int      `json:"rank"`
	Area             string   `json:"area"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	AreaScore        float64  `json:"area_score"`
	OpportunityScore float64  `json:"opportunity_score"`
	EcosystemScore   float64  `json:"ecosystem_score"`
	CompositeScore   float64  `json:"composite_score"`
	Competitors      int      `json:"competitors"`
	Complementary    int      `json:"complementary"`
	Examples         []string `json:"examples,omitempty"`
	Research         string   `json:"research,omitempty"`
}

// Result is the full response for one recommendation request.
type Result struct {
	Category        string                 `json:"category"`
	SuperCategory   string                 `json:"super_category"`
	DistanceKM      float64                `json:"distance_km"`
	Recommendations []ScoredRecommendation `json:"recommendations"`
}
