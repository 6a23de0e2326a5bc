// Package spatial persists areas and points of interest and answers the
// containment, distance and distribution queries the scoring pipeline needs.
// Two backends exist: Postgres with PostGIS for production, SQLite for local
// development where the geometry predicates run in Go instead.
package spatial

import "github.com/rotisserie/eris"

// ErrUnknownArea is returned when an area name matches nothing, neither as a
// defined area nor as a POI cluster.
var ErrUnknownArea = eris.New("spatial: unknown area")

// Area is a named candidate area with its centroid.
type Area struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Location is a resolved place: either a defined area (Source "area") or the
// centroid of POIs matching a free-text name (Source "poi").
type Location struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	POICount int     `json:"poi_count,omitempty"`
	Source   string  `json:"source"`
}

// POI is one point of interest.
type POI struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	SuperCategory string  `json:"super_category"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
}
