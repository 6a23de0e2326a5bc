package geomath

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-geom/xy"
)

// Isochrone is a reachable-area polygon around a candidate centroid. Membership
// tests treat the polygon as planar, which is fine at neighborhood scale.
type Isochrone struct {
	polygon *geom.Polygon
}

// DecodeIsochrone parses a GeoJSON geometry (Polygon or single-member
// MultiPolygon) into an Isochrone.
func DecodeIsochrone(geometry []byte) (*Isochrone, error) {
	var g geom.T
	if err := geojson.Unmarshal(geometry, &g); err != nil {
		return nil, eris.Wrap(err, "geomath: decode isochrone geometry")
	}

	switch t := g.(type) {
	case *geom.Polygon:
		return &Isochrone{polygon: t}, nil
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, eris.New("geomath: empty multipolygon isochrone")
		}
		return &Isochrone{polygon: t.Polygon(0)}, nil
	default:
		return nil, eris.Errorf("geomath: unsupported isochrone geometry %T", g)
	}
}

// Contains reports whether p falls inside the isochrone polygon. Interior rings
// (holes) exclude points.
func (iso *Isochrone) Contains(p Point) bool {
	coord := geom.Coord{p.Lon, p.Lat}

	if !xy.IsPointInRing(iso.polygon.Layout(), coord, iso.polygon.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < iso.polygon.NumLinearRings(); i++ {
		if xy.IsPointInRing(iso.polygon.Layout(), coord, iso.polygon.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// WKT renders the isochrone polygon as well-known text for SQL predicates
// such as ST_GeomFromText.
func (iso *Isochrone) WKT() (string, error) {
	s, err := wkt.Marshal(iso.polygon)
	if err != nil {
		return "", eris.Wrap(err, "geomath: marshal isochrone wkt")
	}
	return s, nil
}

// Bounds returns the bounding box of the isochrone polygon, used to prefilter
// spatial-store queries before the exact containment test.
func (iso *Isochrone) Bounds() BBox {
	b := iso.polygon.Bounds()
	return BBox{
		MinLon: b.Min(0),
		MinLat: b.Min(1),
		MaxLon: b.Max(0),
		MaxLat: b.Max(1),
	}
}
