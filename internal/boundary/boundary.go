// Package boundary loads area polygons, criteria workbooks and point data
// from the file formats the engine ingests: shapefiles, GeoJSON, XLSX and
// CSV. Geometries come out as EWKB hex ready for bulk loading.
package boundary

import (
	"encoding/hex"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// AreaPolygon is one named area boundary as EWKB hex, SRID 4326.
type AreaPolygon struct {
	Name    string
	EWKBHex string
}

// ImportColumns gives the parallel name and geometry slices the store's
// bulk loader takes.
func ImportColumns(polys []AreaPolygon) (names []string, geoms []string) {
	names = make([]string, len(polys))
	geoms = make([]string, len(polys))
	for i, p := range polys {
		names[i] = p.Name
		geoms[i] = p.EWKBHex
	}
	return names, geoms
}

// Centroid returns the center of the polygon's bounding box, good enough for
// stores that keep only an area point.
func (p AreaPolygon) Centroid() (lat, lon float64, err error) {
	raw, err := hex.DecodeString(p.EWKBHex)
	if err != nil {
		return 0, 0, eris.Wrap(err, "boundary: decode geometry hex")
	}
	g, err := ewkb.Unmarshal(raw)
	if err != nil {
		return 0, 0, eris.Wrap(err, "boundary: unmarshal geometry")
	}
	b := g.Bounds()
	return (b.Min(1) + b.Max(1)) / 2, (b.Min(0) + b.Max(0)) / 2, nil
}

func encodeHex(wkb []byte) (string, error) {
	if len(wkb) == 0 {
		return "", eris.New("boundary: empty geometry")
	}
	return hex.EncodeToString(wkb), nil
}
