package boundary

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/fetcher"
)

// nameProperties are tried in order when looking up a feature's area name.
var nameProperties = []string{"name", "Name", "NAME", "area", "Area"}

// LoadGeoJSON reads area polygons from a GeoJSON FeatureCollection.
// Features without a name property or polygon geometry are skipped.
func LoadGeoJSON(r io.Reader) ([]AreaPolygon, error) {
	fc, err := fetcher.DecodeJSONObject[geojson.FeatureCollection](r)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: parse geojson")
	}

	var polys []AreaPolygon
	var skipped int

	for _, feat := range fc.Features {
		name := featureName(feat)
		if name == "" {
			skipped++
			continue
		}

		mp := toMultiPolygon(feat.Geometry)
		if mp == nil {
			skipped++
			continue
		}

		wkb, encErr := ewkb.Marshal(mp, ewkb.NDR)
		if encErr != nil {
			skipped++
			continue
		}
		h, hexErr := encodeHex(wkb)
		if hexErr != nil {
			skipped++
			continue
		}

		polys = append(polys, AreaPolygon{Name: name, EWKBHex: h})
	}

	if skipped > 0 {
		zap.L().Debug("skipped geojson features", zap.Int("skipped", skipped))
	}

	return polys, nil
}

func featureName(feat *geojson.Feature) string {
	if feat == nil {
		return ""
	}
	for _, key := range nameProperties {
		if v, ok := feat.Properties[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// toMultiPolygon normalizes polygon geometries to a MultiPolygon, SRID 4326.
func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil
		}
		t.SetSRID(4326)
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}
