// Package geomath provides distance and containment primitives for
// lat/lon coordinates and candidate geometries.
package geomath

import "math"

const (
	// earthRadiusKM is the mean Earth radius used by the haversine formula.
	earthRadiusKM = 6371.0

	// kmPerDegreeLat is the approximate north-south span of one degree of latitude.
	kmPerDegreeLat = 111.0
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineKM returns the great-circle distance between two points in kilometers.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKM * 2 * math.Asin(math.Sqrt(h))
}

// PlanarKM returns an equirectangular approximation of the distance between two
// points. Adequate for neighborhood-scale comparisons where the full haversine
// cost is not warranted.
func PlanarKM(a, b Point) float64 {
	meanLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dLat := (b.Lat - a.Lat) * kmPerDegreeLat
	dLon := (b.Lon - a.Lon) * kmPerDegreeLat * math.Cos(meanLat)
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// InCircle reports whether p lies within radiusKM of center.
func InCircle(center Point, radiusKM float64, p Point) bool {
	return HaversineKM(center, p) <= radiusKM
}

// BBox is a geographic bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies within the box, inclusive of edges.
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// BoundingBox returns the box that circumscribes a circle of radiusKM around
// center. Longitude span widens with latitude; at the poles the box degenerates
// to the full longitude range.
func BoundingBox(center Point, radiusKM float64) BBox {
	latDelta := radiusKM / kmPerDegreeLat

	cosLat := math.Abs(math.Cos(center.Lat * math.Pi / 180))
	var lonDelta float64
	if cosLat < 1e-9 {
		lonDelta = 180
	} else {
		lonDelta = radiusKM / (kmPerDegreeLat * cosLat)
	}

	return BBox{
		MinLat: center.Lat - latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLat: center.Lat + latDelta,
		MaxLon: center.Lon + lonDelta,
	}
}
