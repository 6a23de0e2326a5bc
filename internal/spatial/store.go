package spatial

import (
	"context"

	"github.com/siteatlas/siteatlas/internal/geomath"
)

// Store is the read interface over the spatial dataset.
type Store interface {
	// Areas
	ListAreas(ctx context.Context) ([]Area, error)
	FindArea(ctx context.Context, name string) (*Area, error)
	AreaCentroids(ctx context.Context, names []string) ([]Area, error)
	LocateFromPOIs(ctx context.Context, name string) (*Location, error)

	// Containment and proximity counts
	CountInPolygon(ctx context.Context, categories []string, iso *geomath.Isochrone) (int, error)
	CountInRadius(ctx context.Context, categories []string, lat, lon, radiusKM float64) (int, error)

	// Distributions
	CategoryDistribution(ctx context.Context, areaName string) (map[string]int, error)
	CategoryDistributionRadius(ctx context.Context, lat, lon, radiusKM float64) (map[string]int, error)
	AverageDistribution(ctx context.Context) (map[string]float64, error)

	// Viewport
	POIsInBBox(ctx context.Context, bbox geomath.BBox, limit int) ([]POI, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
