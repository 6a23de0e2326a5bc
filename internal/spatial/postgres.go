package spatial

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/siteatlas/siteatlas/internal/db"
	"github.com/siteatlas/siteatlas/internal/geomath"
)

// PostgresStore implements Store on Postgres with PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with a mock pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for bulk loaders.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS areas (
	name TEXT PRIMARY KEY,
	geom GEOMETRY(MULTIPOLYGON, 4326) NOT NULL
);

CREATE TABLE IF NOT EXISTS points (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	super_category TEXT NOT NULL,
	geom           GEOMETRY(POINT, 4326) NOT NULL
);

CREATE TABLE IF NOT EXISTS points_staging (
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	super_category TEXT NOT NULL,
	lon            DOUBLE PRECISION NOT NULL,
	lat            DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_areas_geom ON areas USING gist (geom);
CREATE INDEX IF NOT EXISTS idx_points_geom ON points USING gist (geom);
CREATE INDEX IF NOT EXISTS idx_points_super_category ON points (super_category);
CREATE INDEX IF NOT EXISTS idx_points_name_lower ON points (LOWER(name));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListAreas(ctx context.Context) ([]Area, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, ST_Y(ST_Centroid(geom)), ST_X(ST_Centroid(geom)) FROM areas ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list areas")
	}
	defer rows.Close()

	var out []Area
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.Name, &a.Lat, &a.Lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan area")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list areas rows")
}

// FindArea resolves a name to a defined area, exact match first, then a
// shortest-name substring match.
func (s *PostgresStore) FindArea(ctx context.Context, name string) (*Area, error) {
	a, err := s.scanArea(ctx,
		`SELECT name, ST_Y(ST_Centroid(geom)), ST_X(ST_Centroid(geom)) FROM areas WHERE LOWER(name) = LOWER($1) LIMIT 1`,
		name)
	if err == nil {
		return a, nil
	}
	if !eris.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	a, err = s.scanArea(ctx,
		`SELECT name, ST_Y(ST_Centroid(geom)), ST_X(ST_Centroid(geom)) FROM areas WHERE LOWER(name) LIKE LOWER($1) ORDER BY LENGTH(name) LIMIT 1`,
		"%"+name+"%")
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrUnknownArea, "%q", name)
	}
	return a, err
}

func (s *PostgresStore) scanArea(ctx context.Context, sql string, args ...any) (*Area, error) {
	var a Area
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&a.Name, &a.Lat, &a.Lon)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find area")
	}
	return &a, nil
}

func (s *PostgresStore) AreaCentroids(ctx context.Context, names []string) ([]Area, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT name, ST_Y(ST_Centroid(geom)), ST_X(ST_Centroid(geom)) FROM areas WHERE name = ANY($1)`,
		names)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: area centroids")
	}
	defer rows.Close()

	var out []Area
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.Name, &a.Lat, &a.Lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan centroid")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: area centroids rows")
}

// LocateFromPOIs finds a place by POI name match and returns the centroid of
// the matching points. Used when a name is not a defined area, e.g. a market.
func (s *PostgresStore) LocateFromPOIs(ctx context.Context, name string) (*Location, error) {
	var lon, lat sql.NullFloat64
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT AVG(ST_X(geom)), AVG(ST_Y(geom)), COUNT(*) FROM points WHERE LOWER(name) LIKE LOWER($1)`,
		"%"+name+"%").Scan(&lon, &lat, &count)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: locate from pois")
	}
	if count == 0 || !lon.Valid || !lat.Valid {
		return nil, eris.Wrapf(ErrUnknownArea, "%q", name)
	}
	return &Location{
		Name:     cases.Title(language.English).String(name),
		Lat:      lat.Float64,
		Lon:      lon.Float64,
		POICount: count,
		Source:   "poi",
	}, nil
}

func (s *PostgresStore) CountInPolygon(ctx context.Context, categories []string, iso *geomath.Isochrone) (int, error) {
	if len(categories) == 0 || iso == nil {
		return 0, nil
	}
	polyWKT, err := iso.WKT()
	if err != nil {
		return 0, err
	}
	var count int
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM points WHERE super_category = ANY($1) AND ST_Contains(ST_GeomFromText($2, 4326), geom)`,
		categories, polyWKT).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count in polygon")
	}
	return count, nil
}

func (s *PostgresStore) CountInRadius(ctx context.Context, categories []string, lat, lon, radiusKM float64) (int, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM points
		 WHERE super_category = ANY($1)
		 AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4)`,
		categories, lon, lat, radiusKM*1000).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count in radius")
	}
	return count, nil
}

// CategoryDistribution counts POIs per super-category inside an area polygon,
// falling back to a 1.5 km radius around the centroid when the spatial join
// yields nothing.
func (s *PostgresStore) CategoryDistribution(ctx context.Context, areaName string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.super_category, COUNT(*)
		 FROM points p
		 JOIN areas a ON ST_Contains(a.geom, p.geom)
		 WHERE LOWER(a.name) = LOWER($1)
		 GROUP BY p.super_category
		 ORDER BY COUNT(*) DESC`,
		areaName)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: category distribution")
	}
	dist, err := scanDistribution(rows)
	if err != nil {
		return nil, err
	}
	if len(dist) > 0 {
		return dist, nil
	}

	area, err := s.FindArea(ctx, areaName)
	if err != nil {
		return nil, err
	}
	return s.CategoryDistributionRadius(ctx, area.Lat, area.Lon, 1.5)
}

func (s *PostgresStore) CategoryDistributionRadius(ctx context.Context, lat, lon, radiusKM float64) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT super_category, COUNT(*)
		 FROM points
		 WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		 GROUP BY super_category
		 ORDER BY COUNT(*) DESC`,
		lon, lat, radiusKM*1000)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: category distribution by radius")
	}
	return scanDistribution(rows)
}

// AverageDistribution returns the mean POI count per super-category across
// all defined areas.
func (s *PostgresStore) AverageDistribution(ctx context.Context) (map[string]float64, error) {
	var areaCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM areas`).Scan(&areaCount); err != nil {
		return nil, eris.Wrap(err, "postgres: count areas")
	}
	if areaCount == 0 {
		areaCount = 1
	}

	rows, err := s.pool.Query(ctx,
		`SELECT super_category, COUNT(*) FROM points GROUP BY super_category`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: total distribution")
	}
	totals, err := scanDistribution(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(totals))
	for cat, n := range totals {
		out[cat] = float64(n) / float64(areaCount)
	}
	return out, nil
}

func (s *PostgresStore) POIsInBBox(ctx context.Context, bbox geomath.BBox, limit int) ([]POI, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, super_category, ST_Y(geom), ST_X(geom)
		 FROM points
		 WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		 ORDER BY id
		 LIMIT $5`,
		bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pois in bbox")
	}
	defer rows.Close()

	var out []POI
	for rows.Next() {
		var p POI
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.SuperCategory, &p.Lat, &p.Lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan poi")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: pois in bbox rows")
}

// ImportAreas bulk-loads area polygons given as EWKB hex strings.
func (s *PostgresStore) ImportAreas(ctx context.Context, names []string, ewkbHex []string) (int64, error) {
	if len(names) != len(ewkbHex) {
		return 0, eris.New("postgres: import areas: name/geometry length mismatch")
	}
	var n int64
	for i := range names {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO areas (name, geom) VALUES ($1, ST_Multi(ST_GeomFromEWKB(decode($2, 'hex'))))
			 ON CONFLICT (name) DO UPDATE SET geom = EXCLUDED.geom`,
			names[i], ewkbHex[i])
		if err != nil {
			return n, eris.Wrapf(err, "postgres: import area %s", names[i])
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

// ImportPOIs bulk-loads points: COPY into a staging table, then materialize
// geometries into points in one INSERT.
func (s *PostgresStore) ImportPOIs(ctx context.Context, pois []POI) (int64, error) {
	rows := make([][]any, 0, len(pois))
	for _, p := range pois {
		rows = append(rows, []any{p.Name, p.Category, p.SuperCategory, p.Lon, p.Lat})
	}
	n, err := db.CopyFrom(ctx, s.pool, "points_staging",
		[]string{"name", "category", "super_category", "lon", "lat"}, rows)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO points (name, category, super_category, geom)
		 SELECT name, category, super_category, ST_SetSRID(ST_MakePoint(lon, lat), 4326)
		 FROM points_staging`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: materialize staged points")
	}
	if _, err := s.pool.Exec(ctx, `TRUNCATE points_staging`); err != nil {
		return 0, eris.Wrap(err, "postgres: truncate staging")
	}
	return n, nil
}

func scanDistribution(rows pgx.Rows) (map[string]int, error) {
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan distribution")
		}
		out[strings.TrimSpace(cat)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: distribution rows")
}
