package spatial

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/siteatlas/siteatlas/internal/geomath"
)

// SQLiteStore implements Store using modernc.org/sqlite. SQLite has no spatial
// extension here, so areas are stored as centroids and the geometry predicates
// (polygon containment, radius) run in Go after a bounding-box prefilter.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS areas (
	name TEXT PRIMARY KEY,
	lat  REAL NOT NULL,
	lon  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS points (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	super_category TEXT NOT NULL,
	lat            REAL NOT NULL,
	lon            REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_points_super_category ON points(super_category);
CREATE INDEX IF NOT EXISTS idx_points_lat_lon ON points(lat, lon);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListAreas(ctx context.Context) ([]Area, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, lat, lon FROM areas ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list areas")
	}
	defer rows.Close()

	var out []Area
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.Name, &a.Lat, &a.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan area")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list areas rows")
}

func (s *SQLiteStore) FindArea(ctx context.Context, name string) (*Area, error) {
	var a Area
	err := s.db.QueryRowContext(ctx,
		`SELECT name, lat, lon FROM areas WHERE LOWER(name) = LOWER(?) LIMIT 1`, name).
		Scan(&a.Name, &a.Lat, &a.Lon)
	if err == nil {
		return &a, nil
	}
	if !eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(err, "sqlite: find area")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT name, lat, lon FROM areas WHERE LOWER(name) LIKE LOWER(?) ORDER BY LENGTH(name) LIMIT 1`,
		"%"+name+"%").Scan(&a.Name, &a.Lat, &a.Lon)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrUnknownArea, "%q", name)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find area fuzzy")
	}
	return &a, nil
}

func (s *SQLiteStore) AreaCentroids(ctx context.Context, names []string) ([]Area, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, lat, lon FROM areas WHERE name IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: area centroids")
	}
	defer rows.Close()

	var out []Area
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.Name, &a.Lat, &a.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan centroid")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: area centroids rows")
}

func (s *SQLiteStore) LocateFromPOIs(ctx context.Context, name string) (*Location, error) {
	var lat, lon sql.NullFloat64
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(lat), AVG(lon), COUNT(*) FROM points WHERE LOWER(name) LIKE LOWER(?)`,
		"%"+name+"%").Scan(&lat, &lon, &count)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: locate from pois")
	}
	if count == 0 || !lat.Valid || !lon.Valid {
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

// CountInPolygon prefilters by the polygon's bounding box in SQL, then runs
// the exact containment test in Go.
func (s *SQLiteStore) CountInPolygon(ctx context.Context, categories []string, iso *geomath.Isochrone) (int, error) {
	if len(categories) == 0 || iso == nil {
		return 0, nil
	}
	pois, err := s.poisInCategories(ctx, categories, iso.Bounds())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range pois {
		if iso.Contains(geomath.Point{Lat: p.Lat, Lon: p.Lon}) {
			count++
		}
	}
	return count, nil
}

func (s *SQLiteStore) CountInRadius(ctx context.Context, categories []string, lat, lon, radiusKM float64) (int, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	center := geomath.Point{Lat: lat, Lon: lon}
	pois, err := s.poisInCategories(ctx, categories, geomath.BoundingBox(center, radiusKM))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range pois {
		if geomath.InCircle(center, radiusKM, geomath.Point{Lat: p.Lat, Lon: p.Lon}) {
			count++
		}
	}
	return count, nil
}

func (s *SQLiteStore) poisInCategories(ctx context.Context, categories []string, bbox geomath.BBox) ([]POI, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
	args := make([]any, 0, len(categories)+4)
	for _, c := range categories {
		args = append(args, c)
	}
	args = append(args, bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, super_category, lat, lon FROM points
		 WHERE super_category IN (`+placeholders+`)
		 AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pois in categories")
	}
	defer rows.Close()

	var out []POI
	for rows.Next() {
		var p POI
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.SuperCategory, &p.Lat, &p.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan poi")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: pois in categories rows")
}

func (s *SQLiteStore) CategoryDistribution(ctx context.Context, areaName string) (map[string]int, error) {
	area, err := s.FindArea(ctx, areaName)
	if err != nil {
		return nil, err
	}
	return s.CategoryDistributionRadius(ctx, area.Lat, area.Lon, 1.5)
}

func (s *SQLiteStore) CategoryDistributionRadius(ctx context.Context, lat, lon, radiusKM float64) (map[string]int, error) {
	center := geomath.Point{Lat: lat, Lon: lon}
	bbox := geomath.BoundingBox(center, radiusKM)
	rows, err := s.db.QueryContext(ctx,
		`SELECT super_category, lat, lon FROM points WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`,
		bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: category distribution")
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var cat string
		var plat, plon float64
		if err := rows.Scan(&cat, &plat, &plon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan distribution")
		}
		if geomath.InCircle(center, radiusKM, geomath.Point{Lat: plat, Lon: plon}) {
			out[cat]++
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: distribution rows")
}

func (s *SQLiteStore) AverageDistribution(ctx context.Context) (map[string]float64, error) {
	var areaCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM areas`).Scan(&areaCount); err != nil {
		return nil, eris.Wrap(err, "sqlite: count areas")
	}
	if areaCount == 0 {
		areaCount = 1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT super_category, COUNT(*) FROM points GROUP BY super_category`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: total distribution")
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan total")
		}
		out[cat] = float64(n) / float64(areaCount)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: total rows")
}

func (s *SQLiteStore) POIsInBBox(ctx context.Context, bbox geomath.BBox, limit int) ([]POI, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, super_category, lat, lon
		 FROM points
		 WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		 ORDER BY id LIMIT ?`,
		bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pois in bbox")
	}
	defer rows.Close()

	var out []POI
	for rows.Next() {
		var p POI
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.SuperCategory, &p.Lat, &p.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan poi")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: pois in bbox rows")
}

// InsertArea upserts an area centroid. SQLite keeps centroids only.
func (s *SQLiteStore) InsertArea(ctx context.Context, a Area) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO areas (name, lat, lon) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET lat = excluded.lat, lon = excluded.lon`,
		a.Name, a.Lat, a.Lon)
	return eris.Wrapf(err, "sqlite: insert area %s", a.Name)
}

// InsertPOIs loads points in one transaction.
func (s *SQLiteStore) InsertPOIs(ctx context.Context, pois []POI) (int64, error) {
	if len(pois) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert pois")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (name, category, super_category, lat, lon) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert poi")
	}
	defer stmt.Close()

	var n int64
	for _, p := range pois {
		if _, err := stmt.ExecContext(ctx, p.Name, p.Category, p.SuperCategory, p.Lat, p.Lon); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert poi %s", p.Name)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert pois")
	}
	return n, nil
}
