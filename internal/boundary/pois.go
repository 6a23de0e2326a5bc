package boundary

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/fetcher"
	"github.com/siteatlas/siteatlas/internal/spatial"
	"github.com/siteatlas/siteatlas/internal/taxonomy"
)

// LoadPOIsCSV streams a point-of-interest CSV with a header row containing
// name, category, lat and lon columns (an optional id column is honored).
// The super category is resolved from the taxonomy; rows whose category is
// unknown fall back to the catch-all super category. Rows with unparseable
// coordinates are skipped.
func LoadPOIsCSV(ctx context.Context, r io.Reader) ([]spatial.POI, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	cols := map[string]int{}
	select {
	case header := <-headerCh:
		for i, col := range header {
			cols[strings.ToLower(strings.TrimSpace(col))] = i
		}
	case err := <-errCh:
		if err != nil {
			return nil, eris.Wrap(err, "boundary: read poi header")
		}
	}

	for _, required := range []string{"name", "category", "lat", "lon"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("boundary: poi csv has no %s column", required)
		}
	}

	var pois []spatial.POI
	var skipped int
	var nextID int64 = 1

	for record := range rowCh {
		cell := func(name string) string {
			i := cols[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		lat, latErr := strconv.ParseFloat(cell("lat"), 64)
		lon, lonErr := strconv.ParseFloat(cell("lon"), 64)
		name := cell("name")
		if name == "" || latErr != nil || lonErr != nil {
			skipped++
			continue
		}

		id := nextID
		if idCol, ok := cols["id"]; ok && idCol < len(record) {
			if parsed, err := strconv.ParseInt(strings.TrimSpace(record[idCol]), 10, 64); err == nil {
				id = parsed
			}
		}
		nextID = id + 1

		category := cell("category")
		super := taxonomy.CatchAll
		if sc, err := taxonomy.Resolve(category); err == nil {
			super = sc.Name
		}

		pois = append(pois, spatial.POI{
			ID:            id,
			Name:          name,
			Category:      category,
			SuperCategory: super,
			Lat:           lat,
			Lon:           lon,
		})
	}

	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "boundary: read poi csv")
	}

	zap.L().Info("loaded poi csv",
		zap.Int("points", len(pois)),
		zap.Int("skipped", skipped))

	return pois, nil
}

// xmlPOI is one <poi> element in a point export.
type xmlPOI struct {
	ID       int64   `xml:"id,attr"`
	Lat      float64 `xml:"lat,attr"`
	Lon      float64 `xml:"lon,attr"`
	Name     string  `xml:"name"`
	Category string  `xml:"category"`
}

// LoadPOIsXML streams points from an XML export of <poi> elements carrying
// id, lat and lon attributes plus name and category children. Category
// resolution and skip rules match the CSV loader.
func LoadPOIsXML(ctx context.Context, r io.Reader) ([]spatial.POI, error) {
	recCh, errCh := fetcher.StreamXML[xmlPOI](ctx, r, "poi")

	var pois []spatial.POI
	var skipped int
	var nextID int64 = 1

	for rec := range recCh {
		name := strings.TrimSpace(rec.Name)
		if name == "" || (rec.Lat == 0 && rec.Lon == 0) {
			skipped++
			continue
		}

		id := rec.ID
		if id == 0 {
			id = nextID
		}
		nextID = id + 1

		category := strings.TrimSpace(rec.Category)
		super := taxonomy.CatchAll
		if sc, err := taxonomy.Resolve(category); err == nil {
			super = sc.Name
		}

		pois = append(pois, spatial.POI{
			ID:            id,
			Name:          name,
			Category:      category,
			SuperCategory: super,
			Lat:           rec.Lat,
			Lon:           rec.Lon,
		})
	}

	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "boundary: read poi xml")
	}

	zap.L().Info("loaded poi xml",
		zap.Int("points", len(pois)),
		zap.Int("skipped", skipped))

	return pois, nil
}
