package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/boundary"
	"github.com/siteatlas/siteatlas/internal/spatial"
)

var importNameField string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load areas and points of interest",
}

var importAreasCmd = &cobra.Command{
	Use:   "areas <file>",
	Short: "Load area boundaries from a shapefile or GeoJSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		path := args[0]

		var polys []boundary.AreaPolygon
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".shp":
			polys, err = boundary.LoadShapefile(path, importNameField)
		case ".geojson", ".json":
			f, ferr := os.Open(path)
			if ferr != nil {
				return eris.Wrap(ferr, "open boundary file")
			}
			defer f.Close()
			polys, err = boundary.LoadGeoJSON(f)
		default:
			return eris.Errorf("unsupported boundary format %q", filepath.Ext(path))
		}
		if err != nil {
			return err
		}
		if len(polys) == 0 {
			return eris.New("no area polygons found")
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		var loaded int64
		switch st := store.(type) {
		case *spatial.PostgresStore:
			names, geoms := boundary.ImportColumns(polys)
			loaded, err = st.ImportAreas(ctx, names, geoms)
			if err != nil {
				return err
			}
		case *spatial.SQLiteStore:
			for _, p := range polys {
				lat, lon, cerr := p.Centroid()
				if cerr != nil {
					zap.L().Warn("skipping area with bad geometry",
						zap.String("area", p.Name), zap.Error(cerr))
					continue
				}
				if err := st.InsertArea(ctx, spatial.Area{Name: p.Name, Lat: lat, Lon: lon}); err != nil {
					return err
				}
				loaded++
			}
		default:
			return eris.New("store does not support area import")
		}

		zap.L().Info("areas imported",
			zap.String("file", path),
			zap.Int64("loaded", loaded))
		return nil
	},
}

var importPOIsCmd = &cobra.Command{
	Use:   "pois <file>",
	Short: "Load points of interest from CSV or XML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open poi file")
		}
		defer f.Close()

		var pois []spatial.POI
		switch strings.ToLower(filepath.Ext(args[0])) {
		case ".xml":
			pois, err = boundary.LoadPOIsXML(ctx, f)
		default:
			pois, err = boundary.LoadPOIsCSV(ctx, f)
		}
		if err != nil {
			return err
		}
		if len(pois) == 0 {
			return eris.New("no points found")
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		var loaded int64
		switch st := store.(type) {
		case *spatial.PostgresStore:
			loaded, err = st.ImportPOIs(ctx, pois)
		case *spatial.SQLiteStore:
			loaded, err = st.InsertPOIs(ctx, pois)
		default:
			return eris.New("store does not support poi import")
		}
		if err != nil {
			return err
		}

		zap.L().Info("points imported",
			zap.String("file", args[0]),
			zap.Int64("loaded", loaded))
		return nil
	},
}

func init() {
	importAreasCmd.Flags().StringVar(&importNameField, "name-field", "NAME", "shapefile attribute holding the area name")
	importCmd.AddCommand(importAreasCmd)
	importCmd.AddCommand(importPOIsCmd)
	rootCmd.AddCommand(importCmd)
}
