package main

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/siteatlas/siteatlas/internal/geomath"
	"github.com/siteatlas/siteatlas/internal/recommend"
)

var (
	recommendDistance float64
	recommendLimit    int
	recommendAt       string
	recommendAtName   string
	recommendEnrich   bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <category>",
	Short: "Rank the best areas to open a business category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		req := recommend.Request{
			Category:   args[0],
			DistanceKM: recommendDistance,
			Limit:      recommendLimit,
		}
		if req.DistanceKM <= 0 {
			req.DistanceKM = cfg.Recommend.DistanceKM
		}
		if req.Limit <= 0 {
			req.Limit = cfg.Recommend.TopN
		}

		var res *recommend.Result
		if recommendAt != "" {
			center, err := parseLatLon(recommendAt)
			if err != nil {
				return err
			}
			name := recommendAtName
			if name == "" {
				name = "Custom Location"
			}
			res, err = e.Engine.RecommendAt(ctx, req, recommend.Scope{
				Kind:     recommend.ScopePoint,
				Name:     name,
				Center:   center,
				RadiusKM: req.DistanceKM,
			})
			if err != nil {
				return err
			}
		} else {
			res, err = e.Engine.Recommend(ctx, req)
			if err != nil {
				return err
			}
		}

		if recommendEnrich && e.Merger != nil {
			res.Recommendations = e.Merger.Merge(ctx, res.Category, res.Recommendations)
		}

		return printJSON(res)
	},
}

func parseLatLon(s string) (geomath.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geomath.Point{}, eris.Errorf("expected lat,lon but got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geomath.Point{}, eris.Wrapf(err, "parse latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geomath.Point{}, eris.Wrapf(err, "parse longitude %q", parts[1])
	}
	return geomath.Point{Lat: lat, Lon: lon}, nil
}

func init() {
	recommendCmd.Flags().Float64Var(&recommendDistance, "distance", 0, "catchment distance in km (default from config)")
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 0, "number of recommendations (default from config)")
	recommendCmd.Flags().StringVar(&recommendAt, "at", "", "score a single point instead, as lat,lon")
	recommendCmd.Flags().StringVar(&recommendAtName, "name", "", "display name for the --at point")
	recommendCmd.Flags().BoolVar(&recommendEnrich, "enrich", false, "attach market research notes (needs research enabled)")
	rootCmd.AddCommand(recommendCmd)
}
