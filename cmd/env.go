package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/basescore"
	"github.com/siteatlas/siteatlas/internal/boundary"
	"github.com/siteatlas/siteatlas/internal/enrich"
	"github.com/siteatlas/siteatlas/internal/geomath"
	"github.com/siteatlas/siteatlas/internal/opportunity"
	"github.com/siteatlas/siteatlas/internal/recommend"
	"github.com/siteatlas/siteatlas/internal/rescache"
	"github.com/siteatlas/siteatlas/internal/research"
	"github.com/siteatlas/siteatlas/internal/resilience"
	"github.com/siteatlas/siteatlas/internal/spatial"
	"github.com/siteatlas/siteatlas/pkg/anthropic"
	"github.com/siteatlas/siteatlas/pkg/latlong"
	"github.com/siteatlas/siteatlas/pkg/perplexity"
)

// env holds everything a query command needs, built once per invocation.
type env struct {
	Store    spatial.Store
	Scores   *basescore.Provider
	Caches   *rescache.Tiers
	Engine   *recommend.Engine
	Analyzer *opportunity.Analyzer
	Merger   *enrich.Merger  // nil when research is disabled
	Geo      latlong.Client  // nil without an API key
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func openStore(ctx context.Context) (spatial.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return spatial.NewPostgres(ctx, cfg.Store.DatabaseURL, &spatial.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	case "sqlite":
		return spatial.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// loadScores reads the criteria workbook, or synthesizes a neutral provider
// from the stored area list when none is configured.
func loadScores(ctx context.Context, store spatial.Store) (*basescore.Provider, error) {
	path := cfg.Recommend.ScoresPath
	if path == "" {
		areas, err := store.ListAreas(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(areas))
		for i, a := range areas {
			names[i] = a.Name
		}
		zap.L().Info("no criteria workbook configured, using neutral base scores",
			zap.Int("areas", len(names)))
		return basescore.NeutralProvider(names), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return boundary.LoadCriteriaXLSX(path, "")
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open criteria workbook")
		}
		defer f.Close()
		return basescore.LoadCSV(f)
	default:
		return nil, eris.Errorf("unsupported criteria workbook format %q", filepath.Ext(path))
	}
}

// isochroneAdapter bridges the LatLong API to the aggregator.
type isochroneAdapter struct {
	geo latlong.Client
}

func (a isochroneAdapter) Isochrone(ctx context.Context, lat, lon, distanceKM float64) (*geomath.Isochrone, error) {
	geometry, err := a.geo.IsochroneGeometry(ctx, lat, lon, distanceKM)
	if err != nil {
		return nil, err
	}
	return geomath.DecodeIsochrone(geometry)
}

func initEnv(ctx context.Context) (*env, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	scores, err := loadScores(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	e := &env{
		Store:  store,
		Scores: scores,
		Caches: rescache.NewTiers(),
	}

	aggOpts := []recommend.AggregatorOption{
		recommend.WithCandidateCount(cfg.Recommend.CandidateCount),
		recommend.WithConcurrency(cfg.Recommend.Concurrency),
	}
	if cfg.LatLong.Key != "" {
		e.Geo = latlong.NewClient(cfg.LatLong.Key,
			latlong.WithBaseURL(cfg.LatLong.BaseURL),
			latlong.WithRateLimit(cfg.LatLong.RateLimit),
			latlong.WithRetry(resilience.FromRetryConfig(3, 100, 5000, 2.0, 0.25)))
		aggOpts = append(aggOpts, recommend.WithIsochrones(isochroneAdapter{geo: e.Geo}))
	}

	e.Engine = recommend.NewEngine(recommend.NewAggregator(store, scores, aggOpts...), e.Caches)
	e.Analyzer = opportunity.NewAnalyzer(store, scores, e.Caches)

	if cfg.Research.Enabled {
		var search perplexity.Client
		if cfg.Perplexity.Key != "" {
			search = perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model))
		}
		agent := research.NewAgent(search, anthropic.NewClient(cfg.Anthropic.Key),
			research.WithModel(cfg.Anthropic.HaikuModel),
			research.WithCity(cfg.Research.City))
		e.Merger = enrich.NewMerger(agent, time.Duration(cfg.Research.TimeoutSecs)*time.Second)
	}

	return e, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	fmt.Println(string(out))
	return nil
}
