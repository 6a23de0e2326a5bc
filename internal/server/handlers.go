package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/geomath"
	"github.com/siteatlas/siteatlas/internal/recommend"
	"github.com/siteatlas/siteatlas/internal/rescache"
	"github.com/siteatlas/siteatlas/internal/spatial"
	"github.com/siteatlas/siteatlas/internal/taxonomy"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

// writeDomainError maps known domain failures to 422 and everything else
// to 500. Internal detail stays in the logs, not the response body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, taxonomy.ErrUnknownCategory):
		s.writeError(w, r, http.StatusUnprocessableEntity, "unknown category")
	case errors.Is(err, spatial.ErrUnknownArea):
		s.writeError(w, r, http.StatusUnprocessableEntity, "unknown area")
	default:
		zap.L().Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		zap.L().Warn("health check store ping failed", zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		recommend.Request
		Enrich bool `json:"enrich"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Category == "" {
		s.writeError(w, r, http.StatusBadRequest, "category is required")
		return
	}

	res, err := s.engine.Recommend(r.Context(), req.Request)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.enrichResult(r.Context(), res, req.Enrich))
}

// enrichResult attaches research notes on request. The engine may hand back a
// cached result, so notes go on a copy; cached entries stay unenriched.
func (s *Server) enrichResult(ctx context.Context, res *recommend.Result, enrich bool) *recommend.Result {
	if !enrich || s.merger == nil {
		return res
	}
	out := *res
	out.Recommendations = s.merger.Merge(ctx, res.Category, slices.Clone(res.Recommendations))
	return &out
}

type pointRequest struct {
	Category   string  `json:"category"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceKM float64 `json:"distance_km"`
	Enrich     bool    `json:"enrich"`
}

func (s *Server) handleRecommendPoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Category == "" {
		s.writeError(w, r, http.StatusBadRequest, "category is required")
		return
	}
	if req.Lat == 0 && req.Lon == 0 {
		s.writeError(w, r, http.StatusBadRequest, "lat and lon are required")
		return
	}
	name := req.Name
	if name == "" {
		name = "Custom Location"
	}

	scope := recommend.Scope{
		Kind:     recommend.ScopePoint,
		Name:     name,
		Center:   geomath.Point{Lat: req.Lat, Lon: req.Lon},
		RadiusKM: req.DistanceKM,
	}
	res, err := s.engine.RecommendAt(r.Context(), recommend.Request{
		Category:   req.Category,
		DistanceKM: req.DistanceKM,
	}, scope)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.enrichResult(r.Context(), res, req.Enrich))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Area   string `json:"area"`
		Enrich bool   `json:"enrich"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Area == "" {
		s.writeError(w, r, http.StatusBadRequest, "area is required")
		return
	}

	analysis, err := s.analyzer.Analyze(r.Context(), req.Area)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.Enrich && s.merger != nil {
		category := ""
		if len(analysis.Dominant) > 0 {
			category = analysis.Dominant[0].Category
		}
		out := *analysis
		out.Research = s.merger.Note(r.Context(), analysis.Area, category)
		writeJSON(w, http.StatusOK, &out)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAreas(w http.ResponseWriter, r *http.Request) {
	const key = "areas:list"
	if s.caches != nil {
		if v, ok := s.caches.Static.Get(key); ok {
			if areas, ok := v.([]spatial.Area); ok {
				writeJSON(w, http.StatusOK, map[string]any{"areas": areas})
				return
			}
		}
	}

	areas, err := s.store.ListAreas(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if s.caches != nil {
		s.caches.Static.Set(key, areas)
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": areas})
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minLat, err1 := strconv.ParseFloat(q.Get("min_lat"), 64)
	minLon, err2 := strconv.ParseFloat(q.Get("min_lon"), 64)
	maxLat, err3 := strconv.ParseFloat(q.Get("max_lat"), 64)
	maxLon, err4 := strconv.ParseFloat(q.Get("max_lon"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		s.writeError(w, r, http.StatusBadRequest, "min_lat, min_lon, max_lat and max_lon are required")
		return
	}
	if minLat > maxLat || minLon > maxLon {
		s.writeError(w, r, http.StatusBadRequest, "bounding box is inverted")
		return
	}

	limit := defaultViewportLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxViewportLimit {
		limit = maxViewportLimit
	}

	key := rescache.MakeViewportKey(minLat, minLon, maxLat, maxLon, limit)
	if s.caches != nil {
		if v, ok := s.caches.Viewport.Get(key); ok {
			if pois, ok := v.([]spatial.POI); ok {
				writeJSON(w, http.StatusOK, map[string]any{"points": pois, "count": len(pois)})
				return
			}
		}
	}

	bbox := geomath.BBox{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
	pois, err := s.store.POIsInBBox(r.Context(), bbox, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if s.caches != nil {
		s.caches.Viewport.Set(key, pois)
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": pois, "count": len(pois)})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	names, err := taxonomy.SuperCategories()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": names})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.caches == nil {
		writeJSON(w, http.StatusOK, map[string]rescache.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, s.caches.TierStats())
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		s.writeError(w, r, http.StatusBadRequest, "address is required")
		return
	}

	res, err := s.geo.Geocode(r.Context(), address)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
