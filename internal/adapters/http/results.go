package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

func (rt *Router) listWordFrequencies(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	minFrequency, err := queryInt(r, "min_frequency", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	minRelevance, _, err := queryFloat(r, "min_relevance")
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := domain.WordFrequencyQuery{MinFrequency: minFrequency, MinRelevance: minRelevance}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		query.Category = domain.ParseCategory(raw)
	}

	out, err := rt.results.WordFrequencies(r.Context(), r.PathValue("id"), userID, query, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) listTimelineEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := rt.results.TimelineEvents(r.Context(), r.PathValue("id"), userID, domain.TimelineQuery{From: from, To: to}, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) listGeoLocations(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	box, err := boundingBox(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := domain.GeoQuery{Box: box}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		query.LocationType = domain.ParseLocationType(raw)
	}

	out, err := rt.results.GeoLocations(r.Context(), r.PathValue("id"), userID, query, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// boundingBox needs all four of min_lat, max_lat, min_lon and max_lon, or none.
func boundingBox(r *http.Request) (*domain.BoundingBox, error) {
	keys := []string{"min_lat", "max_lat", "min_lon", "max_lon"}
	values := make([]float64, len(keys))
	present := 0
	for i, key := range keys {
		v, ok, err := queryFloat(r, key)
		if err != nil {
			return nil, err
		}
		if ok {
			values[i] = v
			present++
		}
	}
	switch present {
	case 0:
		return nil, nil
	case len(keys):
		return &domain.BoundingBox{
			MinLatitude:  values[0],
			MaxLatitude:  values[1],
			MinLongitude: values[2],
			MaxLongitude: values[3],
		}, nil
	default:
		return nil, invalidInput("parse bounding box", errors.New("min_lat, max_lat, min_lon and max_lon must be given together"))
	}
}

func (rt *Router) nearbyLocations(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var query domain.NearbyQuery
	for _, field := range []struct {
		key string
		dst *float64
	}{
		{key: "lat", dst: &query.Latitude},
		{key: "lon", dst: &query.Longitude},
		{key: "radius_km", dst: &query.RadiusKM},
	} {
		v, ok, err := queryFloat(r, field.key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, invalidInput("parse nearby query", fmt.Errorf("%s is required", field.key)))
			return
		}
		*field.dst = v
	}

	locations, err := rt.results.NearbyLocations(r.Context(), r.PathValue("id"), userID, query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": locations})
}

func (rt *Router) resultStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := rt.results.ResultStatistics(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) projectOverview(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	overview, err := rt.results.ProjectOverview(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// statistics defaults to the caller's own tasks; scope=global asks for every task.
func (rt *Router) statistics(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	scope := domain.StatisticsScope{
		ProjectID: strings.TrimSpace(query.Get("project_id")),
		UserID:    strings.TrimSpace(query.Get("user_id")),
	}
	global := strings.EqualFold(query.Get("scope"), "global")
	if !global && scope.ProjectID == "" && scope.UserID == "" {
		scope.UserID = userID
	}

	stats, err := rt.results.Statistics(r.Context(), userID, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// exportAnalysis returns the stored artifact description, or the file itself
// when download=true.
func (rt *Router) exportAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rawFormat := r.URL.Query().Get("format")
	if strings.TrimSpace(rawFormat) == "" {
		rawFormat = string(domain.ExportJSON)
	}
	format, ok := domain.ParseExportFormat(rawFormat)
	if !ok {
		writeError(w, r, invalidInput("export analysis", fmt.Errorf("unsupported export format %q", rawFormat)))
		return
	}

	artifact, err := rt.results.Export(r.Context(), r.PathValue("id"), userID, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordExport(serviceName, string(format))
	}

	download, _ := strconv.ParseBool(r.URL.Query().Get("download"))
	if !download || rt.artifacts == nil {
		writeJSON(w, http.StatusOK, artifact)
		return
	}

	file, err := rt.artifacts.Open(r.Context(), artifact.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(artifact.Path)))
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		slog.Warn("export_download_interrupted", "task_id", artifact.TaskID, "error", err)
	}
}
