package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

type createAnalysisRequest struct {
	ProjectID   string          `json:"project_id"`
	Kind        string          `json:"kind"`
	FileIDs     []string        `json:"file_ids"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

func (rt *Router) createAnalysis(w http.ResponseWriter, r *http.Request) {
	rt.handleCreate(w, r, "")
}

// createAnalysisOfKind serves POST /v1/analyses/{kind}, e.g. /v1/analyses/timeline.
func (rt *Router) createAnalysisOfKind(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseAnalysisKind(r.PathValue("kind"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown analysis kind"})
		return
	}
	rt.handleCreate(w, r, kind)
}

func (rt *Router) handleCreate(w http.ResponseWriter, r *http.Request, kind domain.AnalysisKind) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createAnalysisRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if kind == "" {
		kind = domain.AnalysisKind(req.Kind)
	}

	task, err := rt.analyses.Create(r.Context(), domain.CreateAnalysisInput{
		ProjectID:   req.ProjectID,
		UserID:      userID,
		Kind:        kind,
		FileIDs:     req.FileIDs,
		Description: req.Description,
		Parameters:  req.Parameters,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordAnalysisCreated(serviceName, string(task.Kind))
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := rt.analyses.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (rt *Router) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.analyses.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) deleteAnalyses(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, invalidInput("delete analyses", errors.New("ids is required")))
		return
	}
	deleted, err := rt.analyses.DeleteMany(r.Context(), req.IDs, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"requested": len(req.IDs), "deleted": deleted})
}

func (rt *Router) cancelAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := rt.analyses.Cancel(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (rt *Router) rerunAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := rt.analyses.Rerun(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (rt *Router) analysisProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	progress, err := rt.analyses.Progress(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (rt *Router) listProjectAnalyses(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := analysisFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := rt.analyses.ListByProject(r.Context(), r.PathValue("id"), userID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) recentProjectAnalyses(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tasks, err := rt.analyses.ListRecent(r.Context(), r.PathValue("id"), userID, days, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": tasks})
}

func analysisFilter(r *http.Request) (domain.AnalysisFilter, error) {
	query := r.URL.Query()
	var filter domain.AnalysisFilter

	if raw := strings.TrimSpace(query.Get("kind")); raw != "" {
		kind, ok := domain.ParseAnalysisKind(raw)
		if !ok {
			return filter, invalidInput("parse filter", fmt.Errorf("unknown kind %q", raw))
		}
		filter.Kind = kind
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := domain.ParseAnalysisStatus(raw)
		if !ok {
			return filter, invalidInput("parse filter", fmt.Errorf("unknown status %q", raw))
		}
		filter.Status = status
	}
	filter.Keyword = strings.TrimSpace(query.Get("q"))

	var err error
	if filter.CreatedAfter, err = queryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.CreatedBefore, err = queryTime(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}
