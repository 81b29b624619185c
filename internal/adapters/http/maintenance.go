package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

func (rt *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !rt.access.IsAdmin(r.Context(), userID) {
			writeError(w, r, domain.WrapError(domain.ErrForbidden, "maintenance", errors.New("admin role required")))
			return
		}
		next(w, r)
	}
}

func (rt *Router) cleanupFailed(w http.ResponseWriter, r *http.Request) {
	before, err := queryTime(r, "before")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if before == nil {
		writeError(w, r, invalidInput("cleanup failed analyses", errors.New("before is required")))
		return
	}
	deleted, err := rt.maintenance.CleanupFailedBefore(r.Context(), *before)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (rt *Router) failTimedOut(w http.ResponseWriter, r *http.Request) {
	failed, err := rt.maintenance.FailTimedOut(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"failed": failed})
}

func (rt *Router) recoverPending(w http.ResponseWriter, r *http.Request) {
	dispatched, err := rt.maintenance.RecoverPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"dispatched": dispatched})
}
