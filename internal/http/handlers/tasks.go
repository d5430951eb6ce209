package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// VideoTaskStatus is the out-of-band status check for a single vendor task.
// It exists so a poll-deadline expiry on the streaming path stays resumable:
// the caller brings the task id back here later. A non-terminal vendor state
// answers 202 with the id, never an error.
func (a *App) VideoTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "task_id required")
		return
	}
	if a.Vendor == nil || !a.Vendor.HasCredentials() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "vendor credentials are not configured")
		return
	}

	state, err := a.Vendor.QueryTask(r.Context(), taskID)
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			a.error(w, http.StatusBadGateway, "upstream_rejected", upstream.Message)
			return
		}
		a.error(w, http.StatusBadGateway, "upstream_unreachable", err.Error())
		return
	}

	switch state.Status {
	case domain.TaskSucceeded:
		a.json(w, http.StatusOK, map[string]any{
			"ok":        true,
			"status":    state.Status,
			"task_id":   taskID,
			"asset_url": state.AssetURL,
		})
	case domain.TaskFailed:
		a.json(w, http.StatusOK, map[string]any{
			"ok":      false,
			"status":  state.Status,
			"task_id": taskID,
			"message": state.Message,
		})
	default:
		a.json(w, http.StatusAccepted, map[string]any{
			"ok":      true,
			"status":  state.Status,
			"task_id": taskID,
		})
	}
}
