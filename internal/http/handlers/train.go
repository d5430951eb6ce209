package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"server/internal/domain"
)

type trainItem struct {
	Name       string `json:"name"`
	DatasetURL string `json:"dataset_url"`
}

type trainRequest struct {
	Kind         string      `json:"kind"`
	Items        []trainItem `json:"items"`
	Steps        int         `json:"steps"`
	LearningRate float64     `json:"learning_rate"`
	Rank         int         `json:"rank"`
}

// TrainDispatch accepts a fine-tuning job and returns before any work runs.
// The queued record is the handoff to the worker; everything after this
// response happens out of band and is observed via TrainStatus.
func (a *App) TrainDispatch(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Items) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one training item is required")
		return
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.DatasetURL) == "" {
			a.error(w, http.StatusBadRequest, "bad_request", "every training item needs a dataset_url")
			return
		}
	}
	kind := req.Kind
	if kind == "" {
		if len(req.Items) > 1 {
			kind = "batch"
		} else {
			kind = "single"
		}
	}

	spec, err := json.Marshal(req)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to encode training spec")
		return
	}

	jobID := uuid.NewString()
	if err := a.Store.Enqueue(r.Context(), jobID, kind, spec); err != nil {
		a.Logger.Error().Err(err).Msg("train: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue training job")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"ok": true, "job_id": jobID})
}

// TrainStatus reads the shared status record. It is a pure read: an id the
// store has never seen answers status "unknown" with 200, because dispatch
// visibility lags acceptance and the caller is expected to poll again.
func (a *App) TrainStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	rec, err := a.Store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]any{"ok": true, "job_id": jobID, "status": domain.TrainingUnknown})
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("train: status read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read training status")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"ok":           rec.Status != domain.TrainingFailed,
		"job_id":       rec.JobID,
		"kind":         rec.Kind,
		"status":       rec.Status,
		"results":      rec.Results,
		"cost":         rec.Cost,
		"train_time":   rec.TrainTime,
		"current_step": rec.CurrentStep,
		"total_steps":  rec.TotalSteps,
		"loss":         rec.Loss,
		"eta_min":      rec.EtaMin,
		"elapsed_min":  rec.ElapsedMin,
		"error":        rec.Error,
	})
}
