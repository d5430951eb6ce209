package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"server/internal/middleware"
	"server/internal/orchestrator"
	"server/internal/providers/kling"
	"server/internal/stream"
)

const maxMotionsPerBatch = 30

type augmentRequest struct {
	SourceImage    string   `json:"source_image"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt"`
	CfgScale       float64  `json:"cfg_scale"`
	Mode           string   `json:"mode"`
	Duration       string   `json:"duration"`
	AspectRatio    string   `json:"aspect_ratio"`
	Motions        []string `json:"motions"`
}

// VideosAugment runs one augmentation batch and streams progress as NDJSON.
// Everything that can be rejected is rejected before the stream opens; once
// streaming has begun every failure becomes an event and the response stays
// 200. The stream is closed on every exit path.
func (a *App) VideosAugment(w http.ResponseWriter, r *http.Request) {
	var req augmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.SourceImage) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "source_image is required")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if len(req.Motions) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one motion is required")
		return
	}
	if len(req.Motions) > maxMotionsPerBatch {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("at most %d motions per batch", maxMotionsPerBatch))
		return
	}
	if a.Vendor == nil || !a.Vendor.HasCredentials() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "vendor credentials are not configured")
		return
	}

	if req.CfgScale <= 0 {
		req.CfgScale = 0.5
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "9:16"
	}

	job := orchestrator.Job{
		Base: kling.TaskRequest{
			SourceImage:    req.SourceImage,
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			CfgScale:       req.CfgScale,
			Mode:           req.Mode,
			Duration:       req.Duration,
			AspectRatio:    req.AspectRatio,
		},
		Motions: req.Motions,
	}

	stream.PrepareResponse(w)
	enc := stream.NewEncoder(w)
	logger := a.Logger.With().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("locale", middleware.LocaleFromContext(r.Context())).
		Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("augment: orchestration panic")
			_ = enc.Emit(stream.ErrorEvent("internal error"))
		}
	}()

	// r.Context() is cancelled when the consumer disconnects; the emit
	// callback surfaces write failures for the same reason. Either signal
	// stops further submission and polling.
	if err := a.Batch.Run(r.Context(), job, enc.Emit); err != nil {
		logger.Warn().Err(err).Msg("augment: batch ended early")
		_ = enc.Emit(stream.ErrorEvent(err.Error()))
	}
}
