package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/stream"
)

// TrainLogs relays the training backend's live log stream to the caller
// verbatim, preserving chunk timing for the lifetime of the upstream
// connection. When the upstream cannot be reached it degrades to a single
// terminal error frame on a 200 stream, so long-polling clients that expect
// a stream are never left waiting on a hard error.
func (a *App) TrainLogs(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	upstream, err := a.Trainer.OpenLogStream(r.Context(), jobID)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("train logs: upstream unavailable")
		stream.PrepareResponse(w)
		_ = stream.NewEncoder(w).Emit(stream.ErrorEvent("log stream unavailable: " + err.Error()))
		return
	}
	defer upstream.Body.Close()

	contentType := upstream.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/x-ndjson"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := upstream.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Consumer is gone; stop relaying.
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				a.Logger.Debug().Err(readErr).Str("job_id", jobID).Msg("train logs: upstream closed")
			}
			return
		}
	}
}
