package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"server/internal/providers/trainer"
)

func trainLogsRequest(app *App, jobID string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Get("/v1/train/{job_id}/logs", app.TrainLogs)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/train/"+jobID+"/logs", nil))
	return rec
}

func TestTrainLogsRelaysUpstreamStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("job_id"); got != "job-3" {
			t.Fatalf("job_id = %q", got)
		}
		w.Header().Set("Content-Type", "text/plain")
		flusher := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "step %d/3\n", i+1)
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	app := newTestApp(t, &vendorStub{})
	app.Trainer = trainer.NewClient(trainer.Options{BaseURL: upstream.URL})

	rec := trainLogsRequest(app, "job-3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// The relay is verbatim: content type and body come from the upstream.
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("content type = %q, want the upstream's", ct)
	}
	var lines []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 3 || lines[0] != "step 1/3" || lines[2] != "step 3/3" {
		t.Fatalf("relayed lines = %v", lines)
	}
}

func TestTrainLogsDegradesWhenUpstreamUnreachable(t *testing.T) {
	app := newTestApp(t, &vendorStub{})
	// A closed server guarantees connection refusal.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	app.Trainer = trainer.NewClient(trainer.Options{BaseURL: dead.URL})

	rec := trainLogsRequest(app, "job-3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, degraded streams still answer 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}
	var ev struct {
		Event   string `json:"event"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if ev.Event != "error" || !strings.Contains(ev.Message, "log stream unavailable") {
		t.Fatalf("error frame = %s", rec.Body.String())
	}
}

func TestTrainLogsRequiresJobID(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	rec := httptest.NewRecorder()
	app.TrainLogs(rec, httptest.NewRequest(http.MethodGet, "/v1/train//logs", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
