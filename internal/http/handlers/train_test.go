package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/domain"
)

func TestTrainDispatchQueuesJob(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/train", strings.NewReader(`{
		"items": [{"name": "style", "dataset_url": "https://d.test/style.zip"}],
		"steps": 800
	}`))
	rec := httptest.NewRecorder()
	app.TrainDispatch(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var body struct {
		OK    bool   `json:"ok"`
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.JobID == "" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	// The accepted response only promises a queued record: the job must be
	// claimable by a worker afterwards.
	claimed, err := app.Store.Claim(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.JobID != body.JobID {
		t.Fatalf("claimed %q, want %q", claimed.JobID, body.JobID)
	}
	if claimed.Kind != "single" {
		t.Fatalf("single-item job defaulted to kind %q", claimed.Kind)
	}
}

func TestTrainDispatchDefaultsBatchKind(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/train", strings.NewReader(`{
		"items": [
			{"name": "a", "dataset_url": "https://d.test/a.zip"},
			{"name": "b", "dataset_url": "https://d.test/b.zip"}
		]
	}`))
	rec := httptest.NewRecorder()
	app.TrainDispatch(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	claimed, err := app.Store.Claim(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Kind != "batch" {
		t.Fatalf("multi-item job defaulted to kind %q, want batch", claimed.Kind)
	}
}

func TestTrainDispatchValidation(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	cases := []string{
		`{not json`,
		`{"items": []}`,
		`{"items": [{"name": "x"}]}`,
	}
	for _, payload := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/train", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		app.TrainDispatch(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: status = %d, want 400", payload, rec.Code)
		}
	}
}

func TestTrainStatusUnknownJob(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	req := httptest.NewRequest(http.MethodGet, "/v1/train/status?job_id=never-dispatched", nil)
	rec := httptest.NewRecorder()
	app.TrainStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, unknown jobs answer 200", rec.Code)
	}
	var body struct {
		OK     bool   `json:"ok"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Status != string(domain.TrainingUnknown) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTrainStatusReturnsRecord(t *testing.T) {
	app := newTestApp(t, &vendorStub{})
	ctx := context.Background()
	if err := app.Store.Enqueue(ctx, "job-1", "single", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := app.Store.UpdateProgress(ctx, "job-1", 40, 100, 0.5, 6, 4); err != nil {
		t.Fatalf("progress: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/train/status?job_id=job-1", nil)
	rec := httptest.NewRecorder()
	app.TrainStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		OK          bool    `json:"ok"`
		Status      string  `json:"status"`
		CurrentStep int     `json:"current_step"`
		TotalSteps  int     `json:"total_steps"`
		Loss        float64 `json:"loss"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.CurrentStep != 40 || body.TotalSteps != 100 || body.Loss != 0.5 {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTrainStatusFailedJobAnswersNotOK(t *testing.T) {
	app := newTestApp(t, &vendorStub{})
	ctx := context.Background()
	if err := app.Store.Enqueue(ctx, "job-1", "single", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := app.Store.Finish(ctx, "job-1", domain.TrainingFailed, nil, 0, 0, "out of GPU memory"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/train/status?job_id=job-1", nil)
	rec := httptest.NewRecorder()
	app.TrainStatus(rec, req)

	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OK || body.Error != "out of GPU memory" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTrainStatusRequiresJobID(t *testing.T) {
	app := newTestApp(t, &vendorStub{})
	req := httptest.NewRequest(http.MethodGet, "/v1/train/status", nil)
	rec := httptest.NewRecorder()
	app.TrainStatus(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
