package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/orchestrator"
	"server/internal/providers/kling"
	"server/internal/statusstore"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, payload any) *http.Response {
	body, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func rawResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

// vendorStub serves the vendor task API and asset downloads from a single
// transport so handler tests run without a network.
type vendorStub struct {
	mu      sync.Mutex
	created int
}

func (v *vendorStub) RoundTrip(req *http.Request) (*http.Response, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case req.Method == http.MethodPost && req.URL.Path == "/jobs":
		taskID := fmt.Sprintf("task-%d", v.created)
		v.created++
		return jsonResponse(200, map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": taskID, "task_status": "submitted"},
		}), nil
	case req.Method == http.MethodGet && len(req.URL.Path) > len("/jobs/") && req.URL.Path[:len("/jobs/")] == "/jobs/":
		taskID := req.URL.Path[len("/jobs/"):]
		return jsonResponse(200, map[string]any{
			"code": 0,
			"data": map[string]any{
				"task_id":     taskID,
				"task_status": "succeed",
				"task_result": map[string]any{"assets": []any{map[string]any{"url": "https://cdn.vendor.test/" + taskID + ".mp4"}}},
			},
		}), nil
	case req.Method == http.MethodGet && req.URL.Host == "cdn.vendor.test":
		return rawResponse(200, "mp4-bytes"), nil
	}
	return rawResponse(404, "not found"), nil
}

func testVendorClient(t *testing.T, transport http.RoundTripper) *kling.Client {
	t.Helper()
	client, err := kling.NewClient(kling.Options{
		Signer:     kling.NewSigner("ak-test", "sk-test"),
		BaseURL:    "https://vendor.test",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("vendor client: %v", err)
	}
	return client
}

func testVendorClientWithoutCredentials(t *testing.T) *kling.Client {
	t.Helper()
	client, err := kling.NewClient(kling.Options{
		Signer:  kling.NewSigner("", ""),
		BaseURL: "https://vendor.test",
	})
	if err != nil {
		t.Fatalf("vendor client: %v", err)
	}
	return client
}

func newTestApp(t *testing.T, transport http.RoundTripper) *App {
	t.Helper()
	vendor := testVendorClient(t, transport)
	logger := infra.Logger(zerolog.New(io.Discard))
	batch := orchestrator.NewBatch(vendor, orchestrator.Options{
		SubmitSpacing: time.Millisecond,
		PollInterval:  time.Millisecond,
		PollDeadline:  50 * time.Millisecond,
	}, logger)
	return &App{
		Logger: logger,
		Vendor: vendor,
		Batch:  batch,
		Store:  statusstore.NewMemory(),
	}
}
