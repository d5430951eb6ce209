package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postAugment(t *testing.T, app *App, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/videos/augment", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	app.VideosAugment(rec, req)
	return rec
}

func TestVideosAugmentStreamsBatch(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	rec := postAugment(t, app, `{
		"source_image": "base64-image",
		"prompt": "studio product shot",
		"motions": ["pan left", "pan right", "zoom in"]
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}

	counts := map[string]int{}
	var lastEvent string
	scanner := bufio.NewScanner(rec.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var ev struct {
			Event       string `json:"event"`
			TotalFrames int    `json:"total_frames"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad stream line %q: %v", scanner.Text(), err)
		}
		counts[ev.Event]++
		lastEvent = ev.Event
		if ev.Event == "done" && ev.TotalFrames != 3 {
			t.Fatalf("done total_frames = %d, want 3", ev.TotalFrames)
		}
	}
	if counts["submitted"] != 3 || counts["frame"] != 3 || counts["done"] != 1 {
		t.Fatalf("event counts = %v", counts)
	}
	if lastEvent != "done" {
		t.Fatalf("last event = %q, want done", lastEvent)
	}
}

func TestVideosAugmentRejectsBeforeStreaming(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	cases := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{not json`},
		{"missing image", `{"prompt":"p","motions":["m"]}`},
		{"missing prompt", `{"source_image":"img","motions":["m"]}`},
		{"no motions", `{"source_image":"img","prompt":"p","motions":[]}`},
	}
	for _, tc := range cases {
		rec := postAugment(t, app, tc.payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, rec.Code)
		}
		var body struct {
			OK   bool   `json:"ok"`
			Code string `json:"code"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if body.OK || body.Code != "bad_request" {
			t.Fatalf("%s: body = %s", tc.name, rec.Body.String())
		}
	}
}

func TestVideosAugmentMotionCap(t *testing.T) {
	app := newTestApp(t, &vendorStub{})

	motions := make([]string, maxMotionsPerBatch+1)
	for i := range motions {
		motions[i] = "m"
	}
	payload, _ := json.Marshal(map[string]any{
		"source_image": "img", "prompt": "p", "motions": motions,
	})
	rec := postAugment(t, app, string(payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 above the motion cap", rec.Code)
	}
}

func TestVideosAugmentRequiresCredentials(t *testing.T) {
	app := newTestApp(t, &vendorStub{})
	app.Vendor = testVendorClientWithoutCredentials(t)

	rec := postAugment(t, app, `{"source_image":"img","prompt":"p","motions":["m"]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
