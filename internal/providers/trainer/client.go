package trainer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// Options configures the GPU training backend client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the training backend: a long-lived streaming train call
// consumed by the worker, plus a raw log stream relayed by the API proxy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Item is one dataset within a training job; multi-item jobs train one
// adapter per item.
type Item struct {
	Name       string `json:"name"`
	DatasetURL string `json:"dataset_url"`
}

// Spec is the training job specification forwarded to the backend.
type Spec struct {
	JobID        string  `json:"job_id"`
	Kind         string  `json:"kind"`
	Items        []Item  `json:"items"`
	Steps        int     `json:"steps,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
	Rank         int     `json:"rank,omitempty"`
}

// Progress is one live-progress line from the backend's training stream.
type Progress struct {
	CurrentStep int     `json:"current_step"`
	TotalSteps  int     `json:"total_steps"`
	Loss        float64 `json:"loss"`
	EtaMin      float64 `json:"eta_min"`
	ElapsedMin  float64 `json:"elapsed_min"`
}

// Result is the terminal line of the training stream.
type Result struct {
	Ok        bool                   `json:"ok"`
	Results   []domain.SubtaskResult `json:"results"`
	Cost      float64                `json:"cost"`
	TrainTime float64                `json:"train_time"`
	Error     string                 `json:"error,omitempty"`
}

type streamLine struct {
	Event string `json:"event"`
	Progress
	Result
	Message string `json:"message,omitempty"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No overall timeout: a training stream stays open for the whole
		// job. Cancellation comes from the request context.
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8188"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// Train runs one job on the backend, invoking onProgress for every progress
// line of the response stream and returning the terminal result line. The
// call blocks for the lifetime of the job; the worker owns that budget.
func (c *Client) Train(ctx context.Context, spec Spec, onProgress func(Progress)) (Result, error) {
	if len(spec.Items) == 0 {
		return Result{}, fmt.Errorf("%w: at least one training item is required", domain.ErrValidation)
	}
	body, err := json.Marshal(spec)
	if err != nil {
		return Result{}, fmt.Errorf("trainer: encode spec: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/train/stream", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("trainer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("trainer: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &domain.UpstreamError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var decoded streamLine
		if err := json.Unmarshal(line, &decoded); err != nil {
			c.logger.Warn().Err(err).Msg("trainer: skipping malformed stream line")
			continue
		}
		switch decoded.Event {
		case "progress":
			if onProgress != nil {
				onProgress(decoded.Progress)
			}
		case "result":
			return decoded.Result, nil
		case "error":
			return Result{}, &domain.UpstreamError{Code: 0, Message: decoded.Message}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("trainer: read stream: %w", err)
	}
	return Result{}, errors.New("trainer: stream ended without a result line")
}

// OpenLogStream establishes the backend's live log stream for a job. The
// caller owns the response body and must close it.
func (c *Client) OpenLogStream(ctx context.Context, jobID string) (*http.Response, error) {
	endpoint := c.baseURL + "/train/logs?job_id=" + url.QueryEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("trainer: build log request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trainer: open log stream: %w", err)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &domain.UpstreamError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

// Health reports whether the backend is ready to accept jobs.
func (c *Client) Health(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var decoded struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("trainer: decode health: %w", err)
	}
	return decoded.Status, nil
}
