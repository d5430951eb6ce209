package kling

import (
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

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// Options configures the vendor image-to-video client.
type Options struct {
	Signer         *Signer
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the vendor's image-to-video task API.
type Client struct {
	signer     *Signer
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// TaskRequest captures the vendor-required inputs for one generation task.
type TaskRequest struct {
	SourceImage    string  `json:"source_image"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	CfgScale       float64 `json:"cfg_scale"`
	Mode           string  `json:"mode,omitempty"`
	Duration       string  `json:"duration,omitempty"`
	AspectRatio    string  `json:"aspect_ratio,omitempty"`
}

// TaskState is the normalized result of one status query.
type TaskState struct {
	Status   domain.TaskStatus
	Message  string
	AssetURL string
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		StatusMsg  string `json:"task_status_msg"`
		TaskResult struct {
			Assets []struct {
				URL string `json:"url"`
			} `json:"assets"`
		} `json:"task_result"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if opts.Signer == nil {
		return nil, errors.New("kling: signer is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.klingai.com"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		signer:     opts.Signer,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.signer.HasCredentials()
}

// CreateTask submits one generation task and returns the vendor task id.
// Required fields are checked before any network call; a non-success vendor
// envelope is surfaced as a domain.UpstreamError with the vendor message
// verbatim. The client never retries: a failed submission is the caller's
// decision to handle.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	if strings.TrimSpace(req.SourceImage) == "" {
		return "", fmt.Errorf("%w: source_image is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("kling: encode request: %w", err)
	}
	decoded, err := c.call(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	taskID := strings.TrimSpace(decoded.Data.TaskID)
	if taskID == "" {
		return "", &domain.UpstreamError{Code: decoded.Code, Message: "success envelope without task_id"}
	}
	c.logger.Debug().Str("task_id", taskID).Msg("kling: task created")
	return taskID, nil
}

// QueryTask fetches the current vendor-side state of a task.
func (c *Client) QueryTask(ctx context.Context, taskID string) (TaskState, error) {
	if strings.TrimSpace(taskID) == "" {
		return TaskState{}, fmt.Errorf("%w: task id is required", domain.ErrValidation)
	}
	decoded, err := c.call(ctx, http.MethodGet, c.baseURL+"/jobs/"+url.PathEscape(taskID), nil)
	if err != nil {
		return TaskState{}, err
	}

	state := TaskState{Message: decoded.Data.StatusMsg}
	switch decoded.Data.TaskStatus {
	case "succeed":
		state.Status = domain.TaskSucceeded
		if len(decoded.Data.TaskResult.Assets) > 0 {
			state.AssetURL = decoded.Data.TaskResult.Assets[0].URL
		}
	case "failed":
		state.Status = domain.TaskFailed
		if state.Message == "" {
			state.Message = decoded.Message
		}
	case "processing":
		state.Status = domain.TaskProcessing
	default:
		state.Status = domain.TaskSubmitted
	}
	return state, nil
}

// DownloadAsset fetches a result asset with a small bounded retry. Transient
// fetch failures are retried; persistent failure returns a DownloadError so
// callers can degrade to handing out the remote URL instead.
func (c *Client) DownloadAsset(ctx context.Context, assetURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(assetURL))
	if err != nil || parsed.Scheme == "" {
		return nil, &domain.DownloadError{URL: assetURL, Err: fmt.Errorf("invalid asset url")}
	}

	var data []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("download status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("download status %d", resp.StatusCode))
		}
		data, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, &domain.DownloadError{URL: assetURL, Err: err}
	}
	return data, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, body io.Reader) (*envelope, error) {
	token, err := c.signer.Sign()
	if err != nil {
		return nil, fmt.Errorf("kling: sign request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("kling: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("kling: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kling: read response: %w", err)
	}

	var decoded envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &domain.UpstreamError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("kling: decode response: %w", err)
	}
	if resp.StatusCode >= 300 || decoded.Code != 0 {
		return nil, &domain.UpstreamError{Code: decoded.Code, Message: decoded.Message}
	}
	return &decoded, nil
}
