// Package render submits accumulated workflow inputs to the remote
// video render service.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"video-workflow/internal/domain"
)

// Rendering is synchronous end-to-end on the service side, so the
// client waits out the whole composite in one request.
const defaultHTTPTimeout = 10 * time.Minute

// RequestError reports a non-2xx response from the render service.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("render: request failed with status %d: %s", e.StatusCode, e.Body)
}

// JobError reports a render the service completed but marked unsuccessful.
type JobError struct {
	Message string
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return "render: job failed"
	}
	return "render: job failed: " + e.Message
}

// Client posts generate requests to the render service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a render client for the given base URL.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("render: base url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{baseURL: base, http: httpClient, logger: logger}, nil
}

// generateRequest carries local filesystem paths for images and audio:
// the render service shares a path namespace with this process.
type generateRequest struct {
	Images []string `json:"images"`
	MP3    string   `json:"mp3"`
	SRT    string   `json:"srt"`
}

type generateResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Output      string `json:"output"`
	DownloadURL string `json:"download_url"`
}

// Render posts one generate request and parses the result. Exactly one
// attempt per call; the caller decides whether to re-trigger.
func (c *Client) Render(ctx context.Context, audioPath string, imagePaths []string, subtitles string) (domain.RenderResult, error) {
	payload, err := json.Marshal(generateRequest{
		Images: imagePaths,
		MP3:    audioPath,
		SRT:    subtitles,
	})
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("render: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("render: submitting generate request", "images", len(imagePaths), "audio", audioPath)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("render: generate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("render: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.RenderResult{}, &RequestError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.RenderResult{}, fmt.Errorf("render: decode response: %w", err)
	}
	if !decoded.Success {
		return domain.RenderResult{}, &JobError{Message: decoded.Message}
	}

	c.logger.Info("render: job finished", "output", decoded.Output)
	return domain.RenderResult{
		DownloadURL:    decoded.DownloadURL,
		OutputFilename: decoded.Output,
	}, nil
}
