// Package speech submits audio to the remote recognition service and
// polls the job API until a subtitle document is available.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"video-workflow/internal/domain"
	"video-workflow/internal/srt"
)

const (
	defaultBaseURL     = "https://openspeech.bytedance.com/api/v1/vc"
	defaultHTTPTimeout = 60 * time.Second
	defaultContentType = "audio/mpeg"

	pollInterval = 20 * time.Second
	pollAttempts = 15
)

// ErrMissingCredentials is returned before any network call when the
// speech app id or token is not configured.
var ErrMissingCredentials = errors.New("speech: app id and token are required")

// ErrJobTimeout is returned when the polling budget is exhausted without
// a terminal result. Server-side work is not cancelled.
var ErrJobTimeout = errors.New("speech: transcription job timed out")

// SubmitError reports a non-2xx response to the submission request.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("speech: submit failed with status %d: %s", e.StatusCode, e.Body)
}

// UnexpectedResponseError reports a submit response matching neither the
// synchronous nor the asynchronous contract. Body carries the raw
// payload for diagnostics.
type UnexpectedResponseError struct {
	Body string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("speech: unexpected submit response: %s", e.Body)
}

// JobError reports a transcription job the service marked as failed.
type JobError struct {
	Message string
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return "speech: transcription job failed"
	}
	return "speech: transcription job failed: " + e.Message
}

// Utterance is one recognized segment with millisecond offsets.
type Utterance struct {
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Text      string `json:"text"`
}

// Options are the recognition parameters passed as query parameters.
// OnPoll, when set, is invoked before each polling attempt.
type Options struct {
	Language     string
	UseITN       bool
	UsePunc      bool
	MaxLines     int
	WordsPerLine int
	OnPoll       func(attempt int)
}

// OptionsFromConfig maps persisted settings to recognition options.
func OptionsFromConfig(cfg domain.AppConfig) Options {
	return Options{
		Language:     cfg.SpeechLanguage,
		UseITN:       cfg.SpeechUseITN,
		UsePunc:      cfg.SpeechUsePunc,
		MaxLines:     cfg.SpeechMaxLines,
		WordsPerLine: cfg.SpeechWordsPerLine,
	}
}

// Config describes the transcription client configuration.
type Config struct {
	AppID      string
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the recognition submit/query endpoints.
type Client struct {
	appID  string
	token  string
	base   *url.URL
	http   *http.Client
	logger *slog.Logger

	interval time.Duration
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.Token)
	if appID == "" || token == "" {
		return nil, ErrMissingCredentials
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("speech: parse base url: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		appID:    appID,
		token:    token,
		base:     baseURL,
		http:     client,
		logger:   logger,
		interval: pollInterval,
		attempts: pollAttempts,
		sleep:    sleepContext,
	}, nil
}

// submitOutcome is the decoded submit response: either a synchronous
// result or an accepted asynchronous job.
type submitOutcome struct {
	utterances []Utterance
	jobID      string
}

type submitResponse struct {
	Code       *int        `json:"code"`
	ID         string      `json:"id"`
	TaskID     string      `json:"task_id"`
	Utterances []Utterance `json:"utterances"`
}

type queryResponse struct {
	Code       *int        `json:"code"`
	Utterances []Utterance `json:"utterances"`
	Data       *queryData  `json:"data"`
}

type queryData struct {
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	Utterances []Utterance `json:"utterances"`
}

// Transcribe submits one audio payload and returns the built subtitle
// document, polling the query endpoint when the service answers with a
// job id instead of an immediate result.
func (c *Client) Transcribe(ctx context.Context, audio domain.FileSelection, opts Options) (string, error) {
	outcome, err := c.submit(ctx, audio, opts)
	if err != nil {
		return "", err
	}

	if outcome.utterances != nil {
		c.logger.Info("speech: synchronous result", "utterances", len(outcome.utterances))
		return srt.BuildDocument(toCues(outcome.utterances))
	}

	c.logger.Info("speech: job accepted", "jobID", outcome.jobID)
	return c.awaitResult(ctx, outcome.jobID, opts.OnPoll)
}

// submit posts the raw audio bytes and decodes the response variant.
func (c *Client) submit(ctx context.Context, audio domain.FileSelection, opts Options) (submitOutcome, error) {
	submitURL := c.endpoint("submit", func(q url.Values) {
		q.Set("language", opts.Language)
		q.Set("use_itn", strconv.FormatBool(opts.UseITN))
		q.Set("use_punc", strconv.FormatBool(opts.UsePunc))
		q.Set("max_lines", strconv.Itoa(opts.MaxLines))
		q.Set("words_per_line", strconv.Itoa(opts.WordsPerLine))
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(audio.Data))
	if err != nil {
		return submitOutcome{}, fmt.Errorf("speech: build submit request: %w", err)
	}
	contentType := audio.MIMEType
	if contentType == "" {
		contentType = defaultContentType
	}
	req.Header.Set("Authorization", "Bearer; "+c.token)
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("speech: submitting audio", "name", audio.Name, "bytes", len(audio.Data), "contentType", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return submitOutcome{}, fmt.Errorf("speech: submit request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return submitOutcome{}, fmt.Errorf("speech: read submit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return submitOutcome{}, &SubmitError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return submitOutcome{}, &UnexpectedResponseError{Body: strings.TrimSpace(string(body))}
	}

	if decoded.Utterances != nil {
		return submitOutcome{utterances: decoded.Utterances}, nil
	}
	if decoded.Code != nil && *decoded.Code == 0 {
		if decoded.ID != "" {
			return submitOutcome{jobID: decoded.ID}, nil
		}
		if decoded.TaskID != "" {
			return submitOutcome{jobID: decoded.TaskID}, nil
		}
	}

	return submitOutcome{}, &UnexpectedResponseError{Body: strings.TrimSpace(string(body))}
}

// awaitResult polls the query endpoint at a fixed interval until a
// terminal result, a reported failure, or attempt exhaustion. Transport
// errors on a query attempt are retried unless the budget is spent.
func (c *Client) awaitResult(ctx context.Context, jobID string, onPoll func(attempt int)) (string, error) {
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if onPoll != nil {
			onPoll(attempt)
		}
		document, done, err := c.query(ctx, jobID)
		if err != nil {
			var jobErr *JobError
			if errors.As(err, &jobErr) {
				return "", err
			}
			if attempt == c.attempts {
				return "", fmt.Errorf("speech: final query attempt %d: %w", attempt, err)
			}
			c.logger.Warn("speech: query attempt failed", "jobID", jobID, "attempt", attempt, "error", err)
		} else if done {
			c.logger.Info("speech: job finished", "jobID", jobID, "attempt", attempt)
			return document, nil
		} else {
			c.logger.Debug("speech: job still processing", "jobID", jobID, "attempt", attempt)
		}

		if attempt == c.attempts {
			break
		}
		if err := c.sleep(ctx, c.interval); err != nil {
			return "", err
		}
	}

	return "", ErrJobTimeout
}

// query issues one status request. done reports a terminal success; a
// *JobError marks a terminal failure; any other error is transient.
func (c *Client) query(ctx context.Context, jobID string) (string, bool, error) {
	queryURL := c.endpoint("query", func(q url.Values) {
		q.Set("id", jobID)
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer; "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("query request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("read query response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", false, fmt.Errorf("query status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded queryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", false, fmt.Errorf("decode query response: %w", err)
	}
	if decoded.Code == nil || *decoded.Code != 0 {
		return "", false, nil
	}

	if decoded.Utterances != nil {
		document, err := srt.BuildDocument(toCues(decoded.Utterances))
		return document, err == nil, err
	}

	if decoded.Data != nil {
		switch decoded.Data.Status {
		case "success", "completed":
			if decoded.Data.Utterances != nil {
				document, err := srt.BuildDocument(toCues(decoded.Data.Utterances))
				return document, err == nil, err
			}
		case "failed":
			return "", false, &JobError{Message: decoded.Data.Message}
		}
	}

	return "", false, nil
}

// endpoint builds {base}/{path}?appid=...&extra params.
func (c *Client) endpoint(path string, extend func(url.Values)) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path

	q := u.Query()
	q.Set("appid", c.appID)
	if extend != nil {
		extend(q)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// toCues converts service utterances to subtitle cues in input order.
func toCues(utterances []Utterance) []srt.Cue {
	cues := make([]srt.Cue, 0, len(utterances))
	for _, u := range utterances {
		cues = append(cues, srt.Cue{StartMs: u.StartTime, EndMs: u.EndTime, Text: u.Text})
	}
	return cues
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewClientForTests creates a client with injectable polling behavior.
func NewClientForTests(cfg Config, interval time.Duration, attempts int) (*Client, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}
	client.interval = interval
	client.attempts = attempts
	return client, nil
}
