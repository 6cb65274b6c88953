// Package diagnostics verifies the app is configured well enough to
// reach both remote services before a run starts.
package diagnostics

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-workflow/internal/domain"
)

// Checker validates credentials, endpoints, and the config location.
type Checker struct {
	configPath string
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(configPath string) *Checker {
	return &Checker{
		configPath: configPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all readiness checks and returns a combined report.
func (c *Checker) Run(cfg domain.AppConfig) domain.CheckReport {
	items := []domain.CheckItem{
		c.checkSpeechCredentials(cfg),
		c.checkServiceURL("speech_endpoint", "Speech endpoint", cfg.SpeechBaseURL),
		c.checkServiceURL("render_endpoint", "Render endpoint", cfg.RenderBaseURL),
		c.checkConfigDir(),
	}

	healthy := true
	for _, item := range items {
		if item.Status == domain.CheckStatusFail {
			healthy = false
			break
		}
	}

	return domain.CheckReport{
		GeneratedAt: time.Now().UTC(),
		Healthy:     healthy,
		Items:       items,
	}
}

// checkSpeechCredentials requires both app id and token before any
// transcription call can be made.
func (c *Checker) checkSpeechCredentials(cfg domain.AppConfig) domain.CheckItem {
	item := domain.CheckItem{
		ID:    "speech_credentials",
		Label: "Speech credentials",
	}

	switch {
	case strings.TrimSpace(cfg.SpeechAppID) == "" && strings.TrimSpace(cfg.SpeechToken) == "":
		item.Status = domain.CheckStatusFail
		item.Detail = "Speech app id and token are not configured."
		item.Hint = "Enter the recognition service credentials in settings before generating subtitles."
	case strings.TrimSpace(cfg.SpeechAppID) == "":
		item.Status = domain.CheckStatusFail
		item.Detail = "Speech app id is missing."
		item.Hint = "Enter the app id that matches the configured token."
	case strings.TrimSpace(cfg.SpeechToken) == "":
		item.Status = domain.CheckStatusFail
		item.Detail = "Speech token is missing."
		item.Hint = "Enter the access token for the recognition service."
	default:
		item.Status = domain.CheckStatusPass
		item.Detail = "Credentials are configured."
	}

	return item
}

// checkServiceURL validates that an endpoint is an absolute http(s) URL.
func (c *Checker) checkServiceURL(id, label, raw string) domain.CheckItem {
	item := domain.CheckItem{ID: id, Label: label}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		item.Status = domain.CheckStatusFail
		item.Detail = fmt.Sprintf("%s URL is empty.", label)
		item.Hint = "Set the service base URL in settings."
		return item
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		item.Status = domain.CheckStatusFail
		item.Detail = fmt.Sprintf("Not an absolute http(s) URL: %s", trimmed)
		item.Hint = "Use a full URL such as http://localhost:9999."
		return item
	}

	item.Status = domain.CheckStatusPass
	item.Detail = fmt.Sprintf("Endpoint: %s", trimmed)
	return item
}

// checkConfigDir validates the config directory exists and is writable.
func (c *Checker) checkConfigDir() domain.CheckItem {
	item := domain.CheckItem{
		ID:    "config_dir",
		Label: "Config directory",
	}

	dir := filepath.Dir(c.configPath)
	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.CheckStatusFail
		item.Detail = fmt.Sprintf("Cannot create config directory: %s", dir)
		item.Hint = "Check filesystem permissions for your home directory."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.CheckStatusFail
		item.Detail = fmt.Sprintf("Config directory is not writable: %s", dir)
		item.Hint = "Settings cannot be saved until this directory is writable."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.CheckStatusPass
	item.Detail = fmt.Sprintf("Writable: %s", dir)
	return item
}

// NewCheckerForTests creates a checker with injectable OS dependencies.
func NewCheckerForTests(
	configPath string,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		configPath: configPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
