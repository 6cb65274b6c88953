package config

import (
	"os"
	"strconv"
	"strings"

	"video-workflow/internal/domain"
)

// DefaultSpeechBaseURL is the recognition service endpoint prefix.
const DefaultSpeechBaseURL = "https://openspeech.bytedance.com/api/v1/vc"

// DefaultConfig returns baseline configuration for first launch.
func DefaultConfig() domain.AppConfig {
	return domain.AppConfig{
		SpeechBaseURL:      DefaultSpeechBaseURL,
		SpeechLanguage:     "zh-CN",
		SpeechUseITN:       true,
		SpeechUsePunc:      true,
		SpeechMaxLines:     1,
		SpeechWordsPerLine: 15,
		RenderBaseURL:      "http://localhost:9999",
	}
}

// Normalize trims user inputs and restores defaults for empty fields.
func Normalize(cfg domain.AppConfig) domain.AppConfig {
	defaults := DefaultConfig()

	cfg.SpeechAppID = strings.TrimSpace(cfg.SpeechAppID)
	cfg.SpeechToken = strings.TrimSpace(cfg.SpeechToken)
	cfg.SpeechBaseURL = strings.TrimRight(strings.TrimSpace(cfg.SpeechBaseURL), "/")
	cfg.SpeechLanguage = strings.TrimSpace(cfg.SpeechLanguage)
	cfg.RenderBaseURL = strings.TrimRight(strings.TrimSpace(cfg.RenderBaseURL), "/")

	if cfg.SpeechBaseURL == "" {
		cfg.SpeechBaseURL = defaults.SpeechBaseURL
	}
	if cfg.SpeechLanguage == "" {
		cfg.SpeechLanguage = defaults.SpeechLanguage
	}
	if cfg.SpeechMaxLines <= 0 {
		cfg.SpeechMaxLines = defaults.SpeechMaxLines
	}
	if cfg.SpeechWordsPerLine <= 0 {
		cfg.SpeechWordsPerLine = defaults.SpeechWordsPerLine
	}
	if cfg.RenderBaseURL == "" {
		cfg.RenderBaseURL = defaults.RenderBaseURL
	}

	return cfg
}

// ApplyEnvOverrides layers VIDEO_WORKFLOW_* environment variables over cfg.
// The headless CLI loads a .env file first, so credentials never need to
// land in the config file on shared machines.
func ApplyEnvOverrides(cfg domain.AppConfig) domain.AppConfig {
	if v, ok := os.LookupEnv("VIDEO_WORKFLOW_SPEECH_APP_ID"); ok {
		cfg.SpeechAppID = v
	}
	if v, ok := os.LookupEnv("VIDEO_WORKFLOW_SPEECH_TOKEN"); ok {
		cfg.SpeechToken = v
	}
	if v, ok := os.LookupEnv("VIDEO_WORKFLOW_SPEECH_BASE_URL"); ok {
		cfg.SpeechBaseURL = v
	}
	if v, ok := os.LookupEnv("VIDEO_WORKFLOW_SPEECH_LANGUAGE"); ok {
		cfg.SpeechLanguage = v
	}
	if v, ok := os.LookupEnv("VIDEO_WORKFLOW_RENDER_BASE_URL"); ok {
		cfg.RenderBaseURL = v
	}
	if v, ok := os.LookupEnv("VIDEO_WORKFLOW_SPEECH_MAX_LINES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SpeechMaxLines = n
		}
	}
	if v, ok := os.LookupEnv("VIDEO_WORKFLOW_SPEECH_WORDS_PER_LINE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SpeechWordsPerLine = n
		}
	}

	return Normalize(cfg)
}
