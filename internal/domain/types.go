package domain

// SubtitleMode selects how the subtitle track is obtained.
type SubtitleMode string

const (
	SubtitleModeNone     SubtitleMode = ""
	SubtitleModeGenerate SubtitleMode = "generate"
	SubtitleModeUpload   SubtitleMode = "upload"
)

// Workflow step numbers shown in the wizard.
const (
	StepSelecting           = 1
	StepGeneratingSubtitles = 2
	StepGeneratingVideo     = 3
)

// FileSelection is one file picked through a dialog or drag-and-drop.
type FileSelection struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// RenderResult is the outcome of one successful render call.
type RenderResult struct {
	DownloadURL    string `json:"downloadUrl"`
	OutputFilename string `json:"outputFilename"`
}

// AppConfig holds credentials and endpoints for the two remote services.
type AppConfig struct {
	SpeechAppID        string `json:"speechAppId"`
	SpeechToken        string `json:"speechToken"`
	SpeechBaseURL      string `json:"speechBaseUrl"`
	SpeechLanguage     string `json:"speechLanguage"`
	SpeechUseITN       bool   `json:"speechUseItn"`
	SpeechUsePunc      bool   `json:"speechUsePunc"`
	SpeechMaxLines     int    `json:"speechMaxLines"`
	SpeechWordsPerLine int    `json:"speechWordsPerLine"`
	RenderBaseURL      string `json:"renderBaseUrl"`
}

// HasSpeechCredentials reports whether a transcription call can be made.
func (c AppConfig) HasSpeechCredentials() bool {
	return c.SpeechAppID != "" && c.SpeechToken != ""
}
