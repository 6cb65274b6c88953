package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/mimetype"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"video-workflow/internal/config"
	"video-workflow/internal/diagnostics"
	"video-workflow/internal/domain"
	"video-workflow/internal/jobs"
	"video-workflow/internal/render"
	"video-workflow/internal/speech"
	"video-workflow/internal/workflow"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.mp3;*.wav;*.aac;*.m4a;*.ogg",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var imageDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Images",
		Pattern:     "*.jpg;*.jpeg;*.png;*.gif;*.bmp;*.webp",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var subtitleDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Subtitles",
		Pattern:     "*.srt",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the workflow controller, the two remote
// service clients, and UI runtime callbacks.
type App struct {
	Store    config.Store
	Workflow *workflow.Controller
	Checks   domain.CheckReport

	assets  fs.FS
	checker *diagnostics.Checker
	events  *jobs.EventBus
	logger  *slog.Logger

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted configuration and readiness checks.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	configPath, err := config.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	store := config.NewJSONStore(configPath)
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	checker := diagnostics.NewChecker(configPath)

	return &App{
		Store:    store,
		Workflow: workflow.NewController(),
		Checks:   checker.Run(cfg),
		assets:   assets,
		checker:  checker,
		events:   jobs.NewEventBus(1000),
		logger:   slog.Default(),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Video Workflow",
		Width:       1600,
		Height:      1000,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context for dialogs and push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetChecks returns the latest cached readiness report.
func (a *App) GetChecks() domain.CheckReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Checks
}

// GetConfig loads and returns the latest persisted configuration.
func (a *App) GetConfig() (domain.AppConfig, error) {
	cfg, err := a.Store.Load()
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// SaveConfig normalizes and persists configuration, then refreshes checks.
func (a *App) SaveConfig(cfg domain.AppConfig) (domain.AppConfig, error) {
	normalized := config.Normalize(cfg)
	if err := a.Store.Save(normalized); err != nil {
		return domain.AppConfig{}, fmt.Errorf("save config: %w", err)
	}

	a.mu.Lock()
	if a.checker != nil {
		a.Checks = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickAudioFile opens a native dialog and loads the chosen audio file.
// A cancelled dialog returns a zero selection.
func (a *App) PickAudioFile() (domain.FileSelection, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return domain.FileSelection{}, err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return domain.FileSelection{}, err
	}
	if strings.TrimSpace(path) == "" {
		return domain.FileSelection{}, nil
	}

	return readFileSelection(path)
}

// PickImageFiles opens a native multi-select dialog and loads the chosen
// images in selection order.
func (a *App) PickImageFiles() ([]domain.FileSelection, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select images",
		Filters: imageDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	selections := make([]domain.FileSelection, 0, len(paths))
	for _, path := range paths {
		selection, err := readFileSelection(path)
		if err != nil {
			return nil, err
		}
		selections = append(selections, selection)
	}
	return selections, nil
}

// PickSubtitleFile opens a native dialog for an existing subtitle file.
func (a *App) PickSubtitleFile() (domain.FileSelection, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return domain.FileSelection{}, err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select subtitle file",
		Filters: subtitleDialogFilter,
	})
	if err != nil {
		return domain.FileSelection{}, err
	}
	if strings.TrimSpace(path) == "" {
		return domain.FileSelection{}, nil
	}

	return readFileSelection(path)
}

// SelectAudio records the audio selection. Drag-and-drop delivers the
// same shape directly from the frontend.
func (a *App) SelectAudio(audio domain.FileSelection) error {
	return a.Workflow.SelectAudio(audio)
}

// AddImages appends image selections in order.
func (a *App) AddImages(images []domain.FileSelection) error {
	return a.Workflow.AddImages(images)
}

// RemoveImage deletes the image at the given position.
func (a *App) RemoveImage(index int) error {
	return a.Workflow.RemoveImage(index)
}

// MoveImage reorders an image; the frontend calls this on drag-and-drop.
func (a *App) MoveImage(from, to int) error {
	return a.Workflow.MoveImage(from, to)
}

// ChooseSubtitleMode selects between generating and uploading subtitles.
func (a *App) ChooseSubtitleMode(mode string) error {
	return a.Workflow.ChooseSubtitleMode(domain.SubtitleMode(mode))
}

// SelectSubtitleFile records the uploaded subtitle file.
func (a *App) SelectSubtitleFile(file domain.FileSelection) error {
	return a.Workflow.SelectSubtitleFile(file)
}

// Advance moves the wizard to the next step.
func (a *App) Advance() (workflow.State, error) {
	if err := a.Workflow.Advance(); err != nil {
		return workflow.State{}, err
	}
	return a.Workflow.Snapshot(), nil
}

// Retreat moves the wizard back one step.
func (a *App) Retreat() workflow.State {
	a.Workflow.Retreat()
	return a.Workflow.Snapshot()
}

// ResetWorkflow clears all selections and artifacts.
func (a *App) ResetWorkflow() workflow.State {
	a.Workflow.Reset()
	return a.Workflow.Snapshot()
}

// WorkflowState returns the current wizard state snapshot.
func (a *App) WorkflowState() workflow.State {
	return a.Workflow.Snapshot()
}

// StartSubtitleGeneration runs transcription asynchronously and reports
// progress through the event bus. Re-entrant triggers are rejected by
// the controller's busy flag.
func (a *App) StartSubtitleGeneration() (string, error) {
	cfg, err := a.Store.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}

	runID := uuid.NewString()
	client, err := speech.New(speech.Config{
		AppID:   cfg.SpeechAppID,
		Token:   cfg.SpeechToken,
		BaseURL: cfg.SpeechBaseURL,
		Logger:  a.logger,
	})
	if err != nil {
		return "", err
	}

	opts := speech.OptionsFromConfig(cfg)
	opts.OnPoll = func(attempt int) {
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeProgress,
			Step:    domain.StepGeneratingSubtitles,
			Message: "Waiting for transcription result",
			Attempt: attempt,
		})
	}

	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Step:    domain.StepGeneratingSubtitles,
		Message: "Transcription started",
	})

	go a.runSubtitleGeneration(runID, speechTranscriber{client: client, opts: opts})
	return runID, nil
}

// runSubtitleGeneration executes the controller operation and maps its
// outcome to events, auto-advancing on success as the wizard does.
func (a *App) runSubtitleGeneration(runID string, transcriber workflow.Transcriber) {
	if err := a.Workflow.GenerateSubtitles(context.Background(), transcriber); err != nil {
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Step:    domain.StepGeneratingSubtitles,
			Message: err.Error(),
		})
		return
	}

	if err := a.Workflow.Advance(); err != nil {
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Step:    domain.StepGeneratingSubtitles,
			Message: err.Error(),
		})
		return
	}

	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeResult,
		Step:    domain.StepGeneratingVideo,
		Message: "Subtitles ready",
	})
}

// StartVideoGeneration runs the render request asynchronously.
func (a *App) StartVideoGeneration() (string, error) {
	cfg, err := a.Store.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}

	runID := uuid.NewString()
	client, err := render.New(cfg.RenderBaseURL, nil, a.logger)
	if err != nil {
		return "", err
	}

	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Step:    domain.StepGeneratingVideo,
		Message: "Video generation started",
	})

	go a.runVideoGeneration(runID, client)
	return runID, nil
}

// runVideoGeneration executes the render and maps outcomes to events.
func (a *App) runVideoGeneration(runID string, renderer workflow.Renderer) {
	result, err := a.Workflow.GenerateVideo(context.Background(), renderer)
	if err != nil {
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Step:    domain.StepGeneratingVideo,
			Message: err.Error(),
		})
		return
	}

	a.publishEvent(jobs.Event{
		RunID:          runID,
		Type:           jobs.EventTypeResult,
		Step:           domain.StepGeneratingVideo,
		Message:        "Video ready",
		DownloadURL:    result.DownloadURL,
		OutputFilename: result.OutputFilename,
	})
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// OpenDownloadURL opens the rendered video link in the system browser.
func (a *App) OpenDownloadURL(downloadURL string) error {
	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}
	if strings.TrimSpace(downloadURL) == "" {
		return fmt.Errorf("download url is empty")
	}

	wailsruntime.BrowserOpenURL(ctx, downloadURL)
	return nil
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "workflow:event", published)
	}
}

// runtimeContext returns the current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// speechTranscriber adapts the speech client plus a config snapshot to
// the controller's Transcriber interface.
type speechTranscriber struct {
	client *speech.Client
	opts   speech.Options
}

// Transcribe runs one transcription with the captured options.
func (t speechTranscriber) Transcribe(ctx context.Context, audio domain.FileSelection) (string, error) {
	return t.client.Transcribe(ctx, audio, t.opts)
}

// readFileSelection loads a picked file and sniffs its MIME type.
func readFileSelection(path string) (domain.FileSelection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FileSelection{}, fmt.Errorf("read selected file: %w", err)
	}

	return domain.FileSelection{
		Name:     filepath.Base(path),
		Path:     path,
		Data:     data,
		MIMEType: mimetype.Detect(data).String(),
	}, nil
}
