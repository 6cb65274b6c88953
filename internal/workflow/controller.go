// Package workflow sequences the three wizard steps: file selection,
// subtitle acquisition, and video generation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"video-workflow/internal/domain"
)

// ErrNotSelecting is returned by step-1 mutators after the wizard has
// moved past the selection step.
var ErrNotSelecting = errors.New("workflow: selection is only editable in step 1")

// ErrNotReady is returned when Advance is attempted before the current
// step's readiness gate is satisfied.
var ErrNotReady = errors.New("workflow: current step is not complete")

// ErrBusy is returned when a generation operation is re-triggered while
// a previous one is still in flight.
var ErrBusy = errors.New("workflow: operation already in progress")

// ErrInvalidMode is returned for an unknown subtitle mode.
var ErrInvalidMode = errors.New("workflow: unknown subtitle mode")

// ErrImageIndex is returned for out-of-range image positions.
var ErrImageIndex = errors.New("workflow: image index out of range")

// Transcriber produces a subtitle document from one audio selection.
type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.FileSelection) (string, error)
}

// Renderer submits accumulated inputs to the render service.
type Renderer interface {
	Render(ctx context.Context, audioPath string, imagePaths []string, subtitles string) (domain.RenderResult, error)
}

// State is the accumulated wizard state. It is owned by one Controller
// and mutated only through its methods.
type State struct {
	Audio        *domain.FileSelection  `json:"audio"`
	Images       []domain.FileSelection `json:"images"`
	SubtitleMode domain.SubtitleMode    `json:"subtitleMode"`
	SubtitleFile *domain.FileSelection  `json:"subtitleFile"`
	Subtitles    string                 `json:"subtitles"`
	Video        *domain.RenderResult   `json:"video"`

	IsTranscribing bool `json:"isTranscribing"`
	IsRendering    bool `json:"isRendering"`

	CurrentStep int `json:"currentStep"`
}

// initialState is the all-empty state the wizard starts from and
// returns to on Reset.
func initialState() State {
	return State{CurrentStep: domain.StepSelecting}
}

// Controller owns the wizard state under single-writer discipline.
type Controller struct {
	mu    sync.Mutex
	state State
}

// NewController creates a controller at the selection step.
func NewController() *Controller {
	return &Controller{state: initialState()}
}

// Snapshot returns a copy of the current state for the UI.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyState()
}

// copyState clones the state. File payload bytes are shared; selections
// are immutable once made.
func (c *Controller) copyState() State {
	snapshot := c.state
	if c.state.Audio != nil {
		audio := *c.state.Audio
		snapshot.Audio = &audio
	}
	if c.state.SubtitleFile != nil {
		file := *c.state.SubtitleFile
		snapshot.SubtitleFile = &file
	}
	if c.state.Video != nil {
		video := *c.state.Video
		snapshot.Video = &video
	}
	snapshot.Images = append([]domain.FileSelection(nil), c.state.Images...)
	return snapshot
}

// SelectAudio records the single audio selection for this run.
func (c *Controller) SelectAudio(audio domain.FileSelection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep != domain.StepSelecting {
		return ErrNotSelecting
	}
	c.state.Audio = &audio
	return nil
}

// AddImages appends images in selection order; order is the frame order
// of the final video.
func (c *Controller) AddImages(images []domain.FileSelection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep != domain.StepSelecting {
		return ErrNotSelecting
	}
	c.state.Images = append(c.state.Images, images...)
	return nil
}

// RemoveImage deletes the image at position index.
func (c *Controller) RemoveImage(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep != domain.StepSelecting {
		return ErrNotSelecting
	}
	if index < 0 || index >= len(c.state.Images) {
		return fmt.Errorf("%w: %d", ErrImageIndex, index)
	}
	c.state.Images = append(c.state.Images[:index], c.state.Images[index+1:]...)
	return nil
}

// MoveImage reorders one image from position from to position to.
func (c *Controller) MoveImage(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep != domain.StepSelecting {
		return ErrNotSelecting
	}
	if from < 0 || from >= len(c.state.Images) {
		return fmt.Errorf("%w: %d", ErrImageIndex, from)
	}
	if to < 0 || to >= len(c.state.Images) {
		return fmt.Errorf("%w: %d", ErrImageIndex, to)
	}
	if from == to {
		return nil
	}

	moved := c.state.Images[from]
	rest := append(c.state.Images[:from], c.state.Images[from+1:]...)
	rest = append(rest, domain.FileSelection{})
	copy(rest[to+1:], rest[to:])
	rest[to] = moved
	c.state.Images = rest
	return nil
}

// ChooseSubtitleMode selects generation or upload. Switching the mode
// discards any previously uploaded file.
func (c *Controller) ChooseSubtitleMode(mode domain.SubtitleMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep != domain.StepSelecting {
		return ErrNotSelecting
	}
	if mode != domain.SubtitleModeGenerate && mode != domain.SubtitleModeUpload {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	c.state.SubtitleMode = mode
	c.state.SubtitleFile = nil
	return nil
}

// SelectSubtitleFile records the uploaded subtitle file for upload mode.
func (c *Controller) SelectSubtitleFile(file domain.FileSelection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep != domain.StepSelecting {
		return ErrNotSelecting
	}
	if c.state.SubtitleMode != domain.SubtitleModeUpload {
		return fmt.Errorf("%w: subtitle file requires upload mode", ErrInvalidMode)
	}
	c.state.SubtitleFile = &file
	return nil
}

// readyToLeaveSelection applies the step-1 gate: audio, at least one
// image, a chosen mode, and in upload mode a chosen file.
func (c *Controller) readyToLeaveSelection() bool {
	if c.state.Audio == nil || len(c.state.Images) == 0 {
		return false
	}
	switch c.state.SubtitleMode {
	case domain.SubtitleModeGenerate:
		return true
	case domain.SubtitleModeUpload:
		return c.state.SubtitleFile != nil
	default:
		return false
	}
}

// Advance moves to the next step when the current one is complete.
// Upload mode decodes the uploaded file to text and skips straight to
// video generation.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.CurrentStep {
	case domain.StepSelecting:
		if !c.readyToLeaveSelection() {
			return ErrNotReady
		}
		if c.state.SubtitleMode == domain.SubtitleModeUpload {
			c.state.Subtitles = string(c.state.SubtitleFile.Data)
			c.state.CurrentStep = domain.StepGeneratingVideo
			return nil
		}
		c.state.CurrentStep = domain.StepGeneratingSubtitles
		return nil

	case domain.StepGeneratingSubtitles:
		if c.state.Subtitles == "" {
			return ErrNotReady
		}
		c.state.CurrentStep = domain.StepGeneratingVideo
		return nil

	default:
		// Final step; nothing to advance to.
		return nil
	}
}

// Retreat moves back one step. Downstream artifacts are kept until Reset.
func (c *Controller) Retreat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep > domain.StepSelecting {
		c.state.CurrentStep--
	}
}

// Reset restores the initial all-empty state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = initialState()
}

// GenerateSubtitles runs the transcriber for the selected audio and
// stores the produced document. A failed run leaves the document unset.
func (c *Controller) GenerateSubtitles(ctx context.Context, transcriber Transcriber) error {
	c.mu.Lock()
	if c.state.CurrentStep != domain.StepGeneratingSubtitles || c.state.SubtitleMode != domain.SubtitleModeGenerate {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.state.Audio == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.state.IsTranscribing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state.IsTranscribing = true
	audio := *c.state.Audio
	c.mu.Unlock()

	document, err := transcriber.Transcribe(ctx, audio)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsTranscribing = false
	if err != nil {
		return err
	}
	c.state.Subtitles = document
	return nil
}

// GenerateVideo runs the renderer with the accumulated inputs and
// stores the result. A failed run leaves the result unset.
func (c *Controller) GenerateVideo(ctx context.Context, renderer Renderer) (domain.RenderResult, error) {
	c.mu.Lock()
	if c.state.CurrentStep != domain.StepGeneratingVideo || c.state.Audio == nil || len(c.state.Images) == 0 {
		c.mu.Unlock()
		return domain.RenderResult{}, ErrNotReady
	}
	if c.state.Subtitles == "" {
		c.mu.Unlock()
		return domain.RenderResult{}, ErrNotReady
	}
	if c.state.IsRendering {
		c.mu.Unlock()
		return domain.RenderResult{}, ErrBusy
	}
	c.state.IsRendering = true
	audioPath := c.state.Audio.Path
	imagePaths := make([]string, 0, len(c.state.Images))
	for _, image := range c.state.Images {
		imagePaths = append(imagePaths, image.Path)
	}
	subtitles := c.state.Subtitles
	c.mu.Unlock()

	result, err := renderer.Render(ctx, audioPath, imagePaths, subtitles)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsRendering = false
	if err != nil {
		return domain.RenderResult{}, err
	}
	c.state.Video = &result
	return result, nil
}
