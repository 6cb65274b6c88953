package workflow

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"video-workflow/internal/domain"
)

var (
	testAudio = domain.FileSelection{Name: "voice.mp3", Path: "/in/voice.mp3", Data: []byte("audio")}
	imageA    = domain.FileSelection{Name: "a.png", Path: "/in/a.png"}
	imageB    = domain.FileSelection{Name: "b.png", Path: "/in/b.png"}
	imageC    = domain.FileSelection{Name: "c.png", Path: "/in/c.png"}
)

// fakeTranscriber returns a canned document or error.
type fakeTranscriber struct {
	doc     string
	err     error
	calls   int
	release chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio domain.FileSelection) (string, error) {
	f.calls++
	if f.release != nil {
		<-f.release
	}
	return f.doc, f.err
}

// fakeRenderer records inputs and returns a canned result or error.
type fakeRenderer struct {
	result     domain.RenderResult
	err        error
	audioPath  string
	imagePaths []string
	subtitles  string
}

func (f *fakeRenderer) Render(ctx context.Context, audioPath string, imagePaths []string, subtitles string) (domain.RenderResult, error) {
	f.audioPath = audioPath
	f.imagePaths = append([]string(nil), imagePaths...)
	f.subtitles = subtitles
	if f.err != nil {
		return domain.RenderResult{}, f.err
	}
	return f.result, nil
}

// selectGenerateInputs fills step 1 for generate mode.
func selectGenerateInputs(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.SelectAudio(testAudio); err != nil {
		t.Fatalf("SelectAudio: %v", err)
	}
	if err := c.AddImages([]domain.FileSelection{imageA}); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := c.ChooseSubtitleMode(domain.SubtitleModeGenerate); err != nil {
		t.Fatalf("ChooseSubtitleMode: %v", err)
	}
}

// TestAdvanceRejectedUntilSelectionComplete checks the step-1 gate
// requires audio, at least one image, and a resolved subtitle source.
func TestAdvanceRejectedUntilSelectionComplete(t *testing.T) {
	c := NewController()

	if err := c.Advance(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("empty advance error = %v, want ErrNotReady", err)
	}

	if err := c.SelectAudio(testAudio); err != nil {
		t.Fatalf("SelectAudio: %v", err)
	}
	if err := c.Advance(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("audio-only advance error = %v, want ErrNotReady", err)
	}

	if err := c.AddImages([]domain.FileSelection{imageA}); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := c.Advance(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("no-mode advance error = %v, want ErrNotReady", err)
	}

	if err := c.ChooseSubtitleMode(domain.SubtitleModeUpload); err != nil {
		t.Fatalf("ChooseSubtitleMode: %v", err)
	}
	if err := c.Advance(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("upload without file advance error = %v, want ErrNotReady", err)
	}
}

// TestAdvanceGenerateModeEntersSubtitleStep checks generate mode routes
// through step 2.
func TestAdvanceGenerateModeEntersSubtitleStep(t *testing.T) {
	c := NewController()
	selectGenerateInputs(t, c)

	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := c.Snapshot().CurrentStep; got != domain.StepGeneratingSubtitles {
		t.Fatalf("step = %d, want %d", got, domain.StepGeneratingSubtitles)
	}

	// Step 2 is incomplete until a document exists.
	if err := c.Advance(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("advance without subtitles error = %v, want ErrNotReady", err)
	}
}

// TestUploadModeSkipsSubtitleStep covers the end-to-end upload
// scenario: three ordered images plus an uploaded two-cue file moves
// directly to step 3 with the uploaded text verbatim.
func TestUploadModeSkipsSubtitleStep(t *testing.T) {
	uploaded := "1\n00:00:00,000 --> 00:00:01,000\none\n\n2\n00:00:01,000 --> 00:00:02,000\ntwo\n\n"

	c := NewController()
	if err := c.SelectAudio(testAudio); err != nil {
		t.Fatalf("SelectAudio: %v", err)
	}
	if err := c.AddImages([]domain.FileSelection{imageA, imageB, imageC}); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := c.ChooseSubtitleMode(domain.SubtitleModeUpload); err != nil {
		t.Fatalf("ChooseSubtitleMode: %v", err)
	}
	if err := c.SelectSubtitleFile(domain.FileSelection{Name: "subs.srt", Data: []byte(uploaded)}); err != nil {
		t.Fatalf("SelectSubtitleFile: %v", err)
	}

	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	state := c.Snapshot()
	if state.CurrentStep != domain.StepGeneratingVideo {
		t.Fatalf("step = %d, want %d", state.CurrentStep, domain.StepGeneratingVideo)
	}
	if state.Subtitles != uploaded {
		t.Fatalf("subtitles = %q, want uploaded text verbatim", state.Subtitles)
	}
	if len(state.Images) != 3 || state.Images[0].Name != "a.png" || state.Images[2].Name != "c.png" {
		t.Fatalf("image order = %v", state.Images)
	}
}

// TestModeSwitchClearsUploadedFile checks switching the subtitle source
// discards a previously uploaded payload.
func TestModeSwitchClearsUploadedFile(t *testing.T) {
	c := NewController()
	if err := c.ChooseSubtitleMode(domain.SubtitleModeUpload); err != nil {
		t.Fatalf("ChooseSubtitleMode: %v", err)
	}
	if err := c.SelectSubtitleFile(domain.FileSelection{Name: "subs.srt", Data: []byte("cues")}); err != nil {
		t.Fatalf("SelectSubtitleFile: %v", err)
	}

	if err := c.ChooseSubtitleMode(domain.SubtitleModeGenerate); err != nil {
		t.Fatalf("ChooseSubtitleMode: %v", err)
	}
	if c.Snapshot().SubtitleFile != nil {
		t.Fatal("expected uploaded file cleared on mode switch")
	}
}

// TestSelectionMutatorsRejectedAfterStepOne checks step-1 mutators are
// refused once the wizard has advanced.
func TestSelectionMutatorsRejectedAfterStepOne(t *testing.T) {
	c := NewController()
	selectGenerateInputs(t, c)
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if err := c.SelectAudio(testAudio); !errors.Is(err, ErrNotSelecting) {
		t.Fatalf("SelectAudio error = %v, want ErrNotSelecting", err)
	}
	if err := c.AddImages([]domain.FileSelection{imageB}); !errors.Is(err, ErrNotSelecting) {
		t.Fatalf("AddImages error = %v, want ErrNotSelecting", err)
	}
	if err := c.ChooseSubtitleMode(domain.SubtitleModeUpload); !errors.Is(err, ErrNotSelecting) {
		t.Fatalf("ChooseSubtitleMode error = %v, want ErrNotSelecting", err)
	}
	if err := c.RemoveImage(0); !errors.Is(err, ErrNotSelecting) {
		t.Fatalf("RemoveImage error = %v, want ErrNotSelecting", err)
	}
}

// TestMoveImage checks explicit reordering.
func TestMoveImage(t *testing.T) {
	c := NewController()
	if err := c.AddImages([]domain.FileSelection{imageA, imageB, imageC}); err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	if err := c.MoveImage(0, 2); err != nil {
		t.Fatalf("MoveImage: %v", err)
	}

	got := c.Snapshot().Images
	if got[0].Name != "b.png" || got[1].Name != "c.png" || got[2].Name != "a.png" {
		t.Fatalf("order after move = [%s %s %s]", got[0].Name, got[1].Name, got[2].Name)
	}

	if err := c.MoveImage(5, 0); !errors.Is(err, ErrImageIndex) {
		t.Fatalf("out-of-range move error = %v, want ErrImageIndex", err)
	}
}

// TestRemoveImage checks removal by index keeps the rest in order.
func TestRemoveImage(t *testing.T) {
	c := NewController()
	if err := c.AddImages([]domain.FileSelection{imageA, imageB, imageC}); err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	if err := c.RemoveImage(1); err != nil {
		t.Fatalf("RemoveImage: %v", err)
	}

	got := c.Snapshot().Images
	if len(got) != 2 || got[0].Name != "a.png" || got[1].Name != "c.png" {
		t.Fatalf("images after remove = %v", got)
	}

	if err := c.RemoveImage(9); !errors.Is(err, ErrImageIndex) {
		t.Fatalf("out-of-range remove error = %v, want ErrImageIndex", err)
	}
}

// TestGenerateSubtitlesStoresDocument checks the generate path stores
// the transcriber output and allows advancing.
func TestGenerateSubtitlesStoresDocument(t *testing.T) {
	c := NewController()
	selectGenerateInputs(t, c)
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	transcriber := &fakeTranscriber{doc: "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"}
	if err := c.GenerateSubtitles(context.Background(), transcriber); err != nil {
		t.Fatalf("GenerateSubtitles: %v", err)
	}
	if transcriber.calls != 1 {
		t.Fatalf("transcriber calls = %d, want 1", transcriber.calls)
	}

	state := c.Snapshot()
	if state.Subtitles != transcriber.doc {
		t.Fatalf("subtitles = %q", state.Subtitles)
	}
	if state.IsTranscribing {
		t.Fatal("busy flag should be cleared")
	}

	if err := c.Advance(); err != nil {
		t.Fatalf("Advance to video step: %v", err)
	}
}

// TestGenerateSubtitlesFailureLeavesNoPartialState checks a failed
// transcription keeps the document unset and the flag cleared.
func TestGenerateSubtitlesFailureLeavesNoPartialState(t *testing.T) {
	c := NewController()
	selectGenerateInputs(t, c)
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	wantErr := errors.New("recognition unavailable")
	if err := c.GenerateSubtitles(context.Background(), &fakeTranscriber{err: wantErr}); !errors.Is(err, wantErr) {
		t.Fatalf("GenerateSubtitles error = %v, want %v", err, wantErr)
	}

	state := c.Snapshot()
	if state.Subtitles != "" {
		t.Fatalf("subtitles = %q, want unset", state.Subtitles)
	}
	if state.IsTranscribing {
		t.Fatal("busy flag should be cleared after failure")
	}
}

// TestGenerateSubtitlesRejectsReentrantTrigger checks the busy flag
// refuses overlapping transcriptions.
func TestGenerateSubtitlesRejectsReentrantTrigger(t *testing.T) {
	c := NewController()
	selectGenerateInputs(t, c)
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	blocked := &fakeTranscriber{doc: "doc", release: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- c.GenerateSubtitles(context.Background(), blocked) }()

	deadline := time.After(2 * time.Second)
	for !c.Snapshot().IsTranscribing {
		select {
		case <-deadline:
			t.Fatal("first transcription never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := c.GenerateSubtitles(context.Background(), &fakeTranscriber{doc: "other"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second trigger error = %v, want ErrBusy", err)
	}

	close(blocked.release)
	if err := <-done; err != nil {
		t.Fatalf("first transcription error = %v", err)
	}
}

// TestGenerateVideoPassesAccumulatedInputs checks the renderer receives
// the audio path, image order, and subtitle text, and the result is kept.
func TestGenerateVideoPassesAccumulatedInputs(t *testing.T) {
	c := NewController()
	if err := c.SelectAudio(testAudio); err != nil {
		t.Fatalf("SelectAudio: %v", err)
	}
	if err := c.AddImages([]domain.FileSelection{imageA, imageB}); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := c.ChooseSubtitleMode(domain.SubtitleModeUpload); err != nil {
		t.Fatalf("ChooseSubtitleMode: %v", err)
	}
	if err := c.SelectSubtitleFile(domain.FileSelection{Name: "subs.srt", Data: []byte("cues")}); err != nil {
		t.Fatalf("SelectSubtitleFile: %v", err)
	}
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	renderer := &fakeRenderer{result: domain.RenderResult{DownloadURL: "http://dl/v.mp4", OutputFilename: "v.mp4"}}
	result, err := c.GenerateVideo(context.Background(), renderer)
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}

	if renderer.audioPath != "/in/voice.mp3" {
		t.Fatalf("audio path = %q", renderer.audioPath)
	}
	if len(renderer.imagePaths) != 2 || renderer.imagePaths[0] != "/in/a.png" || renderer.imagePaths[1] != "/in/b.png" {
		t.Fatalf("image paths = %v", renderer.imagePaths)
	}
	if renderer.subtitles != "cues" {
		t.Fatalf("subtitles = %q", renderer.subtitles)
	}
	if result.DownloadURL != "http://dl/v.mp4" {
		t.Fatalf("result = %+v", result)
	}

	state := c.Snapshot()
	if state.Video == nil || state.Video.OutputFilename != "v.mp4" {
		t.Fatalf("stored video = %+v", state.Video)
	}
	if state.IsRendering {
		t.Fatal("busy flag should be cleared")
	}
}

// TestGenerateVideoFailureLeavesNoResult checks a failed render keeps
// the result unset.
func TestGenerateVideoFailureLeavesNoResult(t *testing.T) {
	c := NewController()
	if err := c.SelectAudio(testAudio); err != nil {
		t.Fatalf("SelectAudio: %v", err)
	}
	if err := c.AddImages([]domain.FileSelection{imageA}); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := c.ChooseSubtitleMode(domain.SubtitleModeUpload); err != nil {
		t.Fatalf("ChooseSubtitleMode: %v", err)
	}
	if err := c.SelectSubtitleFile(domain.FileSelection{Data: []byte("cues")}); err != nil {
		t.Fatalf("SelectSubtitleFile: %v", err)
	}
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	wantErr := errors.New("render service down")
	if _, err := c.GenerateVideo(context.Background(), &fakeRenderer{err: wantErr}); !errors.Is(err, wantErr) {
		t.Fatalf("GenerateVideo error = %v, want %v", err, wantErr)
	}

	state := c.Snapshot()
	if state.Video != nil {
		t.Fatalf("stored video = %+v, want nil", state.Video)
	}
	if state.IsRendering {
		t.Fatal("busy flag should be cleared after failure")
	}
}

// TestRetreatKeepsDownstreamData checks moving back does not clear
// accumulated artifacts.
func TestRetreatKeepsDownstreamData(t *testing.T) {
	c := NewController()
	selectGenerateInputs(t, c)
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := c.GenerateSubtitles(context.Background(), &fakeTranscriber{doc: "doc"}); err != nil {
		t.Fatalf("GenerateSubtitles: %v", err)
	}

	c.Retreat()
	state := c.Snapshot()
	if state.CurrentStep != domain.StepSelecting {
		t.Fatalf("step = %d, want %d", state.CurrentStep, domain.StepSelecting)
	}
	if state.Subtitles != "doc" {
		t.Fatalf("subtitles = %q, want kept until reset", state.Subtitles)
	}
}

// TestResetRestoresInitialState checks reset is deep-equal to a fresh
// controller regardless of accumulated data.
func TestResetRestoresInitialState(t *testing.T) {
	c := NewController()
	selectGenerateInputs(t, c)
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := c.GenerateSubtitles(context.Background(), &fakeTranscriber{doc: "doc"}); err != nil {
		t.Fatalf("GenerateSubtitles: %v", err)
	}

	c.Reset()
	if got, want := c.Snapshot(), NewController().Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("state after reset = %+v, want %+v", got, want)
	}
}
