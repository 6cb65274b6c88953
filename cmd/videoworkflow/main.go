// Command videoworkflow drives the same workflow as the desktop wizard
// without a window: pick inputs with flags, get a download URL back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wailsapp/mimetype"

	"video-workflow/internal/config"
	"video-workflow/internal/domain"
	"video-workflow/internal/render"
	"video-workflow/internal/speech"
	"video-workflow/internal/workflow"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:           "videoworkflow",
		Short:         "Produce a video from images, one audio track, and subtitles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCommand())
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full workflow headlessly and print the download URL",
		RunE:  runGenerate,
	}

	cmd.Flags().String("audio", "", "Audio file path (required)")
	cmd.Flags().StringArray("image", nil, "Image file path, repeatable; order is frame order (required)")
	cmd.Flags().String("srt-file", "", "Existing subtitle file; omit to transcribe the audio instead")
	cmd.Flags().Bool("json", false, "Print the render result as JSON")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	audioPath, _ := cmd.Flags().GetString("audio")
	imagePaths, _ := cmd.Flags().GetStringArray("image")
	subtitlePath, _ := cmd.Flags().GetString("srt-file")
	asJSON, _ := cmd.Flags().GetBool("json")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	controller := workflow.NewController()

	audio, err := readSelection(audioPath)
	if err != nil {
		return err
	}
	if err := controller.SelectAudio(audio); err != nil {
		return err
	}

	images := make([]domain.FileSelection, 0, len(imagePaths))
	for _, path := range imagePaths {
		image, err := readSelection(path)
		if err != nil {
			return err
		}
		images = append(images, image)
	}
	if err := controller.AddImages(images); err != nil {
		return err
	}

	if subtitlePath != "" {
		if err := controller.ChooseSubtitleMode(domain.SubtitleModeUpload); err != nil {
			return err
		}
		subtitleFile, err := readSelection(subtitlePath)
		if err != nil {
			return err
		}
		if err := controller.SelectSubtitleFile(subtitleFile); err != nil {
			return err
		}
	} else if err := controller.ChooseSubtitleMode(domain.SubtitleModeGenerate); err != nil {
		return err
	}

	if err := controller.Advance(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if controller.Snapshot().CurrentStep == domain.StepGeneratingSubtitles {
		if err := generateSubtitles(ctx, controller, cfg, logger); err != nil {
			return err
		}
		if err := controller.Advance(); err != nil {
			return err
		}
	}

	renderer, err := render.New(cfg.RenderBaseURL, nil, logger)
	if err != nil {
		return err
	}
	result, err := controller.GenerateVideo(ctx, renderer)
	if err != nil {
		return err
	}

	if asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.DownloadURL)
	return nil
}

// generateSubtitles transcribes the selected audio through the remote
// recognition service.
func generateSubtitles(ctx context.Context, controller *workflow.Controller, cfg domain.AppConfig, logger *slog.Logger) error {
	client, err := speech.New(speech.Config{
		AppID:   cfg.SpeechAppID,
		Token:   cfg.SpeechToken,
		BaseURL: cfg.SpeechBaseURL,
		Logger:  logger,
	})
	if err != nil {
		if errors.Is(err, speech.ErrMissingCredentials) {
			return errors.New("speech credentials missing: set VIDEO_WORKFLOW_SPEECH_APP_ID and VIDEO_WORKFLOW_SPEECH_TOKEN, or configure them in the app")
		}
		return err
	}

	opts := speech.OptionsFromConfig(cfg)
	opts.OnPoll = func(attempt int) {
		logger.Info("waiting for transcription result", "attempt", attempt)
	}

	return controller.GenerateSubtitles(ctx, cliTranscriber{client: client, opts: opts})
}

// loadConfig reads the persisted config and layers env overrides on top.
func loadConfig() (domain.AppConfig, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("resolve config path: %w", err)
	}

	cfg, err := config.NewJSONStore(path).Load()
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return config.ApplyEnvOverrides(cfg), nil
}

// readSelection loads one input file as a workflow selection.
func readSelection(path string) (domain.FileSelection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.FileSelection{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return domain.FileSelection{}, fmt.Errorf("read %s: %w", path, err)
	}

	return domain.FileSelection{
		Name:     filepath.Base(abs),
		Path:     abs,
		Data:     data,
		MIMEType: mimetype.Detect(data).String(),
	}, nil
}

// cliTranscriber adapts the speech client to the controller interface.
type cliTranscriber struct {
	client *speech.Client
	opts   speech.Options
}

func (t cliTranscriber) Transcribe(ctx context.Context, audio domain.FileSelection) (string, error) {
	return t.client.Transcribe(ctx, audio, t.opts)
}
