package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/carelog/internal/archive"
	"github.com/fpang/carelog/internal/boot"
	"github.com/fpang/carelog/internal/capture"
	"github.com/fpang/carelog/internal/device"
	"github.com/fpang/carelog/internal/inference"
	"github.com/fpang/carelog/internal/logging"
	"github.com/fpang/carelog/internal/recorder"
	"github.com/fpang/carelog/internal/segment"
	"github.com/fpang/carelog/internal/store"
)

// CLI flags
var (
	dataDirFlag     string
	modelFlag       string
	thresholdFlag   float64
	maxAttemptsFlag int
	backoffFlag     time.Duration
	simulateFlag    bool
	dryRunFlag      bool
	cycleFlag       time.Duration
)

// rootCmd is the main Cobra command for the daemon.
var rootCmd = &cobra.Command{
	Use:   "carelogd",
	Short: "Caregiving activity logger daemon",
	Long: `carelogd runs the capture segmentation and activity-inference pipeline:
it consumes session-state transitions and media from a wearable camera
session, records frames and audio per capture segment, classifies each
finished capture with Gemini, and persists activity events to DynamoDB.

Examples:
  carelogd --simulate --dry-run
  carelogd --simulate --threshold 0.8 --model gemini-2.5-pro
  CARELOG_TABLE=carelog-events carelogd --simulate`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&dataDirFlag, "data-dir", "", "Directory for segment storage (default: $HOME/.carelog)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", inference.GetModelName(), "Gemini model to use")
	rootCmd.Flags().Float64Var(&thresholdFlag, "threshold", inference.DefaultReviewThreshold, "Confidence below which events are flagged for review (0 disables review)")
	rootCmd.Flags().IntVar(&maxAttemptsFlag, "max-attempts", inference.DefaultMaxAttempts, "Inference attempts before giving up")
	rootCmd.Flags().DurationVar(&backoffFlag, "backoff", inference.DefaultBackoffBase, "Base delay between inference retries")
	rootCmd.Flags().BoolVar(&simulateFlag, "simulate", false, "Run against a simulated device session instead of hardware")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Keep events in memory instead of DynamoDB; skip S3 archival")
	rootCmd.Flags().DurationVar(&cycleFlag, "cycle", 5*time.Second, "Simulated capture window length (simulate mode only)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	initStart := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := dataDirFlag
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve home directory")
		}
		dataDir = filepath.Join(home, ".carelog")
	}
	segmentsDir := filepath.Join(dataDir, "segments")
	photosDir := filepath.Join(dataDir, "photos")
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", segmentsDir).Msg("Failed to create data directory")
	}

	// Persistence and inference backends.
	var activityStore store.ActivityStore
	var uploader *archive.Uploader
	var client inference.Client

	if dryRunFlag {
		activityStore = store.NewMemoryStore()
		log.Info().Msg("Dry run: events held in memory, archival disabled")
	}

	aws := boot.InitAWS(ctx)
	if !dryRunFlag {
		activityStore = boot.InitDynamo(aws.Config, "CARELOG_TABLE")
		if s3Client, bucket := boot.InitS3(aws.Config, "CARELOG_ARCHIVE_BUCKET"); s3Client != nil {
			uploader = archive.NewUploader(s3Client, bucket)
		}
	}

	apiKey := boot.LoadGeminiKey(ctx, aws.SSM)
	client = inference.NewGeminiClient(boot.InitGemini(ctx, apiKey), modelFlag)

	orchestrator := inference.NewOrchestrator(client, activityStore, inference.OrchestratorConfig{
		MaxAttempts:     maxAttemptsFlag,
		BackoffBase:     backoffFlag,
		ReviewThreshold: &thresholdFlag,
	})

	// Device session provider.
	if !simulateFlag {
		log.Fatal().Msg("No device transport configured; run with --simulate")
	}
	sim := device.NewSimulator(500 * time.Millisecond)
	audioSource := &device.SimAudioSource{SampleRate: 16000, Channels: 1}

	frames := recorder.NewFrameRecorder(segmentsDir)
	audio := recorder.NewAudioRecorder(segmentsDir, audioSource)

	coordinator := segment.NewCoordinator(segment.Config{
		Frames:   frames,
		Audio:    audio,
		PhotoDir: photosDir,
		Handler: func(ctx context.Context, env *capture.Envelope) {
			ev, err := orchestrator.Classify(ctx, env)
			if err != nil {
				log.Error().Err(err).Str("captureId", env.ID).Msg("Capture classification failed")
				return
			}
			if uploader != nil && env.Type == capture.TypeShortVideo {
				segID := env.Meta("segmentId")
				if _, err := uploader.ArchiveSegment(ctx, segID, frames.SegmentDir(segID)); err != nil {
					log.Warn().Err(err).Str("segmentId", segID).Msg("Segment archival failed")
				}
			}
			log.Info().Str("eventId", ev.ID).Str("label", ev.Label).Msg("Activity event recorded")
		},
	})

	// Log every pipeline event for operators tailing the daemon.
	events, cancelEvents := coordinator.Events().Subscribe()
	defer cancelEvents()
	go func() {
		for ev := range events {
			log.Debug().
				Str("type", string(ev.Type)).
				Str("segmentId", ev.SegmentID).
				Fields(map[string]interface{}{"fields": ev.Fields}).
				Msg("Pipeline event")
		}
	}()

	logging.NewStartupLogger("carelogd").
		Config("dataDir", dataDir).
		Config("model", modelFlag).
		Feature("simulate", simulateFlag).
		Feature("dryRun", dryRunFlag).
		Feature("archive", uploader != nil).
		InitDuration(time.Since(initStart)).
		Log()

	coordinator.NoteAppCommand()
	if err := sim.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start device session")
	}

	// Drive simulated capture windows until interrupted.
	go func() {
		ticker := time.NewTicker(cycleFlag)
		defer ticker.Stop()
		streaming := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				coordinator.NoteAppCommand()
				if streaming {
					sim.Pause()
				} else {
					sim.Resume()
				}
				streaming = !streaming
			}
		}
	}()

	coordinator.Run(ctx, sim)
	coordinator.Wait()
	log.Info().Msg("Pipeline stopped")
}
