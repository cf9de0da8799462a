package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/carelog/internal/boot"
	"github.com/fpang/carelog/internal/capture"
	"github.com/fpang/carelog/internal/inference"
	"github.com/fpang/carelog/internal/logging"
	"github.com/fpang/carelog/internal/store"
)

// CLI flags
var (
	fileFlag      string
	modelFlag     string
	thresholdFlag float64
	persistFlag   bool
)

// rootCmd classifies a single photo file through the same orchestrator the
// daemon uses, which makes it handy for prompt and threshold tuning.
var rootCmd = &cobra.Command{
	Use:   "carelog-classify",
	Short: "Classify one photo into a caregiving activity",
	Long: `carelog-classify sends a single photo through the activity-inference
pipeline and prints the resulting event as JSON.

Examples:
  carelog-classify --file bottle.jpg
  carelog-classify --file crib.jpg --threshold 0.9 --persist`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Photo file to classify (required)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", inference.GetModelName(), "Gemini model to use")
	rootCmd.Flags().Float64Var(&thresholdFlag, "threshold", inference.DefaultReviewThreshold, "Confidence below which the event is flagged for review (0 disables review)")
	rootCmd.Flags().BoolVar(&persistFlag, "persist", false, "Write the event to DynamoDB (CARELOG_TABLE) instead of memory")
	rootCmd.MarkFlagRequired("file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()

	data, err := os.ReadFile(fileFlag)
	if err != nil {
		log.Fatal().Err(err).Str("file", fileFlag).Msg("Failed to read photo")
	}

	env, err := capture.FromPhoto(data, "jpg", time.Now(), os.TempDir())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build capture envelope")
	}
	defer os.Remove(env.MediaRef)

	aws := boot.InitAWS(ctx)

	var activityStore store.ActivityStore = store.NewMemoryStore()
	if persistFlag {
		activityStore = boot.InitDynamo(aws.Config, "CARELOG_TABLE")
	}

	apiKey := boot.LoadGeminiKey(ctx, aws.SSM)
	client := inference.NewGeminiClient(boot.InitGemini(ctx, apiKey), modelFlag)

	orchestrator := inference.NewOrchestrator(client, activityStore, inference.OrchestratorConfig{
		ReviewThreshold: &thresholdFlag,
	})

	ev, err := orchestrator.Classify(ctx, env)
	if err != nil {
		log.Fatal().Err(err).Msg("Classification failed")
	}

	out, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render event")
	}
	fmt.Println(string(out))
}
