package inference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/carelog/internal/assets"
	"github.com/fpang/carelog/internal/capture"
	"github.com/fpang/carelog/internal/jsonutil"
	"github.com/fpang/carelog/internal/metrics"
	"github.com/fpang/carelog/internal/recorder"
)

// DefaultModelName is the default Gemini model for activity classification.
// Can be overridden via CARELOG_MODEL.
const DefaultModelName = "gemini-2.5-flash"

// maxInferenceFrames bounds how many frames of a segment are sent inline.
// Frames are sampled evenly across the segment; neighbouring wearable frames
// are near-duplicates, so more adds cost without adding signal.
const maxInferenceFrames = 8

// GetModelName returns the Gemini model to use, resolved from the
// CARELOG_MODEL environment variable with DefaultModelName as fallback.
func GetModelName() string {
	if env := os.Getenv("CARELOG_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}

// geminiVerdict is the JSON shape the model is instructed to return.
type geminiVerdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// GeminiClient classifies capture envelopes with the Gemini API. Media is
// sent as inline blobs: wearable frames are small, and downscaling keeps
// photo payloads within request limits.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient wraps an initialized genai client.
func NewGeminiClient(client *genai.Client, model string) *GeminiClient {
	if model == "" {
		model = GetModelName()
	}
	return &GeminiClient{client: client, model: model}
}

// Infer implements Client.
func (g *GeminiClient) Infer(ctx context.Context, env *capture.Envelope) (*Result, error) {
	parts, err := g.buildMediaParts(env)
	if err != nil {
		return nil, err
	}
	parts = append(parts, &genai.Part{Text: buildClassifyPrompt(env)})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.ClassifySystemPrompt}},
		},
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	log.Debug().
		Str("captureId", env.ID).
		Str("model", g.model).
		Int("mediaParts", len(parts)-1).
		Msg("Sending capture to Gemini for classification")

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	elapsed := time.Since(start)

	m := metrics.New("CareLog").
		Dimension("Operation", "inferCapture").
		Metric("GeminiApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini for capture %s", env.ID)
	}

	verdict, err := jsonutil.ParseJSON[geminiVerdict](text)
	if err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Result{
		Label:        ParseLabel(verdict.Label),
		Confidence:   confidence,
		Rationale:    verdict.Rationale,
		ModelVersion: g.model,
	}, nil
}

// buildMediaParts loads the envelope's media as inline blobs.
func (g *GeminiClient) buildMediaParts(env *capture.Envelope) ([]*genai.Part, error) {
	switch env.Type {
	case capture.TypePhoto:
		data, err := os.ReadFile(env.MediaRef)
		if err != nil {
			return nil, fmt.Errorf("read photo: %w", err)
		}
		scaled, err := capture.DownscaleJPEG(data, capture.DefaultInferenceMaxDimension)
		if err != nil {
			return nil, err
		}
		return []*genai.Part{{
			InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: scaled},
		}}, nil

	case capture.TypeShortVideo:
		return g.segmentFrameParts(env.MediaRef)

	default:
		return nil, fmt.Errorf("unsupported capture type %q", env.Type)
	}
}

// segmentFrameParts samples the segment's frame sequence evenly and returns
// the sampled frames as inline blobs.
func (g *GeminiClient) segmentFrameParts(manifestRef string) ([]*genai.Part, error) {
	manifest, err := recorder.ReadManifest(manifestRef)
	if err != nil {
		return nil, err
	}

	framesDir := filepath.Join(filepath.Dir(manifestRef), manifest.FramesDirectory)
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("segment %s has no frames", manifest.SegmentID)
	}
	// Zero-padded names: lexicographic order is capture order.
	sort.Strings(names)

	sampled := sampleEvenly(names, maxInferenceFrames)
	parts := make([]*genai.Part, 0, len(sampled))
	for _, name := range sampled {
		data, err := os.ReadFile(filepath.Join(framesDir, name))
		if err != nil {
			log.Warn().Err(err).Str("frame", name).Msg("Failed to read frame, skipping")
			continue
		}
		scaled, err := capture.DownscaleJPEG(data, capture.DefaultInferenceMaxDimension)
		if err != nil {
			log.Warn().Err(err).Str("frame", name).Msg("Failed to downscale frame, skipping")
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: scaled},
		})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("segment %s: no readable frames", manifest.SegmentID)
	}
	return parts, nil
}

// sampleEvenly picks up to max items spread across the slice, always
// including the first and last.
func sampleEvenly(names []string, max int) []string {
	if len(names) <= max {
		return names
	}
	out := make([]string, 0, max)
	step := float64(len(names)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		out = append(out, names[int(float64(i)*step+0.5)])
	}
	return out
}

// buildClassifyPrompt renders the envelope's metadata as prompt context.
func buildClassifyPrompt(env *capture.Envelope) string {
	var sb strings.Builder
	sb.WriteString("## Capture Record\n\n")
	sb.WriteString(fmt.Sprintf("- Type: %s\n", env.Type))
	sb.WriteString(fmt.Sprintf("- Captured at: %s\n", env.CapturedAt.Format("Monday, January 2, 2006 at 3:04 PM")))
	for _, f := range env.Metadata {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", f.Key, f.Value))
	}
	sb.WriteString("\nClassify this capture. Respond with ONLY the JSON object described in your instructions.\n")
	return sb.String()
}
