package inference

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fpang/carelog/internal/capture"
)

func TestSampleEvenly(t *testing.T) {
	names := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("%06d.jpg", i)
		}
		return out
	}

	t.Run("short sequence passes through", func(t *testing.T) {
		in := names(5)
		got := sampleEvenly(in, 8)
		if len(got) != 5 {
			t.Fatalf("sampled %d names, want all 5", len(got))
		}
	})

	t.Run("long sequence is bounded", func(t *testing.T) {
		got := sampleEvenly(names(100), 8)
		if len(got) != 8 {
			t.Fatalf("sampled %d names, want 8", len(got))
		}
		if got[0] != "000000.jpg" {
			t.Errorf("first sample = %s, want the first frame", got[0])
		}
		if got[len(got)-1] != "000099.jpg" {
			t.Errorf("last sample = %s, want the last frame", got[len(got)-1])
		}
		for i := 1; i < len(got); i++ {
			if got[i] <= got[i-1] {
				t.Errorf("samples out of order: %v", got)
			}
		}
	})
}

func TestBuildClassifyPrompt(t *testing.T) {
	env := &capture.Envelope{
		ID:         "cap-1",
		Type:       capture.TypeShortVideo,
		CapturedAt: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		Metadata: []capture.Field{
			{Key: "segmentId", Value: "seg-1"},
			{Key: "frameCount", Value: "24"},
			{Key: "audioStatus", Value: "empty_audio"},
		},
	}

	prompt := buildClassifyPrompt(env)
	for _, want := range []string{
		"Type: shortVideo",
		"segmentId: seg-1",
		"frameCount: 24",
		"audioStatus: empty_audio",
		"ONLY the JSON object",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
