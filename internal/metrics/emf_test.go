package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestNew_AutoDimension(t *testing.T) {
	t.Setenv("CARELOG_SERVICE", "carelogd")
	initOnce.Do(func() {}) // Reset once
	serviceName = "carelogd"

	r := New("TestNamespace")
	if r.namespace != "TestNamespace" {
		t.Errorf("expected namespace TestNamespace, got %s", r.namespace)
	}
	if r.dimensions["Service"] != "carelogd" {
		t.Errorf("expected Service dimension carelogd, got %s", r.dimensions["Service"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	serviceName = "" // Clear for test isolation

	rec := New("CareLog")
	rec.Dimension("Operation", "classify")
	rec.Metric("InferenceLatencyMs", 1234.5, UnitMilliseconds)
	rec.Metric("InferenceAttempts", 1, UnitCount)
	rec.Property("captureId", "abc-123")
	rec.Flush()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, output)
	}

	awsDir, ok := doc["_aws"]
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	awsMap, ok := awsDir.(map[string]interface{})
	if !ok {
		t.Fatal("_aws directive is not a map")
	}

	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}

	cwMetrics, ok := awsMap["CloudWatchMetrics"]
	if !ok {
		t.Fatal("missing CloudWatchMetrics in _aws directive")
	}
	cwArr, ok := cwMetrics.([]interface{})
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}

	cw := cwArr[0].(map[string]interface{})
	if cw["Namespace"] != "CareLog" {
		t.Errorf("expected namespace CareLog, got %v", cw["Namespace"])
	}

	if doc["Operation"] != "classify" {
		t.Errorf("expected Operation=classify, got %v", doc["Operation"])
	}

	if doc["InferenceLatencyMs"] != 1234.5 {
		t.Errorf("expected InferenceLatencyMs=1234.5, got %v", doc["InferenceLatencyMs"])
	}
	if doc["InferenceAttempts"] != float64(1) {
		t.Errorf("expected InferenceAttempts=1, got %v", doc["InferenceAttempts"])
	}

	if doc["captureId"] != "abc-123" {
		t.Errorf("expected captureId=abc-123, got %v", doc["captureId"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	rec := New("Test")
	rec.Flush() // No metrics — should produce no output

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_Count(t *testing.T) {
	serviceName = ""
	rec := New("Test")
	rec.Count("Errors")

	if v, ok := rec.values["Errors"]; !ok || v != float64(1) {
		t.Errorf("expected Errors=1, got %v", v)
	}
	if m, ok := rec.metrics["Errors"]; !ok || m.Unit != UnitCount {
		t.Errorf("expected unit Count, got %v", m.Unit)
	}
}

func TestRecorder_Chaining(t *testing.T) {
	serviceName = ""
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["Duration"] != float64(100) {
		t.Error("chaining Metric failed")
	}
	if rec.values["Calls"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}
