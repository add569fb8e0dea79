package detectors

import (
	"testing"
)

func TestSentinelDetector(t *testing.T) {
	d := NewCompletionDetector()

	tests := []struct {
		line     string
		expected bool
	}{
		{"VASTAI_PIPELINE_COMPLETED_SUCCESSFULLY", true},
		{"vastai_pipeline_completed_successfully", true},
		{"[12:00:01] INFO Vastai_Pipeline_Completed_Successfully (took 3h)", true},
		{"VASTAI_PIPELINE_COMPLETED", false},
		{"pipeline completed successfully", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := d.Detect(tt.line); got != tt.expected {
			t.Errorf("Detect(%q) = %v, want %v", tt.line, got, tt.expected)
		}
	}
}

func TestSentinelDetector_DetectAny(t *testing.T) {
	d := NewCompletionDetector()

	if d.DetectAny(nil) {
		t.Error("DetectAny(nil) should be false")
	}
	if d.DetectAny([]string{"a", "b"}) {
		t.Error("DetectAny without sentinel should be false")
	}
	if !d.DetectAny([]string{"a", "done: VASTAI_pipeline_COMPLETED_successfully", "c"}) {
		t.Error("DetectAny should find the sentinel in the middle")
	}
}

func TestSentinelDetector_Empty(t *testing.T) {
	d := NewSentinelDetector("")
	if d.Detect("anything") {
		t.Error("empty sentinel must never match")
	}
}

func TestGenericDetector(t *testing.T) {
	literal, err := NewGenericDetector("ERROR")
	if err != nil {
		t.Fatal(err)
	}
	if !literal.isLiteral {
		t.Error("plain pattern should use the literal fast path")
	}
	if !literal.Detect("2024 ERROR disk full") || literal.Detect("error lowercase") {
		t.Error("literal detector should be case sensitive")
	}

	re, err := NewGenericDetector(`(?i)epoch \d+ failed`)
	if err != nil {
		t.Fatal(err)
	}
	if !re.Detect("Epoch 12 FAILED after 3 retries") {
		t.Error("regex detector should match")
	}

	if _, err := NewGenericDetector("("); err == nil {
		t.Error("invalid regex should fail")
	}
}

func TestTracebackDetector(t *testing.T) {
	d := NewTracebackDetector()

	matches := []string{
		"Traceback (most recent call last):",
		"torch.cuda.OutOfMemoryError: CUDA out of memory. Tried to allocate 2.00 GiB",
		"RuntimeError: CUDA error: device-side assert triggered",
		"Killed",
		"Segmentation fault (core dumped)",
	}
	for _, line := range matches {
		if !d.Detect(line) {
			t.Errorf("expected match for %q", line)
		}
	}

	for _, line := range []string{"frame 120/900 encoded", "Process killed by user? no", ""} {
		if d.Detect(line) {
			t.Errorf("unexpected match for %q", line)
		}
	}
}

func TestGetDetector(t *testing.T) {
	tests := []struct {
		format  string
		pattern string
		wantErr bool
	}{
		{"traceback", "", false},
		{"json", "level:error", false},
		{"json", "nocolon", true},
		{"custom", "ERROR", false},
		{"", "ERROR", false},
		{"custom", "", true},
		{"dmesg", "", true},
	}

	for _, tt := range tests {
		d, err := GetDetector(tt.format, tt.pattern)
		if tt.wantErr {
			if err == nil {
				t.Errorf("GetDetector(%q, %q) expected error", tt.format, tt.pattern)
			}
			continue
		}
		if err != nil || d == nil {
			t.Errorf("GetDetector(%q, %q) = %v, %v", tt.format, tt.pattern, d, err)
		}
	}
}

func TestIsKnownDetector(t *testing.T) {
	for _, name := range []string{"traceback", "json", "custom"} {
		if !IsKnownDetector(name) {
			t.Errorf("%s should be known", name)
		}
	}
	if IsKnownDetector("nginx") {
		t.Error("nginx should not be known")
	}
}
