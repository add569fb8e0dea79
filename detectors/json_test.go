package detectors

import (
	"sync"
	"testing"
)

func TestJsonDetector_Detect(t *testing.T) {
	d, err := NewJsonDetector("level:error")
	if err != nil {
		t.Fatalf("Failed to create detector: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "Match",
			input:    `{"level":"error", "msg":"test"}`,
			expected: true,
		},
		{
			name:     "No Match (Value)",
			input:    `{"level":"info", "msg":"test"}`,
			expected: false,
		},
		{
			name:     "No Match (Field missing)",
			input:    `{"msg":"test"}`,
			expected: false,
		},
		{
			name:     "Invalid JSON",
			input:    `{level:"error"}`,
			expected: false,
		},
		{
			name:     "Plain text",
			input:    `level:error`,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.input); got != tt.expected {
				t.Errorf("Detect() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJsonDetector_GetContext(t *testing.T) {
	d, _ := NewJsonDetector("level:error")

	ctx := d.GetContext(`{"level":"error", "step":"encode"}`)
	if ctx == nil {
		t.Fatal("Expected context, got nil")
	}
	if ctx["step"] != "encode" {
		t.Errorf("Expected step=encode, got %v", ctx["step"])
	}

	if d.GetContext("not json") != nil {
		t.Error("Expected nil context for non-JSON line")
	}
}

func TestJsonDetector_Concurrency(t *testing.T) {
	d, _ := NewJsonDetector("level:error")
	line := `{"level":"error", "id":1}`

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Detect(line) {
				if d.GetContext(line) == nil {
					t.Error("Got nil context")
				}
			}
		}()
	}
	wg.Wait()
}
