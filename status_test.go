package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/angch/vastlogmon/config"
	"github.com/angch/vastlogmon/ipc"
	"github.com/angch/vastlogmon/monitor"
)

func TestPrintInstanceTable(t *testing.T) {
	startTime := time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC)
	instances := []ipc.StatusResponse{
		{
			PID:         1234,
			StartTime:   startTime,
			Version:     "v1.0.0",
			MemoryAlloc: 1572864, // 1.5 MiB
			Stream: monitor.Status{
				Instance:            "555001",
				Source:              "vast",
				State:               monitor.StatePolling,
				LinesEmitted:        120,
				LastSuccess:         startTime.Add(5 * time.Minute),
				ConsecutiveFailures: 2,
			},
			Config: &config.Config{},
		},
		{
			PID:         5678,
			StartTime:   startTime.Add(1 * time.Hour),
			Version:     "v1.1.0",
			MemoryAlloc: 1024, // 1 KiB
			Stream: monitor.Status{
				Instance: "555002",
				Source:   "replay",
				State:    monitor.StateIdle,
			},
		},
	}

	var buf bytes.Buffer
	printInstanceTable(&buf, instances)

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")

	for _, col := range []string{"PID", "STARTED", "MEM", "INSTANCE", "STATE", "LINES"} {
		if !strings.Contains(lines[0], col) {
			t.Errorf("Header missing column %s. Got: %s", col, lines[0])
		}
	}

	checks := []string{
		"1234",
		"2023-10-27 10:00",
		"1.5 MiB",
		"555001",
		"polling",
		"120",
		"10:05:00 (2 failing)",
		"5678",
		"1.0 KiB",
		"555002",
		"replay",
		"idle",
	}
	for _, want := range checks {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing %q:\n%s", want, output)
		}
	}

	if !strings.Contains(output, "Total instances: 2") {
		t.Error("Footer missing or incorrect")
	}
}

func TestPrintInstanceTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	printInstanceTable(&buf, []ipc.StatusResponse{})
	output := buf.String()

	if !strings.Contains(output, "No running instances found") {
		t.Errorf("Expected 'No running instances found', got: %s", output)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:        "512 B",
		1024:       "1.0 KiB",
		1572864:    "1.5 MiB",
		3221225472: "3.0 GiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
