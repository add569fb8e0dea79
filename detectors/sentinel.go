package detectors

import "strings"

// CompletionSentinel is printed by the remote pipeline when it has finished.
// It is part of the contract with the workload and matched case-insensitively.
const CompletionSentinel = "VASTAI_PIPELINE_COMPLETED_SUCCESSFULLY"

// SentinelDetector matches a fixed marker anywhere in a line, ignoring case.
type SentinelDetector struct {
	needle string
}

func NewSentinelDetector(sentinel string) *SentinelDetector {
	return &SentinelDetector{needle: strings.ToLower(sentinel)}
}

// NewCompletionDetector returns the detector for CompletionSentinel.
func NewCompletionDetector() *SentinelDetector {
	return NewSentinelDetector(CompletionSentinel)
}

func (d *SentinelDetector) Detect(line string) bool {
	if d.needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(line), d.needle)
}

// DetectAny reports whether any of lines matches.
func (d *SentinelDetector) DetectAny(lines []string) bool {
	for _, line := range lines {
		if d.Detect(line) {
			return true
		}
	}
	return false
}
