package detectors

import (
	"fmt"
	"testing"
)

// BenchmarkSentinelDetectAny measures the full rescan the streamer performs
// over everything emitted so far on each poll cycle.
func BenchmarkSentinelDetectAny(b *testing.B) {
	d := NewCompletionDetector()
	for _, n := range []int{100, 10000} {
		lines := make([]string, n)
		for i := range lines {
			lines[i] = fmt.Sprintf("[%06d] frame %d encoded at 42.0 fps", i, i)
		}

		b.Run(fmt.Sprintf("lines_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if d.DetectAny(lines) {
					b.Fatal("should not have detected")
				}
			}
		})
	}
}

func BenchmarkGenericDetector_Literal(b *testing.B) {
	detector, _ := NewGenericDetector("error")
	line := "This is a log line containing an error message."

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !detector.Detect(line) {
			b.Fatal("should have detected")
		}
	}
}

func BenchmarkTracebackDetector(b *testing.B) {
	detector := NewTracebackDetector()
	line := "frame 120/900 encoded, nothing to see here"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if detector.Detect(line) {
			b.Fatal("should not have detected")
		}
	}
}
