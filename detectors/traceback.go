package detectors

import "regexp"

// tracebackPattern covers the ways a GPU job usually dies: Python
// tracebacks, CUDA/NCCL failures and the kernel OOM killer.
var tracebackPattern = regexp.MustCompile(
	`Traceback \(most recent call last\)` +
		`|CUDA out of memory` +
		`|CUDA error` +
		`|NCCL error` +
		`|RuntimeError:` +
		`|Segmentation fault` +
		`|^Killed$`)

type TracebackDetector struct{}

func NewTracebackDetector() *TracebackDetector {
	return &TracebackDetector{}
}

func (d *TracebackDetector) Detect(line string) bool {
	return tracebackPattern.MatchString(line)
}
