package detectors

// Detector reports whether a log line is of interest.
type Detector interface {
	// Detect returns true if the line matches.
	Detect(line string) bool
}

// ContextExtractor is an interface for extracting context from log lines.
type ContextExtractor interface {
	// GetContext returns a map of context data from the log line.
	GetContext(line string) map[string]interface{}
}
