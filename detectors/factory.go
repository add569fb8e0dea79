package detectors

import "fmt"

// GetDetector returns an alert detector based on the format name.
// If format is "custom" or empty, it requires a pattern and returns a GenericDetector.
func GetDetector(format string, pattern string) (Detector, error) {
	switch format {
	case "traceback":
		return NewTracebackDetector(), nil
	case "json":
		return NewJsonDetector(pattern)
	case "custom", "":
		if pattern == "" {
			return nil, fmt.Errorf("pattern is required for custom detector")
		}
		return NewGenericDetector(pattern)
	default:
		return nil, fmt.Errorf("unknown detector format: %s", format)
	}
}

// IsKnownDetector checks if the given name matches a known detector type.
func IsKnownDetector(name string) bool {
	switch name {
	case "traceback", "json", "custom":
		return true
	default:
		return false
	}
}
