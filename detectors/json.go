package detectors

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// JsonDetector matches a regex against one field of a JSON log line,
// e.g. "level:error" for structured workload output.
type JsonDetector struct {
	Field   string
	Pattern *regexp.Regexp
}

func NewJsonDetector(pattern string) (*JsonDetector, error) {
	parts := strings.SplitN(pattern, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid json pattern format: expected 'key:regex', got '%s'", pattern)
	}
	field := strings.TrimSpace(parts[0])
	regexStr := strings.TrimSpace(parts[1])

	re, err := regexp.Compile(regexStr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex for json detector: %v", err)
	}

	return &JsonDetector{
		Field:   field,
		Pattern: re,
	}, nil
}

func (d *JsonDetector) Detect(line string) bool {
	if !strings.HasPrefix(line, "{") {
		return false
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return false
	}

	val, ok := data[d.Field]
	if !ok {
		return false
	}
	return d.Pattern.MatchString(fmt.Sprintf("%v", val))
}

func (d *JsonDetector) GetContext(line string) map[string]interface{} {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return nil
	}
	return data
}
