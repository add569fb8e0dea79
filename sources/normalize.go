package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// decodeJSON parses body with numbers preserved. ok is false when body is
// not exactly one JSON value.
func decodeJSON(body []byte) (v any, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// normalizeLogBody turns a primary-endpoint body into lines. It accepts
// {"raw": "..."}, a JSON array, {"error": ...}, any scalar, or plain text.
func normalizeLogBody(body []byte) ([]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	v, ok := decodeJSON(body)
	if !ok {
		// Not JSON: keep the text, it is usually the log itself or an HTML error page.
		return splitRaw(string(body)), nil
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if raw, ok := t["raw"]; ok {
			return splitRaw(toText(raw)), nil
		}
		if msg, failed := errorField(t); failed {
			return nil, newProviderError(msg)
		}
		return []string{toText(t)}, nil
	case []any:
		return linesOf(t), nil
	default:
		return []string{toText(t)}, nil
	}
}

// metadataLogs extracts an embedded logs array from an instance metadata
// body. found is false when the metadata has no usable logs field.
func metadataLogs(body []byte) (lines []string, found bool, err error) {
	v, ok := decodeJSON(body)
	if !ok {
		return nil, false, newShapeError("non-JSON body")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false, nil
	}
	if msg, failed := errorField(m); failed {
		return nil, false, newProviderError(msg)
	}

	if logs, ok := m["logs"].([]any); ok {
		return linesOf(logs), true, nil
	}
	// GET /instances/{id}/ wraps the instance in an "instances" object.
	if inst, ok := m["instances"].(map[string]any); ok {
		if logs, ok := inst["logs"].([]any); ok {
			return linesOf(logs), true, nil
		}
	}
	return nil, false, nil
}

// legacyLogs accepts only a JSON array.
func legacyLogs(body []byte) ([]string, error) {
	v, ok := decodeJSON(body)
	if !ok {
		return nil, newShapeError("non-JSON body")
	}
	switch t := v.(type) {
	case []any:
		return linesOf(t), nil
	case map[string]any:
		if msg, failed := errorField(t); failed {
			return nil, newProviderError(msg)
		}
		return nil, newShapeError("object")
	default:
		return nil, newShapeError(kindOf(t))
	}
}

// errorField reports whether m carries a truthy "error" field and builds a
// message from it and the optional "msg"/"message" companion.
func errorField(m map[string]any) (string, bool) {
	e, ok := m["error"]
	if !ok || e == nil {
		return "", false
	}
	switch t := e.(type) {
	case bool:
		if !t {
			return "", false
		}
		e = "error"
	case string:
		if t == "" {
			return "", false
		}
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
	}

	msg := toText(e)
	for _, key := range []string{"msg", "message"} {
		if detail, ok := m[key].(string); ok && detail != "" {
			return msg + ": " + detail, true
		}
	}
	return msg, true
}

func linesOf(items []any) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, toText(item))
	}
	return lines
}

func splitRaw(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
