package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ParseJSON decodes a flat JSON object into fields, keeping key order.
//
// String values are unquoted; any other value (number, bool, null, nested
// object or array) keeps its compact JSON text.
func ParseJSON(body []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON payload: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("JSON payload must be an object")
	}

	fields := []Field{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON payload: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected JSON token %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON value for %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: valueText(raw)})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse JSON payload: %w", err)
	}
	return fields, nil
}

func valueText(raw json.RawMessage) string {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte{'"'}) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
