package pulsecam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jpalmerr/pulsecam/internal/poller"
	"github.com/jpalmerr/pulsecam/internal/render"
)

// ErrNoFields is returned by a [Decoder] whose input held no usable rows.
var ErrNoFields = errors.New("no fields decoded")

// Decoder turns a device status body into table rows.
//
// Decoder follows the same contract as the rest of the package's pure
// helpers: the same body always produces the same rows, and nothing is kept
// between calls. A returned error counts as a failed poll and feeds the
// backoff.
//
// Several built-in decoders are provided: [TableDecoder], [JSONDecoder],
// [JSONFieldsDecoder], [RegexDecoder], and [FirstMatch] for composition.
//
// # Panic Safety
//
// Decoders are called within a panic recovery boundary. A panicking decoder
// fails the poll with an error carrying a correlation ID; the stack trace is
// logged server-side.
type Decoder func(body []byte) ([]Field, error)

// TableDecoder reads the rows of a <tbody> fragment. The first cell of each
// row is the key, the second the value.
var TableDecoder Decoder = func(body []byte) ([]Field, error) {
	return render.ParseTbody(string(body))
}

// JSONDecoder reads a flat JSON object. Keys keep their document order;
// nested values are rendered as compact JSON.
var JSONDecoder Decoder = render.ParseJSON

// JSONFieldsDecoder returns a [Decoder] that picks fields out of a JSON
// document using dot notation to navigate nested objects.
//
// For example, "sensor.temp" reads 21.5 from {"sensor": {"temp": 21.5}}.
// Each path that resolves to a scalar becomes one row keyed by the path;
// missing paths are skipped. If no path resolves, the decoder returns
// [ErrNoFields].
//
// Example:
//
//	// For response: {"wifi": {"rssi": -61}, "uptime": 3600}
//	dec := pulsecam.JSONFieldsDecoder("wifi.rssi", "uptime")
func JSONFieldsDecoder(paths ...string) Decoder {
	split := make([][]string, len(paths))
	for i, p := range paths {
		split[i] = strings.Split(p, ".")
	}

	return func(body []byte) ([]Field, error) {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var data interface{}
		if err := dec.Decode(&data); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}

		var fields []Field
		for i, parts := range split {
			if value, ok := extractJSONPath(data, parts); ok {
				fields = append(fields, Field{Key: paths[i], Value: value})
			}
		}
		if len(fields) == 0 {
			return nil, ErrNoFields
		}
		return fields, nil
	}
}

// extractJSONPath walks a JSON structure using dot notation parts.
func extractJSONPath(data interface{}, parts []string) (string, bool) {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = obj[part]
		if !ok {
			return "", false
		}
	}

	switch v := current.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

// RegexDecoder returns a [Decoder] that matches the response body against a
// regular expression with named capture groups.
//
// Every named group that participates in the first match becomes one row,
// keyed by the group name. Unnamed groups are ignored. If the pattern does
// not match, the decoder returns [ErrNoFields].
//
// Returns an error if the pattern is invalid or has no named groups.
//
// Example:
//
//	// Read "Battery: 87%" from a plain-text status page
//	dec, err := pulsecam.RegexDecoder(`Battery:\s*(?P<battery>\d+%)`)
func RegexDecoder(pattern string) (Decoder, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	named := 0
	for _, name := range re.SubexpNames() {
		if name != "" {
			named++
		}
	}
	if named == 0 {
		return nil, errors.New("pattern must contain at least one named capture group")
	}

	return func(body []byte) ([]Field, error) {
		idx := re.FindSubmatchIndex(body)
		if idx == nil {
			return nil, ErrNoFields
		}

		var fields []Field
		for i, name := range re.SubexpNames() {
			if name == "" || idx[2*i] < 0 {
				continue
			}
			fields = append(fields, Field{Key: name, Value: string(body[idx[2*i]:idx[2*i+1]])})
		}
		if len(fields) == 0 {
			return nil, ErrNoFields
		}
		return fields, nil
	}, nil
}

// MustRegexDecoder is like [RegexDecoder] but panics if the pattern is
// invalid.
//
// Use this for compile-time constant patterns where you want to fail fast
// on invalid regex. For runtime patterns, use [RegexDecoder] instead.
func MustRegexDecoder(pattern string) Decoder {
	dec, err := RegexDecoder(pattern)
	if err != nil {
		panic("pulsecam: invalid regex pattern: " + err.Error())
	}
	return dec
}

// FirstMatch returns a [Decoder] that tries multiple decoders in order,
// returning the rows of the first one that succeeds with at least one row.
//
// If every decoder fails, FirstMatch returns an error wrapping all of their
// errors.
//
// Example:
//
//	// Prefer the full JSON object, fall back to scraping the fragment
//	dec := pulsecam.FirstMatch(
//	    pulsecam.JSONDecoder,
//	    pulsecam.TableDecoder,
//	)
func FirstMatch(decoders ...Decoder) Decoder {
	return func(body []byte) ([]Field, error) {
		var errs []error
		for _, dec := range decoders {
			fields, err := dec(body)
			if err == nil && len(fields) > 0 {
				return fields, nil
			}
			if err == nil {
				err = ErrNoFields
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return nil, ErrNoFields
		}
		return nil, fmt.Errorf("no decoder matched: %w", errors.Join(errs...))
	}
}

// DefaultDecoder returns the [Decoder] matching the device representation:
// [TableDecoder] for [ModeHTML] and [JSONDecoder] for [ModeJSON].
func DefaultDecoder(m Mode) Decoder {
	if m == ModeJSON {
		return JSONDecoder
	}
	return TableDecoder
}

// statusDecoder adapts a [Decoder] to the status loop. A nil decoder keeps
// the mode's built-in one, which passes a device fragment through untouched.
func statusDecoder(m Mode, d Decoder) poller.Decoder {
	if d == nil {
		return poller.Mode(m).Decoder()
	}
	return poller.DecoderFunc(func(body []byte) (poller.Snapshot, error) {
		fields, err := d(body)
		if err != nil {
			return poller.Snapshot{}, err
		}
		if len(fields) == 0 {
			return poller.Snapshot{}, ErrNoFields
		}
		fragment, err := render.Tbody(fields)
		if err != nil {
			return poller.Snapshot{}, err
		}
		return poller.Snapshot{Fragment: fragment, Fields: fields}, nil
	})
}
