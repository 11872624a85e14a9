package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/jpalmerr/pulsecam/internal/render"
)

// Snapshot is one decoded status table, as handed to a [Sink].
type Snapshot struct {
	// Generation is the tick that produced the snapshot.
	Generation uint64

	// Fragment is the <tbody>…</tbody> markup for the table body.
	Fragment string

	// Fields are the table rows in device order.
	Fields []render.Field

	// FetchedAt is when the response was applied.
	FetchedAt time.Time

	// Latency is the duration of the HTTP request.
	Latency time.Duration
}

// Decoder turns a response body into a [Snapshot]. Generation, FetchedAt and
// Latency are filled in by the poller.
type Decoder interface {
	Decode(body []byte) (Snapshot, error)
}

// DecoderFunc adapts a function to [Decoder].
type DecoderFunc func(body []byte) (Snapshot, error)

// Decode calls f(body).
func (f DecoderFunc) Decode(body []byte) (Snapshot, error) {
	return f(body)
}

// Mode selects which status representation is fetched from the device.
type Mode string

const (
	// ModeHTML fetches a ready-made <tbody> fragment.
	ModeHTML Mode = "html"

	// ModeJSON fetches a flat JSON object and renders it locally.
	ModeJSON Mode = "json"
)

// Path returns the device path serving the representation.
func (m Mode) Path() string {
	if m == ModeJSON {
		return "/json"
	}
	return "/status.html"
}

// Decoder returns the [Decoder] for the representation.
func (m Mode) Decoder() Decoder {
	if m == ModeJSON {
		return DecoderFunc(decodeJSON)
	}
	return DecoderFunc(decodeFragment)
}

// ParseMode validates a mode name. The empty string selects [ModeHTML].
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHTML:
		return ModeHTML, nil
	case ModeJSON:
		return ModeJSON, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected 'html' or 'json')", s)
	}
}

func decodeFragment(body []byte) (Snapshot, error) {
	fragment := strings.TrimSpace(string(body))
	fields, err := render.ParseTbody(fragment)
	if err != nil {
		return Snapshot{}, &FetchError{Stage: StageDecode, Err: err}
	}
	return Snapshot{Fragment: fragment, Fields: fields}, nil
}

func decodeJSON(body []byte) (Snapshot, error) {
	fields, err := render.ParseJSON(body)
	if err != nil {
		return Snapshot{}, &FetchError{Stage: StageDecode, Err: err}
	}
	fragment, err := render.Tbody(fields)
	if err != nil {
		return Snapshot{}, &FetchError{Stage: StageDecode, Err: err}
	}
	return Snapshot{Fragment: fragment, Fields: fields}, nil
}
