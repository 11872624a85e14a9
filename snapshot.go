package pulsecam

import (
	"time"

	"github.com/jpalmerr/pulsecam/internal/poller"
	"github.com/jpalmerr/pulsecam/internal/render"
	"github.com/jpalmerr/pulsecam/internal/store"
)

// Field is one row of the device status table: a label and its value.
type Field = render.Field

// Mode selects which status representation is fetched from the device.
//
// Mode is a string type so that it reads naturally in configuration files
// and logs. Use [ParseMode] to validate user input.
type Mode string

const (
	// ModeHTML fetches the device's ready-made <tbody> fragment from
	// /status.html. This is the default.
	ModeHTML Mode = "html"

	// ModeJSON fetches the flat JSON object served at /json and renders the
	// table rows locally.
	ModeJSON Mode = "json"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Path returns the device path that serves the representation.
func (m Mode) Path() string {
	return poller.Mode(m).Path()
}

// ParseMode validates a mode name, case-insensitively. The empty string
// selects [ModeHTML].
func ParseMode(s string) (Mode, error) {
	m, err := poller.ParseMode(s)
	if err != nil {
		return "", err
	}
	return Mode(m), nil
}

// Snapshot is one status table applied by the status loop.
//
// Snapshots are only delivered for the live generation: a result that was
// superseded, timed out, or arrived after the loop was paused is dropped
// before it reaches any callback.
type Snapshot struct {
	// Generation is the status loop tick that produced the snapshot.
	// It is strictly increasing across snapshots of one [Monitor].
	Generation uint64

	// Fragment is the <tbody>…</tbody> markup of the table.
	Fragment string

	// Fields are the table rows in device order.
	Fields []Field

	// FetchedAt is when the snapshot was applied.
	FetchedAt time.Time

	// Latency is the duration of the HTTP request.
	Latency time.Duration
}

// Frame is one image that loaded successfully.
type Frame struct {
	// Body is the encoded image.
	Body []byte

	// ContentType is the Content-Type reported by the device.
	ContentType string

	// Format is the name of the decoder that accepted the body
	// ("jpeg", "png", "gif" or "webp").
	Format string

	// Width and Height are the decoded dimensions in pixels.
	Width  int
	Height int

	// URL is the cache-busted URL the frame was loaded from.
	URL string

	// FetchedAt is when the frame was applied.
	FetchedAt time.Time

	// Latency is the duration of the HTTP request.
	Latency time.Duration
}

// Stats is a point-in-time view of a [Monitor]'s loops.
type Stats struct {
	// Generation is the live generation of the status loop.
	Generation uint64

	// Failures is the number of consecutive failed status fetches.
	Failures int

	// NextDelay is the delay of the most recently armed status timer.
	NextDelay time.Duration

	// Polling reports whether the status loop is running (visible).
	Polling bool

	// InFlight reports whether a status fetch is outstanding.
	InFlight bool

	// Visible is the state last reported to the visibility gate.
	Visible bool

	// ImageInterval is the current delay between image probes.
	ImageInterval time.Duration

	// ImageProbes is the number of image probes started.
	ImageProbes uint64
}

func snapshotFromPoller(s poller.Snapshot) Snapshot {
	return Snapshot{
		Generation: s.Generation,
		Fragment:   s.Fragment,
		Fields:     copyFields(s.Fields),
		FetchedAt:  s.FetchedAt,
		Latency:    s.Latency,
	}
}

func frameFromPoller(f poller.Frame) Frame {
	return Frame{
		Body:        copyBytes(f.Body),
		ContentType: f.ContentType,
		Format:      f.Format,
		Width:       f.Width,
		Height:      f.Height,
		URL:         f.URL,
		FetchedAt:   f.FetchedAt,
		Latency:     f.Latency,
	}
}

func storeStatus(s poller.Snapshot) store.Status {
	return store.Status{
		Generation:     s.Generation,
		Fields:         s.Fields,
		Fragment:       s.Fragment,
		ResponseTimeMs: s.Latency.Milliseconds(),
		FetchedAt:      s.FetchedAt,
	}
}

func storeFrame(f poller.Frame) store.Frame {
	return store.Frame{
		Body:        f.Body,
		ContentType: f.ContentType,
		Format:      f.Format,
		Width:       f.Width,
		Height:      f.Height,
		URL:         f.URL,
		FetchedAt:   f.FetchedAt,
	}
}

// copyFields returns a copy of the slice, or nil if input is nil.
func copyFields(f []Field) []Field {
	if f == nil {
		return nil
	}
	return append([]Field(nil), f...)
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
