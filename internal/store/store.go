package store

import (
	"time"

	"github.com/jpalmerr/pulsecam/internal/render"
)

// Status is the latest applied status table.
//
// Status is the storage representation of a poller snapshot, shaped for JSON
// (used by the REST API and SSE).
type Status struct {
	// Generation is the poller tick that produced the table.
	Generation uint64 `json:"generation"`

	// Fields are the table rows in device order.
	Fields []render.Field `json:"fields"`

	// Fragment is the <tbody> markup of the table.
	Fragment string `json:"fragment"`

	// ResponseTimeMs is the request latency in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// FetchedAt is when the table was applied.
	FetchedAt time.Time `json:"fetched_at"`
}

// Frame is the last good image.
type Frame struct {
	// Body is the encoded image. It is served by the image endpoint and
	// never included in JSON.
	Body []byte `json:"-"`

	ContentType string    `json:"content_type"`
	Format      string    `json:"format"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	URL         string    `json:"url"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// EventType distinguishes store events.
type EventType string

const (
	EventStatus EventType = "status"
	EventFrame  EventType = "frame"
)

// Event is one update pushed to subscribers.
type Event struct {
	Type   EventType `json:"type"`
	Status *Status   `json:"status,omitempty"`
	Frame  *Frame    `json:"frame,omitempty"`
}

// Store holds the latest status and frame and fans updates out to
// subscribers.
//
// Store implementations must be safe for concurrent access. UpdateStatus and
// UpdateFrame are called from inside the polling loops and must not block.
type Store interface {
	// UpdateStatus replaces the stored status and notifies subscribers.
	UpdateStatus(s Status)

	// UpdateFrame replaces the stored frame and notifies subscribers.
	UpdateFrame(f Frame)

	// Status returns the stored status, false if none was applied yet.
	Status() (Status, bool)

	// Frame returns the stored frame, false if none was applied yet.
	Frame() (Frame, bool)

	// Subscribe returns a channel that receives events.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Event

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Event)

	// Subscribers returns the number of active subscriptions.
	Subscribers() int

	// WatchSubscribers registers fn to be called with the new count after
	// every Subscribe and Unsubscribe. Calls are serialized.
	WatchSubscribers(fn func(count int))
}
