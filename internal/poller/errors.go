package poller

import (
	"errors"
	"fmt"
)

// ErrCanceled is the root of every cancellation cause used by the loops.
// Errors matching it are expected and never count as failures.
var ErrCanceled = errors.New("operation canceled")

// Cancellation causes attached to an in-flight operation's context.
var (
	ErrSuperseded = fmt.Errorf("superseded: %w", ErrCanceled)
	ErrTimeout    = fmt.Errorf("timeout: %w", ErrCanceled)
	ErrHidden     = fmt.Errorf("page hidden: %w", ErrCanceled)
	ErrStopped    = fmt.Errorf("stopped: %w", ErrCanceled)
)

// Stage identifies where a fetch failed.
type Stage string

const (
	StageRequest Stage = "request"
	StageStatus  Stage = "status"
	StageRead    Stage = "read"
	StageDecode  Stage = "decode"
)

// FetchError describes a retryable failure of a single fetch.
type FetchError struct {
	// Stage is the step that failed.
	Stage Stage

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (HTTP %d): %v", e.Stage, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsCancellation reports whether err is one of the expected cancellation
// causes rather than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// checkStatus converts a non-2xx response into a [FetchError].
func checkStatus(resp Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{
			Stage:      StageStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return nil
}
