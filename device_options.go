package pulsecam

import (
	"errors"
	"strings"
)

// deviceConfig holds mutable state during device construction.
type deviceConfig struct {
	name      string
	mode      Mode
	headers   map[string]string
	imagePath string
	decoder   Decoder
}

// DeviceOption is a function that configures a [Device] during construction.
//
// DeviceOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewDevice] in a type-safe, extensible way.
// Options return an error if validation fails.
type DeviceOption func(*deviceConfig) error

// WithName sets the display name used in the dashboard title bar and logs.
//
// Returns an error if the name is empty.
func WithName(name string) DeviceOption {
	return func(cfg *deviceConfig) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("device name cannot be empty")
		}
		cfg.name = name
		return nil
	}
}

// WithHeaders adds custom HTTP headers to every request sent to the device.
//
// Use this for devices behind an authenticating proxy.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	dev, err := pulsecam.NewDevice(url,
//	    pulsecam.WithHeaders("Authorization", "Bearer token123"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) DeviceOption {
	return func(cfg *deviceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithMode selects the status representation: [ModeHTML] polls
// /status.html, [ModeJSON] polls /json.
//
// Returns an error for an unknown mode.
func WithMode(m Mode) DeviceOption {
	return func(cfg *deviceConfig) error {
		parsed, err := ParseMode(string(m))
		if err != nil {
			return err
		}
		cfg.mode = parsed
		return nil
	}
}

// WithImagePath sets the path of the image resource, relative to the device
// URL. Defaults to "/i/latest.jpg".
//
// Returns an error if the path does not start with "/" or carries a query.
func WithImagePath(path string) DeviceOption {
	return func(cfg *deviceConfig) error {
		if !strings.HasPrefix(path, "/") {
			return errors.New("image path must start with /")
		}
		if strings.ContainsAny(path, "?#") {
			return errors.New("image path must not have a query or fragment")
		}
		cfg.imagePath = path
		return nil
	}
}

// WithDecoder sets a custom [Decoder] for the status body.
//
// If not specified, the device uses the mode's built-in decoder, which keeps
// a /status.html fragment exactly as the device rendered it. A custom
// decoder's rows are re-rendered as <tbody> markup.
//
// Example:
//
//	dev, err := pulsecam.NewDevice(url,
//	    pulsecam.WithMode(pulsecam.ModeJSON),
//	    pulsecam.WithDecoder(pulsecam.JSONFieldsDecoder("battery", "wifi.rssi")),
//	)
func WithDecoder(d Decoder) DeviceOption {
	return func(cfg *deviceConfig) error {
		cfg.decoder = d
		return nil
	}
}
