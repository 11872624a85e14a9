package pulsecam

import (
	"errors"
	"net/url"
	"strings"
)

const defaultImagePath = "/i/latest.jpg"

// Device represents the networked camera whose status and image are kept
// fresh.
//
// Device is immutable after creation via [NewDevice]. All fields are private
// with getter methods that return copies of mutable data (maps), ensuring the
// device cannot be modified after construction.
//
// Devices are configured using the functional options pattern with
// [DeviceOption] functions such as [WithName], [WithHeaders], [WithMode],
// [WithImagePath] and [WithDecoder].
type Device struct {
	name      string
	baseURL   string
	mode      Mode
	headers   map[string]string
	imagePath string
	decoder   Decoder
}

// Name returns the device's display name.
// Defaults to the host part of the device URL.
func (d Device) Name() string {
	return d.name
}

// URL returns the device's base URL, without a trailing slash.
func (d Device) URL() string {
	return d.baseURL
}

// Mode returns the status representation fetched from the device.
func (d Device) Mode() Mode {
	return d.mode
}

// Headers returns a copy of the device's custom HTTP headers.
// These headers are sent with every status and image request.
// Returns nil if no custom headers are set.
func (d Device) Headers() map[string]string {
	return copyMap(d.headers)
}

// Decoder returns the device's custom [Decoder].
// Returns nil if none was set, in which case the mode's built-in decoder is
// used.
func (d Device) Decoder() Decoder {
	return d.decoder
}

// StatusURL returns the URL polled by the status loop.
func (d Device) StatusURL() string {
	return d.baseURL + d.mode.Path()
}

// ImageURL returns the image URL before cache busting.
func (d Device) ImageURL() string {
	return d.baseURL + d.imagePath
}

// NewDevice creates a [Device] for the camera at rawURL.
//
// The rawURL parameter must be a valid http:// or https:// URL with a host.
// A path is kept as a prefix, so a device behind a reverse proxy can be
// addressed as "https://proxy.example.com/cam1".
//
// Options are applied in order using the functional options pattern.
//
// Returns an error if the URL is invalid or an option fails.
//
// Example:
//
//	dev, err := pulsecam.NewDevice("http://192.168.4.1",
//	    pulsecam.WithName("Garden"),
//	    pulsecam.WithMode(pulsecam.ModeJSON),
//	)
func NewDevice(rawURL string, opts ...DeviceOption) (Device, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Device{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Device{}, errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsedURL.Host == "" {
		return Device{}, errors.New("URL must have a host")
	}
	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return Device{}, errors.New("URL must not have a query or fragment")
	}

	cfg := &deviceConfig{
		name:      parsedURL.Hostname(),
		mode:      ModeHTML,
		headers:   make(map[string]string),
		imagePath: defaultImagePath,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Device{}, err
		}
	}

	return Device{
		name:      cfg.name,
		baseURL:   strings.TrimRight(parsedURL.String(), "/"),
		mode:      cfg.mode,
		headers:   cfg.headers,
		imagePath: cfg.imagePath,
		decoder:   cfg.decoder,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
