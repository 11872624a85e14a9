package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/pulsecam"
)

// BuildDevice converts parsed configuration into an SDK Device.
func BuildDevice(cfg *Config) (pulsecam.Device, error) {
	opts := []pulsecam.DeviceOption{
		pulsecam.WithMode(pulsecam.Mode(cfg.Mode)),
	}

	if cfg.DeviceName != "" {
		opts = append(opts, pulsecam.WithName(cfg.DeviceName))
	}

	if cfg.ImagePath != "" {
		opts = append(opts, pulsecam.WithImagePath(cfg.ImagePath))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, pulsecam.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	decoder, err := buildDecoder(cfg.Decoder)
	if err != nil {
		return pulsecam.Device{}, err
	}
	if decoder != nil {
		opts = append(opts, pulsecam.WithDecoder(decoder))
	}

	return pulsecam.NewDevice(cfg.DeviceURL, opts...)
}

// BuildOptions converts the relay settings of cfg into SDK options.
// A nil logger leaves the SDK default in place.
func BuildOptions(cfg *Config, logger *slog.Logger) []pulsecam.Option {
	opts := []pulsecam.Option{
		pulsecam.WithPort(cfg.Port),
		pulsecam.WithPauseWhenIdle(cfg.Pausing()),
	}
	if cfg.Title != "" {
		opts = append(opts, pulsecam.WithTitle(cfg.Title))
	}
	if logger != nil {
		opts = append(opts, pulsecam.WithLogger(logger))
	}
	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildDecoder converts DecoderConfig to a Decoder.
// Returns nil for default/empty decoders (the device mode decides).
func buildDecoder(dc DecoderConfig) (pulsecam.Decoder, error) {
	switch dc.Type {
	case "table":
		return pulsecam.TableDecoder, nil
	case "json":
		return pulsecam.JSONDecoder, nil
	case "fields":
		return pulsecam.JSONFieldsDecoder(dc.Paths...), nil
	case "regex":
		return pulsecam.RegexDecoder(dc.Pattern)
	default:
		// nil signals the SDK to use the mode's decoder
		return nil, nil
	}
}
