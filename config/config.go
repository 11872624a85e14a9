// Package config provides YAML configuration parsing for PulseCam.
//
// This package enables running PulseCam as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Garden Cam
//	port: 8080
//	device_url: http://${CAM_HOST:-192.168.4.1}
//	device_name: Garden
//	mode: json
//	headers:
//	  Authorization: Bearer ${CAM_TOKEN}
//	decoder: fields:battery,wifi.rssi
//	pause_when_idle: true
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/jpalmerr/pulsecam"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort      = 8080
	defaultImagePath = "/i/latest.jpg"
)

// Config is the root configuration structure for PulseCam.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML, or [Default] when
// every value comes from flags and the environment.
type Config struct {
	// Title is the dashboard title. Defaults to "PulseCam" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// DeviceURL is the camera's base URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	DeviceURL string `yaml:"device_url"`

	// DeviceName is the display name. Defaults to the URL's host.
	DeviceName string `yaml:"device_name"`

	// Mode selects the status endpoint: "html" (/status.html) or "json" (/json).
	// Defaults to html.
	Mode string `yaml:"mode"`

	// ImagePath is the snapshot path on the device. Defaults to /i/latest.jpg.
	ImagePath string `yaml:"image_path"`

	// Headers are custom HTTP headers sent with every device request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Decoder turns the status body into rows.
	// Can be shorthand ("fields:a,b.c", "regex:...") or structured.
	Decoder DecoderConfig `yaml:"decoder"`

	// PauseWhenIdle stops status polling while no dashboard is open.
	// Defaults to true.
	PauseWhenIdle *bool `yaml:"pause_when_idle"`
}

// DecoderConfig specifies how status rows are read from a response.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	decoder: table
//	decoder: json
//	decoder: fields:battery,wifi.rssi
//	decoder: regex:Battery:\s*(?P<battery>\d+%)
//	decoder: default
//
// Structured object:
//
//	decoder:
//	  type: fields
//	  paths: [battery, wifi.rssi]
type DecoderConfig struct {
	// Type is the decoder type: "default", "table", "json", "fields", "regex".
	Type string

	// Paths are dot-separated JSON paths (for type: fields).
	Paths []string

	// Pattern is a regular expression with named groups (for type: regex).
	Pattern string
}

// UnmarshalYAML implements yaml.Unmarshaler for DecoderConfig.
func (d *DecoderConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return d.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type    string   `yaml:"type"`
			Paths   []string `yaml:"paths"`
			Pattern string   `yaml:"pattern"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		d.Type = raw.Type
		d.Paths = raw.Paths
		d.Pattern = raw.Pattern
		return nil
	}

	return fmt.Errorf("decoder must be a string or object, got %v", node.Kind)
}

// parseShorthand parses decoder shorthand syntax.
//
// Supported formats:
//   - "default" → the mode's own decoder
//   - "table" → rows of a <tbody> fragment
//   - "json" → top-level keys of a JSON object
//   - "fields:a,b.c" → selected JSON paths
//   - "regex:pattern" → named groups of a pattern
func (d *DecoderConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	switch s {
	case "default", "table", "json":
		d.Type = s
		return nil
	}

	idx := strings.Index(s, ":")
	if idx == -1 {
		return fmt.Errorf("unknown decoder %q (expected 'default', 'table', 'json', 'fields:paths', or 'regex:pattern')", s)
	}

	d.Type = s[:idx]
	value := s[idx+1:]
	switch d.Type {
	case "fields":
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				d.Paths = append(d.Paths, p)
			}
		}
	case "regex":
		d.Pattern = value
	default:
		return fmt.Errorf("unknown decoder type %q", d.Type)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns a Config holding only defaults. It is not validated;
// call [Config.Validate] once the remaining values are filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in DeviceURL and Header values.
// Defaults are applied for Port (8080), Mode (html), ImagePath
// (/i/latest.jpg) and PauseWhenIdle (true).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Mode == "" {
		c.Mode = string(pulsecam.ModeHTML)
	}
	if c.ImagePath == "" {
		c.ImagePath = defaultImagePath
	}
	if c.PauseWhenIdle == nil {
		pause := true
		c.PauseWhenIdle = &pause
	}
}

// Pausing reports whether status polling pauses while nobody is watching.
func (c *Config) Pausing() bool {
	return c.PauseWhenIdle == nil || *c.PauseWhenIdle
}

// Validate expands environment variables and checks every field.
// Calling it again on an already validated Config is harmless.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.DeviceURL == "" {
		return errors.New("device_url is required")
	}
	expanded, err := expandEnvVars(c.DeviceURL)
	if err != nil {
		return fmt.Errorf("device_url: %w", err)
	}
	c.DeviceURL = expanded

	parsedURL, err := url.Parse(c.DeviceURL)
	if err != nil {
		return fmt.Errorf("device_url: invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("device_url: url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("device_url: url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("device_url: url must have a host")
	}

	if c.DeviceName != "" && strings.TrimSpace(c.DeviceName) == "" {
		return errors.New("device_name cannot be blank")
	}

	mode, err := pulsecam.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	c.Mode = string(mode)

	if !strings.HasPrefix(c.ImagePath, "/") {
		return fmt.Errorf("image_path must start with /, got %q", c.ImagePath)
	}
	if strings.ContainsAny(c.ImagePath, "?#") {
		return fmt.Errorf("image_path cannot carry a query or fragment, got %q", c.ImagePath)
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	return validateDecoder(&c.Decoder)
}

// validateDecoder validates a decoder configuration.
func validateDecoder(d *DecoderConfig) error {
	switch d.Type {
	case "", "default", "table", "json":
		// no additional validation needed
	case "fields":
		if len(d.Paths) == 0 {
			return errors.New("decoder: type 'fields' requires at least one path")
		}
	case "regex":
		if d.Pattern == "" {
			return errors.New("decoder: type 'regex' requires a pattern")
		}
		if _, err := pulsecam.RegexDecoder(d.Pattern); err != nil {
			return fmt.Errorf("decoder: %w", err)
		}
	default:
		return fmt.Errorf("decoder: unknown type %q", d.Type)
	}
	return nil
}
