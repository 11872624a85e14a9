package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
device_url: http://192.168.4.1
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Mode != "html" {
		t.Errorf("Mode = %q, want html", cfg.Mode)
	}
	if cfg.ImagePath != "/i/latest.jpg" {
		t.Errorf("ImagePath = %q, want /i/latest.jpg", cfg.ImagePath)
	}
	if !cfg.Pausing() {
		t.Error("Pausing() = false, want true")
	}
	if cfg.Decoder.Type != "" {
		t.Errorf("Decoder.Type = %q, want empty", cfg.Decoder.Type)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Garden Cam
port: 9090
device_url: https://cams.example.com/garden
device_name: Garden
mode: JSON
image_path: /capture.jpg
headers:
  Authorization: Bearer token123
  X-Site: garden
decoder: fields:battery, wifi.rssi
pause_when_idle: false
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Garden Cam" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Garden Cam")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.DeviceURL != "https://cams.example.com/garden" {
		t.Errorf("DeviceURL = %q", cfg.DeviceURL)
	}
	if cfg.DeviceName != "Garden" {
		t.Errorf("DeviceName = %q, want Garden", cfg.DeviceName)
	}
	if cfg.Mode != "json" {
		t.Errorf("Mode = %q, want json (normalised)", cfg.Mode)
	}
	if cfg.ImagePath != "/capture.jpg" {
		t.Errorf("ImagePath = %q, want /capture.jpg", cfg.ImagePath)
	}
	if cfg.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Headers[Authorization] = %q, want %q", cfg.Headers["Authorization"], "Bearer token123")
	}
	if cfg.Decoder.Type != "fields" {
		t.Errorf("Decoder.Type = %q, want fields", cfg.Decoder.Type)
	}
	if !reflect.DeepEqual(cfg.Decoder.Paths, []string{"battery", "wifi.rssi"}) {
		t.Errorf("Decoder.Paths = %v", cfg.Decoder.Paths)
	}
	if cfg.Pausing() {
		t.Error("Pausing() = true, want false")
	}
}

func TestParse_DecoderShorthand(t *testing.T) {
	tests := []struct {
		name        string
		decoder     string
		wantType    string
		wantPaths   []string
		wantPattern string
		wantErr     bool
	}{
		{"default", "default", "default", nil, "", false},
		{"table", "table", "table", nil, "", false},
		{"json", "json", "json", nil, "", false},
		{"fields", "fields:battery", "fields", []string{"battery"}, "", false},
		{"fields list", "fields:a.b,c,,d", "fields", []string{"a.b", "c", "d"}, "", false},
		{"regex", `'regex:Battery:\s*(?P<battery>\d+%)'`, "regex", nil, `Battery:\s*(?P<battery>\d+%)`, false},
		{"unknown bare", "contains", "", nil, "", true},
		{"unknown type", "xpath://td", "", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "device_url: http://camera.local\ndecoder: " + tt.decoder + "\n"
			cfg, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Decoder.Type != tt.wantType {
				t.Errorf("Decoder.Type = %q, want %q", cfg.Decoder.Type, tt.wantType)
			}
			if !reflect.DeepEqual(cfg.Decoder.Paths, tt.wantPaths) {
				t.Errorf("Decoder.Paths = %v, want %v", cfg.Decoder.Paths, tt.wantPaths)
			}
			if cfg.Decoder.Pattern != tt.wantPattern {
				t.Errorf("Decoder.Pattern = %q, want %q", cfg.Decoder.Pattern, tt.wantPattern)
			}
		})
	}
}

func TestParse_DecoderStructured(t *testing.T) {
	yaml := `
device_url: http://camera.local
decoder:
  type: fields
  paths: [battery, sd.free]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Decoder.Type != "fields" {
		t.Errorf("Decoder.Type = %q, want fields", cfg.Decoder.Type)
	}
	if !reflect.DeepEqual(cfg.Decoder.Paths, []string{"battery", "sd.free"}) {
		t.Errorf("Decoder.Paths = %v", cfg.Decoder.Paths)
	}
}

func TestParse_DecoderSequenceRejected(t *testing.T) {
	yaml := `
device_url: http://camera.local
decoder: [table, json]
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "decoder must be a string or object") {
		t.Errorf("error = %v", err)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("CAM_HOST", "10.0.0.7")
	t.Setenv("CAM_TOKEN", "secret")

	yaml := `
device_url: http://${CAM_HOST}
headers:
  Authorization: Bearer ${CAM_TOKEN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.DeviceURL != "http://10.0.0.7" {
		t.Errorf("DeviceURL = %q, want %q", cfg.DeviceURL, "http://10.0.0.7")
	}
	if cfg.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Headers[Authorization] = %q, want %q", cfg.Headers["Authorization"], "Bearer secret")
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
device_url: http://${PULSECAM_TEST_UNSET_HOST:-192.168.4.1}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.DeviceURL != "http://192.168.4.1" {
		t.Errorf("DeviceURL = %q, want %q", cfg.DeviceURL, "http://192.168.4.1")
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "in url",
			yaml:    "device_url: http://${PULSECAM_TEST_MISSING}\n",
			wantErr: "device_url",
		},
		{
			name:    "in header",
			yaml:    "device_url: http://camera.local\nheaders:\n  X-Token: ${PULSECAM_TEST_MISSING}\n",
			wantErr: "headers[X-Token]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) || !strings.Contains(err.Error(), "PULSECAM_TEST_MISSING") {
				t.Errorf("error = %q, want to contain %q and the variable name", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing device url",
			yaml:    "title: Nothing\n",
			wantErr: "device_url is required",
		},
		{
			name:    "no scheme",
			yaml:    "device_url: 192.168.4.1\n",
			wantErr: "url must have a scheme",
		},
		{
			name:    "ftp scheme",
			yaml:    "device_url: ftp://camera.local\n",
			wantErr: "url scheme must be http or https",
		},
		{
			name:    "no host",
			yaml:    "device_url: http://\n",
			wantErr: "url must have a host",
		},
		{
			name:    "port too high",
			yaml:    "device_url: http://camera.local\nport: 70000\n",
			wantErr: "port must be between 1 and 65535",
		},
		{
			name:    "negative port",
			yaml:    "device_url: http://camera.local\nport: -1\n",
			wantErr: "port must be between 1 and 65535",
		},
		{
			name:    "unknown mode",
			yaml:    "device_url: http://camera.local\nmode: xml\n",
			wantErr: "mode:",
		},
		{
			name:    "relative image path",
			yaml:    "device_url: http://camera.local\nimage_path: latest.jpg\n",
			wantErr: "image_path must start with /",
		},
		{
			name:    "image path with query",
			yaml:    "device_url: http://camera.local\nimage_path: /latest.jpg?size=small\n",
			wantErr: "image_path cannot carry a query",
		},
		{
			name:    "blank device name",
			yaml:    "device_url: http://camera.local\ndevice_name: \"   \"\n",
			wantErr: "device_name cannot be blank",
		},
		{
			name:    "fields without paths",
			yaml:    "device_url: http://camera.local\ndecoder:\n  type: fields\n",
			wantErr: "requires at least one path",
		},
		{
			name:    "regex without pattern",
			yaml:    "device_url: http://camera.local\ndecoder:\n  type: regex\n",
			wantErr: "requires a pattern",
		},
		{
			name:    "regex without named groups",
			yaml:    "device_url: http://camera.local\ndecoder:\n  type: regex\n  pattern: 'Battery: (\\d+)'\n",
			wantErr: "named capture group",
		},
		{
			name:    "structured unknown type",
			yaml:    "device_url: http://camera.local\ndecoder:\n  type: xpath\n",
			wantErr: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("device_url: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefault_ValidateAfterOverlay(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error without a device url, got nil")
	}

	cfg.DeviceURL = "http://camera.local"
	cfg.Mode = "Json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Mode != "json" {
		t.Errorf("Mode = %q, want json", cfg.Mode)
	}

	// validating twice keeps the result
	if err := cfg.Validate(); err != nil {
		t.Fatalf("second Validate() error = %v", err)
	}
	if cfg.Port != 8080 || cfg.ImagePath != "/i/latest.jpg" || !cfg.Pausing() {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulsecam.yaml")
	if err := os.WriteFile(path, []byte("device_url: http://camera.local\ntitle: Porch\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Title != "Porch" {
		t.Errorf("Title = %q, want Porch", cfg.Title)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	} else if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestParse_TitleEmpty(t *testing.T) {
	cfg, err := Parse([]byte("device_url: http://camera.local\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// empty title is valid (defaults to "PulseCam" at render time)
	if cfg.Title != "" {
		t.Errorf("Title = %q, want empty string", cfg.Title)
	}
}
