package pulsecam

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"
)

func testDevice(t *testing.T) Device {
	t.Helper()
	dev, err := NewDevice("http://camera.local")
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	return dev
}

func TestNew_Valid(t *testing.T) {
	relay, err := New(testDevice(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.Device().URL() != "http://camera.local" {
		t.Errorf("Device().URL() = %v", relay.Device().URL())
	}
}

func TestNew_ZeroDevice(t *testing.T) {
	_, err := New(Device{})
	if err == nil {
		t.Fatal("New() expected error for zero device, got nil")
	}
	if !strings.Contains(err.Error(), "device is required") {
		t.Errorf("New() error = %v, want error containing 'device is required'", err)
	}

	if _, err := NewMonitor(Device{}); err == nil {
		t.Error("NewMonitor() expected error for zero device, got nil")
	}
}

func TestNew_Defaults(t *testing.T) {
	relay, err := New(testDevice(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if relay.Port() != 8080 {
		t.Errorf("Port() = %v, want %v", relay.Port(), 8080)
	}
	if !relay.PauseWhenIdle() {
		t.Error("PauseWhenIdle() = false, want true")
	}
	if relay.title != "" {
		t.Errorf("title = %q, want empty string", relay.title)
	}
	if relay.cfg.statusBase != 0 || relay.cfg.imageGrowth != 0 {
		t.Error("loop timing should be left to the loop defaults")
	}
}

func TestWithPort(t *testing.T) {
	relay, err := New(testDevice(t), WithPort(9090))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.Port() != 9090 {
		t.Errorf("Port() = %v, want %v", relay.Port(), 9090)
	}
}

func TestWithPort_Invalid(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero", 0},
		{"negative", -1},
		{"too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(testDevice(t), WithPort(tt.port))
			if err == nil {
				t.Errorf("New() expected error for port %d, got nil", tt.port)
			}
		})
	}
}

func TestWithPort_ValidEdgeCases(t *testing.T) {
	for _, port := range []int{1, 65535} {
		relay, err := New(testDevice(t), WithPort(port))
		if err != nil {
			t.Errorf("New() unexpected error for port %d: %v", port, err)
			continue
		}
		if relay.Port() != port {
			t.Errorf("Port() = %v, want %v", relay.Port(), port)
		}
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	relay, err := New(testDevice(t), WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.logger != logger {
		t.Error("WithLogger() logger was not used")
	}
}

func TestWithLogger_Nil(t *testing.T) {
	_, err := New(testDevice(t), WithLogger(nil))
	if err == nil {
		t.Fatal("New() expected error for nil logger, got nil")
	}
	if !strings.Contains(err.Error(), "logger cannot be nil") {
		t.Errorf("New() error = %v, want error containing 'logger cannot be nil'", err)
	}
}

func TestWithLogger_DefaultsToSlogDefault(t *testing.T) {
	relay, err := New(testDevice(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
}

func TestWithTitle(t *testing.T) {
	relay, err := New(testDevice(t), WithTitle("Garden Cam"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.title != "Garden Cam" {
		t.Errorf("title = %q, want %q", relay.title, "Garden Cam")
	}
}

func TestWithPauseWhenIdle(t *testing.T) {
	relay, err := New(testDevice(t), WithPauseWhenIdle(false))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.PauseWhenIdle() {
		t.Error("PauseWhenIdle() = true, want false")
	}
}

func TestWithHTTPClient(t *testing.T) {
	hc := &http.Client{}
	relay, err := New(testDevice(t), WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.cfg.httpClient != hc {
		t.Error("WithHTTPClient() client was not kept")
	}

	if _, err := New(testDevice(t), WithHTTPClient(nil)); err == nil {
		t.Error("New() expected error for nil http client, got nil")
	}
}

func TestWithStatusBackoff(t *testing.T) {
	relay, err := New(testDevice(t), WithStatusBackoff(time.Second, 30*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if relay.cfg.statusBase != time.Second || relay.cfg.statusMax != 30*time.Second {
		t.Errorf("status timing = %v/%v", relay.cfg.statusBase, relay.cfg.statusMax)
	}
}

func TestWithStatusBackoff_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		base, max time.Duration
	}{
		{"zero base", 0, time.Second},
		{"negative base", -time.Second, time.Second},
		{"max below base", 2 * time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(testDevice(t), WithStatusBackoff(tt.base, tt.max)); err == nil {
				t.Errorf("New() expected error for %v/%v, got nil", tt.base, tt.max)
			}
		})
	}
}

func TestWithImageBackoff_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		min, max time.Duration
		growth   float64
	}{
		{"zero min", 0, time.Second, 1.7},
		{"max below min", 2 * time.Second, time.Second, 1.7},
		{"no growth", time.Second, 2 * time.Second, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(testDevice(t), WithImageBackoff(tt.min, tt.max, tt.growth)); err == nil {
				t.Errorf("New() expected error for %v/%v/%v, got nil", tt.min, tt.max, tt.growth)
			}
		})
	}
}

func TestWithCallbacks_NilIgnored(t *testing.T) {
	relay, err := New(testDevice(t),
		WithSnapshotCallback(nil),
		WithFrameCallback(nil),
	)
	if err != nil {
		t.Fatalf("New() error = %v, want nil (nil callback should be accepted)", err)
	}
	if len(relay.cfg.snapshotCallbacks) != 0 || len(relay.cfg.frameCallbacks) != 0 {
		t.Error("nil callbacks should not be registered")
	}
}

func TestNewMonitor_IgnoresRelayOptions(t *testing.T) {
	mon, err := NewMonitor(testDevice(t),
		WithPort(9090),
		WithTitle("ignored"),
		WithPauseWhenIdle(true),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	if st := mon.Stats(); !st.Visible {
		t.Error("a new monitor should start visible")
	}
}
