package pulsecam

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const deviceFragment = "<tbody><tr><td>Battery</td><td>87%</td></tr><tr><td>WiFi</td><td>-61 dBm</td></tr></tbody>"

const deviceJSON = `{"battery":"87%","wifi":{"rssi":-61},"uptime":3600}`

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockDevice serves the camera routes the loops poll.
type mockDevice struct {
	*httptest.Server

	statusHits atomic.Int32
	jsonHits   atomic.Int32
	imageHits  atomic.Int32

	// failStatus makes the status routes answer 503.
	failStatus atomic.Bool
}

func newMockDevice(t *testing.T) *mockDevice {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	frame := buf.Bytes()

	d := &mockDevice{}
	mux := http.NewServeMux()
	mux.HandleFunc("/status.html", func(w http.ResponseWriter, r *http.Request) {
		d.statusHits.Add(1)
		if d.failStatus.Load() {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, deviceFragment)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		d.jsonHits.Add(1)
		if d.failStatus.Load() {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, deviceJSON)
	})
	mux.HandleFunc("/i/latest.jpg", func(w http.ResponseWriter, r *http.Request) {
		d.imageHits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(frame)
	})

	d.Server = httptest.NewServer(mux)
	t.Cleanup(d.Close)
	return d
}

func (d *mockDevice) device(t *testing.T, opts ...DeviceOption) Device {
	t.Helper()
	dev, err := NewDevice(d.URL, opts...)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	return dev
}

// fastLoops keeps real-clock tests short.
func fastLoops() []Option {
	return []Option{
		WithLogger(testLogger()),
		WithStatusBackoff(20*time.Millisecond, 100*time.Millisecond),
		WithImageBackoff(20*time.Millisecond, 100*time.Millisecond, 1.7),
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
