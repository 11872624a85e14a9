// Package mockcam is a stand-in for a small HTTP camera. It serves the same
// three routes a real device does and goes offline now and then, so the
// relay's backoff can be watched without hardware.
package mockcam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	frameWidth  = 320
	frameHeight = 240
)

// Camera is a simulated device. The zero value is not usable; call [New].
type Camera struct {
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	bootedAt     time.Time
	heapFree     int
	offlineUntil time.Time
	nextOutage   time.Time
	frames       int
}

// New returns a camera that has just booted.
func New(logger *slog.Logger) *Camera {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Camera{
		logger:     logger,
		now:        time.Now,
		bootedAt:   now,
		heapFree:   180_000,
		nextOutage: now.Add(outageGap()),
	}
}

// outageGap is how long the camera stays up between outages.
func outageGap() time.Duration {
	return time.Duration(45+rand.Intn(45)) * time.Second
}

// Handler serves /status.html, /json and /i/latest.jpg.
func (c *Camera) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status.html", c.online(c.handleFragment))
	mux.HandleFunc("/json", c.online(c.handleJSON))
	mux.HandleFunc("/i/latest.jpg", c.online(c.handleImage))
	return mux
}

// SetOffline makes every route answer 503 for d.
func (c *Camera) SetOffline(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offlineUntil = c.now().Add(d)
}

// online answers 503 while the camera is in an outage. Outages start on
// their own every minute or so and last 10-20 seconds.
func (c *Camera) online(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		now := c.now()
		if !c.nextOutage.IsZero() && now.After(c.nextOutage) {
			d := time.Duration(10+rand.Intn(11)) * time.Second
			c.offlineUntil = now.Add(d)
			c.nextOutage = c.offlineUntil.Add(outageGap())
			c.logger.Info("camera going offline", "for", d.String())
		}
		offline := now.Before(c.offlineUntil)
		c.mu.Unlock()

		if offline {
			http.Error(w, "camera busy", http.StatusServiceUnavailable)
			return
		}

		// small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)
		next(w, r)
	}
}

type reading struct {
	key   string
	value any
}

// readings returns the status rows in display order.
func (c *Camera) readings() []reading {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.heapFree += rand.Intn(2001) - 1000
	uptime := c.now().Sub(c.bootedAt).Round(time.Second)

	return []reading{
		{"chipModel", "ESP32-S3"},
		{"uptime", uptime.String()},
		{"heapFree", c.heapFree},
		{"wifiRSSI", -55 - rand.Intn(20)},
		{"framesServed", c.frames},
	}
}

func (c *Camera) handleFragment(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	buf.WriteString("<tbody>")
	for _, rd := range c.readings() {
		fmt.Fprintf(&buf, "<tr><td>%s</td><td>%s</td></tr>",
			html.EscapeString(rd.key), html.EscapeString(fmt.Sprint(rd.value)))
	}
	buf.WriteString("</tbody>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Debug("failed to write fragment", "error", err)
	}
}

func (c *Camera) handleJSON(w http.ResponseWriter, r *http.Request) {
	// written by hand to keep the device's key order
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rd := range c.readings() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(rd.key)
		v, _ := json.Marshal(rd.value)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Debug("failed to write json", "error", err)
	}
}

func (c *Camera) handleImage(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.frames++
	n := c.frames
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, renderFrame(n), &jpeg.Options{Quality: 70}); err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Debug("failed to write image", "error", err)
	}
}

// renderFrame draws a gradient with a bar that moves one step per frame.
func renderFrame(n int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	bar := (n * 16) % frameWidth
	for y := 0; y < frameHeight; y++ {
		for x := 0; x < frameWidth; x++ {
			c := color.RGBA{R: uint8(x * 255 / frameWidth), G: uint8(y * 255 / frameHeight), B: 96, A: 255}
			if x >= bar && x < bar+12 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
