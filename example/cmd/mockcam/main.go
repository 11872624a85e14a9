// Standalone mock camera for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockcam
//
// Then in another terminal:
//
//	go run ./cmd/pulsecam serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jpalmerr/pulsecam/example/mockcam"
)

func main() {
	fmt.Println("Mock camera starting on :9999")
	fmt.Println("Routes: /status.html, /json, /i/latest.jpg")
	fmt.Println("The camera answers 503 for 10-20s every minute or so")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	srv := &http.Server{
		Addr:              ":9999",
		Handler:           mockcam.New(slog.Default()).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
