package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jpalmerr/pulsecam/example/mockcam"
)

// StartMockCamera runs a simulated camera on addr. It blocks, so call it in
// a goroutine before creating the relay.
func StartMockCamera(addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mockcam.New(slog.Default().With("component", "mockcam")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("mock camera error", "error", err)
	}
}
