// Package dashboard provides the embedded web UI assets for PulseCam.
//
// This package uses Go's embed directive to include the dashboard HTML, CSS,
// and JavaScript at compile time. This enables single-binary deployment
// without external asset files.
//
// The page keeps an EventSource open on /api/sse while the browser tab is
// visible and closes it while the tab is hidden. The relay counts open
// streams as viewers, so a hidden tab pauses status polling.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
