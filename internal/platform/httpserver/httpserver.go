// Package httpserver builds the worker's ops listener (health and metrics).
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with conservative timeouts. The ops surface only
// serves probes and the metrics scrape, so short deadlines are safe.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
