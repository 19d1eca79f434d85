package main

import (
	"context"
	"net"
	"net/http"
	"time"
)

// newServer builds the API server. WriteTimeout stays unset because
// /api/v1/events streams for as long as the client listens; request contexts
// derive from ctx so open streams end on the shutdown signal.
func newServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
