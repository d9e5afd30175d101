// Package httpserver builds the HTTP server carrying the transfer and admin
// API.
package httpserver

import (
	"net/http"
	"time"
)

// A transfer decision can wait on two registrar round trips (the client caps
// each at 10s), so the write timeout leaves room for both plus the commit.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
)

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
