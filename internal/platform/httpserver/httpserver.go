// Package httpserver builds the http.Server hosting the account API.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the router. Per-request deadlines come from the
// middleware timeout; here we only bound header reads and idle keep-alives,
// since an execute request may legitimately hold the connection for the
// length of a dispatcher round trip.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
