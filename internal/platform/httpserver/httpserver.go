package httpserver

import (
	"net/http"
	"time"
)

// New builds the wallet API server. Responses are small JSON documents or a
// single QR PNG, so the write timeout is kept tight; the idle timeout is long
// enough for mobile clients to reuse connections across dashboard polls.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
