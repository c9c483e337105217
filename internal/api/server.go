package api

import (
	"net/http"
	"time"
)

// NewServer creates the ops *http.Server. Retries hit the payment rail, so
// the write timeout leaves room for a full retry sequence.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
