package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Status is the operational snapshot served per bot process.
type Status struct {
	Version         string  `json:"version"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
	ActiveDownloads int64   `json:"activeDownloads"`
	CookieJarValid  bool    `json:"cookieJarValid"`
	CookieJarBytes  int64   `json:"cookieJarBytes"`
	CookieAgeSecs   float64 `json:"cookieAgeSeconds"`
}

// New builds the status server. snapshot is polled on every request.
func New(port string, snapshot func() Status) *http.Server {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot())
	})

	return &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
