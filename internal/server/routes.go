package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/repository/bar"
)

// BarStore is the read side of the SQLite bar sink.
type BarStore interface {
	ListBars(ctx context.Context, ticker string, from, to time.Time) (history.BarTable, error)
	Tickers(ctx context.Context) ([]bar.Summary, error)
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(bars BarStore, jobSvc *job.Service) http.Handler {
	return newMux(bars, jobSvc)
}

func newMux(bars BarStore, jobSvc *job.Service) http.Handler {
	h := &handler{
		bars:   bars,
		jobSvc: jobSvc,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/tickers", h.listTickers)
	mux.HandleFunc("GET /api/v1/bars/{symbol}", h.getBars)
	mux.HandleFunc("GET /api/v1/jobs", h.listJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.getJob)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
