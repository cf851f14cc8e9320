package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/job"
)

type Server struct {
	srv *http.Server
}

// New creates a read-only server over stored bars and the job ledger. baseCtx
// is the base context of every request.
func New(baseCtx context.Context, addr string, bars BarStore, jobSvc *job.Service) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: newMux(bars, jobSvc),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}
