package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/yahoo-history/internal/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/platform/sqlite"
	"github.com/ahmethakanbesel/yahoo-history/internal/repository/bar"
	jobrepo "github.com/ahmethakanbesel/yahoo-history/internal/repository/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/scheduler"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper"
	"github.com/ahmethakanbesel/yahoo-history/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		port     string
		schedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves stored bars and the job ledger over HTTP.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = a.cfg.Port
			}
			ctx := cmd.Context()

			db, err := sqlite.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			jobSvc := job.NewService(jobrepo.NewRepository(db.DB), string(scraper.TechnicalHistory))
			srv := server.New(ctx, fmt.Sprintf(":%s", port), bar.NewRepository(db.DB), jobSvc)

			var sched stopper
			if schedule {
				sc, err := scheduler.New(ctx, a.cfg.Schedule, a.scheduledRun)
				if err != nil {
					return err
				}
				sc.Start()
				sched = sc
			}

			return serveUntilDone(ctx, srv, sched)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default from config)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "also run the configured download schedule")
	return cmd
}

type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type stopper interface {
	Stop(ctx context.Context)
}

// serveUntilDone runs srv until it fails or ctx is cancelled. The scheduler,
// when present, is stopped on both paths so a running batch finishes before
// the database closes.
func serveUntilDone(ctx context.Context, srv httpServer, sched stopper) error {
	errc := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var serveErr error
	select {
	case serveErr = <-errc:
	case <-ctx.Done():
	}

	if sched != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		sched.Stop(stopCtx)
		cancel()
	}

	if serveErr != nil {
		return fmt.Errorf("server: %w", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}
