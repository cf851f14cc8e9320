package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/scheduler"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
)

const shutdownTimeout = 2 * time.Minute

func newScheduleCommand(a *app) *cobra.Command {
	var (
		spec string
		now  bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Downloads the tickers file on a cron schedule until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if spec == "" {
				spec = a.cfg.Schedule
			}
			ctx := cmd.Context()

			s, err := scheduler.New(ctx, spec, a.scheduledRun)
			if err != nil {
				return err
			}
			if now {
				s.RunNow()
			}
			s.Start()
			fmt.Fprintf(cmd.OutOrStdout(), "next run at %s\n", s.Next().Format(time.RFC3339))

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			s.Stop(stopCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "six-field cron spec, seconds first (default from config)")
	cmd.Flags().BoolVar(&now, "now", false, "run once immediately before waiting for the schedule")
	return cmd
}

// scheduledRun downloads every symbol of the tickers file over the lookback
// window ending at the time of the run.
func (a *app) scheduledRun(ctx context.Context) error {
	cfg := a.cfg

	symbols, err := loadSymbols(nil, cfg.TickersFile, true)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		slog.Warn("no symbols to download", "tickers_file", cfg.TickersFile)
		return nil
	}

	mode, err := sink.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	opts := runOptions{
		symbols: symbols,
		dr:      history.LookbackRange(time.Now(), cfg.LookbackWeeks),
		mode:    mode,
		sink:    cfg.Sink,
	}

	p, err := a.newPipeline(opts)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	var ok, failed int
	err = p.run(ctx, opts, func(o history.Outcome) {
		if o.Failed() {
			failed++
		} else {
			ok++
		}
	})
	slog.Info("batch finished", "range", opts.dr.String(), "ok", ok, "failed", failed)
	return err
}
