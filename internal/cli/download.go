package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
)

type downloadFlags struct {
	tickers string
	from    string
	to      string
	weeks   int
	mode    string
	sink    string
	workers int
	strict  bool
	resume  bool
	dryRun  bool
}

func newDownloadCommand(a *app) *cobra.Command {
	var f downloadFlags

	cmd := &cobra.Command{
		Use:   "download [SYMBOL...]",
		Short: "Downloads the daily history of the given symbols, or of every symbol in the tickers file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.downloadOptions(cmd, f, args, time.Now())
			if err != nil {
				return err
			}

			if f.dryRun {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "range %s, sink %s, mode %s, %d workers\n", opts.dr, opts.sink, opts.mode, a.cfg.Workers)
				for _, s := range opts.symbols {
					fmt.Fprintln(out, s)
				}
				return nil
			}

			p, err := a.newPipeline(opts)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			results := newOutcomeTable(cmd.OutOrStdout())
			runErr := p.run(cmd.Context(), opts, results.add)
			results.render()
			if runErr != nil {
				return runErr
			}
			if results.failed > 0 {
				return fmt.Errorf("%d of %d symbols failed", results.failed, results.ok+results.failed)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.tickers, "tickers", "t", "", "file with one symbol per line (default from config)")
	fl.StringVar(&f.from, "from", "", "first day, YYYY-MM-DD (default: today minus --weeks)")
	fl.StringVar(&f.to, "to", "", "last day, YYYY-MM-DD (default: today)")
	fl.IntVar(&f.weeks, "weeks", 0, "lookback in weeks when --from is not set (default from config)")
	fl.StringVar(&f.mode, "mode", "", "write mode: append or overwrite (default from config)")
	fl.StringVar(&f.sink, "sink", "", "csv, sqlite, both or none (default from config)")
	fl.IntVarP(&f.workers, "workers", "w", 0, "number of concurrent browser sessions (default from config)")
	fl.BoolVar(&f.strict, "strict", false, "fail a symbol on its first malformed row")
	fl.BoolVar(&f.resume, "resume", false, "go through the job ledger, also picking up pending or interrupted jobs over the same range")
	fl.BoolVar(&f.dryRun, "dry-run", false, "print the resolved symbols and range without downloading")
	return cmd
}

// downloadOptions folds flags over the loaded config.
func (a *app) downloadOptions(cmd *cobra.Command, f downloadFlags, args []string, now time.Time) (runOptions, error) {
	cfg := a.cfg
	fl := cmd.Flags()

	if fl.Changed("workers") {
		if f.workers <= 0 {
			return runOptions{}, fmt.Errorf("--workers must be positive")
		}
		cfg.Workers = f.workers
	}
	if fl.Changed("strict") {
		cfg.Strict = f.strict
	}
	if f.tickers != "" {
		cfg.TickersFile = f.tickers
	}
	weeks := cfg.LookbackWeeks
	if fl.Changed("weeks") {
		if f.weeks <= 0 {
			return runOptions{}, fmt.Errorf("--weeks must be positive")
		}
		weeks = f.weeks
	}

	dr, err := resolveRange(f.from, f.to, weeks, now)
	if err != nil {
		return runOptions{}, err
	}

	modeName := cfg.Mode
	if f.mode != "" {
		modeName = f.mode
	}
	mode, err := sink.ParseMode(modeName)
	if err != nil {
		return runOptions{}, err
	}

	sinkName := cfg.Sink
	if f.sink != "" {
		sinkName = f.sink
	}

	symbols, err := loadSymbols(args, cfg.TickersFile, false)
	if err != nil {
		return runOptions{}, err
	}

	return runOptions{symbols: symbols, dr: dr, mode: mode, sink: sinkName, resume: f.resume}, nil
}

// resolveRange builds the requested window. With neither bound set it is
// the configured lookback ending tomorrow; an unset start is weeks before
// the end.
func resolveRange(from, to string, weeks int, now time.Time) (history.DateRange, error) {
	if from == "" && to == "" {
		return history.LookbackRange(now, weeks), nil
	}
	end := history.Day(now)
	if to != "" {
		t, err := time.Parse(history.DateFormat, to)
		if err != nil {
			return history.DateRange{}, fmt.Errorf("--to: %w", err)
		}
		end = t
	}
	start := end.AddDate(0, 0, -7*weeks)
	if from != "" {
		t, err := time.Parse(history.DateFormat, from)
		if err != nil {
			return history.DateRange{}, fmt.Errorf("--from: %w", err)
		}
		start = t
	}
	return history.NewDateRange(start, end)
}
