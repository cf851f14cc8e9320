package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
	"github.com/ahmethakanbesel/yahoo-history/internal/batch"
	"github.com/ahmethakanbesel/yahoo-history/internal/browser"
	"github.com/ahmethakanbesel/yahoo-history/internal/config"
	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/platform/sqlite"
	barrepo "github.com/ahmethakanbesel/yahoo-history/internal/repository/bar"
	jobrepo "github.com/ahmethakanbesel/yahoo-history/internal/repository/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper/yahoo"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
)

// runOptions are the per-invocation knobs on top of the config.
type runOptions struct {
	symbols []history.Symbol
	dr      history.DateRange
	mode    sink.Mode
	sink    string
	resume  bool
}

// pipeline is one fully wired batch: runner, storage and ledger.
type pipeline struct {
	runner *batch.Runner
	sink   sink.Sink
	mode   sink.Mode
	jobs   *job.Service
	db     *sqlite.DB
}

func (a *app) newPipeline(opts runOptions) (*pipeline, error) {
	cfg := a.cfg

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	profile, err := registry.Get(scraper.TechnicalHistory)
	if err != nil {
		return nil, err
	}

	s, err := yahoo.New(
		yahoo.WithBaseURL(cfg.BaseURL),
		yahoo.WithProfile(profile),
		yahoo.WithStrict(cfg.Strict),
		yahoo.WithChunkDays(cfg.ChunkDays),
	)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	out, err := buildSink(opts.sink, cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	runner := batch.NewRunner(a.browserLauncher(), s,
		batch.WithWorkers(cfg.Workers),
		batch.WithNavigatorOptions(browser.Options{
			Timeout:     cfg.Browser.NavigationTimeout,
			MaxScrolls:  cfg.Browser.MaxScrolls,
			Settle:      cfg.Browser.Settle,
			RowSelector: profile.Rows,
		}),
		batch.WithTracerProvider(a.tracerProvider()),
	)

	return &pipeline{
		runner: runner,
		sink:   out,
		mode:   opts.mode,
		jobs:   job.NewService(jobrepo.NewRepository(db.DB), string(profile.Technical)),
		db:     db,
	}, nil
}

func (a *app) browserLauncher() browser.Launcher {
	if a.launcher != nil {
		return a.launcher
	}
	b := a.cfg.Browser
	return browser.NewChromeLauncher(
		browser.WithHeadless(b.Headless),
		browser.WithExecPath(b.ExecPath),
		browser.WithUserAgent(b.UserAgent),
		browser.WithWindowSize(b.WindowWidth, b.WindowHeight),
	)
}

func buildSink(name string, cfg *config.Config, db *sqlite.DB) (sink.Sink, error) {
	switch name {
	case config.SinkCSV:
		return sink.NewCSV(cfg.OutputDir), nil
	case config.SinkSQLite:
		return barrepo.NewRepository(db.DB), nil
	case config.SinkBoth:
		return sink.Multi{sink.NewCSV(cfg.OutputDir), barrepo.NewRepository(db.DB)}, nil
	case config.SinkNone:
		return sink.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown sink %q", name)
	}
}

func (p *pipeline) Close() error {
	return p.db.Close()
}

// run executes one batch. Every outcome is persisted and recorded in the
// ledger before report sees it.
func (p *pipeline) run(ctx context.Context, opts runOptions, report func(history.Outcome)) error {
	q, err := p.queue(ctx, opts)
	if err != nil {
		return err
	}

	// Writes and ledger updates outlive cancellation so a finished symbol is
	// never lost.
	store := context.WithoutCancel(ctx)

	return p.runner.Run(ctx, q, opts.dr, func(o history.Outcome) {
		if !o.Failed() {
			if err := p.sink.Write(store, o.Symbol.String(), o.Table, p.mode); err != nil {
				slog.Error("failed to store table", "symbol", o.Symbol, "error", err)
				o.Err = apperror.Wrap(apperror.Internal, err, "store table")
				o.Kind = apperror.Internal
				o.Table = history.BarTable{Ticker: o.Symbol.String()}
				o.Rows = 0
			}
		}
		if err := p.jobs.Record(store, opts.dr, o); err != nil {
			slog.Error("failed to record job", "symbol", o.Symbol, "error", err)
		}
		report(o)
	})
}

func (p *pipeline) queue(ctx context.Context, opts runOptions) (batch.Queue, error) {
	if !opts.resume {
		return batch.NewMemoryQueue(opts.symbols), nil
	}
	if err := p.jobs.RecoverStaleJobs(ctx); err != nil {
		return nil, err
	}
	n, err := p.jobs.Enqueue(ctx, opts.symbols, opts.dr)
	if err != nil {
		return nil, err
	}
	slog.Info("queued jobs", "new", n, "range", opts.dr.String())
	return p.jobs.Queue(opts.dr), nil
}

// loadSymbols prefers explicit arguments over the tickers file. A missing
// file is only an error when nothing else supplies symbols.
func loadSymbols(args []string, file string, allowEmpty bool) ([]history.Symbol, error) {
	if len(args) > 0 {
		seen := make(map[history.Symbol]bool, len(args))
		var out []history.Symbol
		for _, arg := range args {
			sym, err := history.NewSymbol(arg)
			if err != nil {
				return nil, err
			}
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
		return out, nil
	}

	f, err := os.Open(file)
	if errors.Is(err, os.ErrNotExist) && allowEmpty {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tickers file: %w", err)
	}
	defer func() { _ = f.Close() }()

	symbols, err := history.ParseSymbols(f)
	if err != nil {
		return nil, fmt.Errorf("tickers file %s: %w", file, err)
	}
	if len(symbols) == 0 && !allowEmpty {
		return nil, fmt.Errorf("tickers file %s lists no symbols", file)
	}
	return symbols, nil
}
