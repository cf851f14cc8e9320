// Package batch runs the per-symbol pipeline over a queue of symbols with a
// bounded pool of browser sessions. A failing symbol becomes a failed
// outcome; only a lost browser session stops the batch.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
	"github.com/ahmethakanbesel/yahoo-history/internal/browser"
	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper/yahoo"
)

const tracerName = "yahoo-history/internal/batch"

// Scraper produces the table of one symbol using a page fetcher.
type Scraper interface {
	Scrape(ctx context.Context, f yahoo.Fetcher, symbol history.Symbol, dr history.DateRange) (history.BarTable, history.Stats, error)
}

// Runner drains a Queue with a fixed number of workers. Each worker owns
// one browser session for its whole lifetime.
type Runner struct {
	launcher browser.Launcher
	scraper  Scraper
	workers  int
	nav      browser.Options
	tracer   trace.Tracer
}

// NewRunner creates a Runner with the given options applied.
func NewRunner(launcher browser.Launcher, s Scraper, opts ...Option) *Runner {
	r := &Runner{
		launcher: launcher,
		scraper:  s,
		workers:  2,
		nav:      browser.DefaultOptions(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	return r
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of concurrent browser sessions.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

func WithNavigatorOptions(o browser.Options) Option {
	return func(r *Runner) { r.nav = o }
}

// WithTracerProvider reports spans to tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) { r.tracer = tp.Tracer(tracerName) }
}

// Run processes symbols from q until it is drained or ctx is cancelled and
// calls emit once per dequeued symbol. Calls to emit never overlap.
//
// On cancellation workers stop dequeuing but finish the symbol in flight.
// Run returns an error only when a browser session cannot be started or
// replaced, or when the queue itself fails.
func (r *Runner) Run(ctx context.Context, q Queue, dr history.DateRange, emit func(history.Outcome)) error {
	var mu sync.Mutex
	serialized := func(o history.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		emit(o)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range r.workers {
		g.Go(func() error {
			return r.work(gctx, i, q, dr, serialized)
		})
	}
	return g.Wait()
}

func (r *Runner) work(ctx context.Context, id int, q Queue, dr history.DateRange, emit func(history.Outcome)) error {
	session, err := r.launcher.Launch(ctx)
	if err != nil {
		slog.Error("worker: launch browser", "worker", id, "error", err)
		return apperror.Wrap(apperror.Session, err, fmt.Sprintf("worker %d: launch browser", id))
	}
	defer func() { _ = session.Close() }()
	nav := browser.NewNavigator(session, r.nav)

	for {
		if ctx.Err() != nil {
			return nil
		}

		sym, ok, err := q.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // shutting down
			}
			return fmt.Errorf("worker %d: dequeue: %w", id, err)
		}
		if !ok {
			return nil // no more symbols
		}

		out := r.process(ctx, nav, sym, dr)
		emit(out)

		if out.Kind.Recoverable() && session.Alive() {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		slog.Warn("worker: browser session lost, relaunching", "worker", id, "symbol", sym)
		_ = session.Close()
		next, err := r.launcher.Launch(ctx)
		if err != nil {
			return apperror.Wrap(apperror.Session, err, fmt.Sprintf("worker %d: relaunch browser", id))
		}
		session = next
		nav = browser.NewNavigator(session, r.nav)
	}
}

// process runs one symbol to completion. The batch context only
// contributes values: a cancelled batch still lets the symbol finish,
// bounded by the navigator's own limits.
func (r *Runner) process(ctx context.Context, nav *browser.Navigator, sym history.Symbol, dr history.DateRange) history.Outcome {
	ctx, span := r.tracer.Start(context.WithoutCancel(ctx), "Runner.process",
		trace.WithAttributes(attribute.String("symbol", sym.String())))
	defer span.End()

	start := time.Now()
	tbl, stats, err := r.scraper.Scrape(ctx, nav, sym, dr)
	out := history.Outcome{
		Symbol:  sym,
		Table:   tbl,
		Rows:    tbl.Len(),
		Stats:   stats,
		Elapsed: time.Since(start),
	}

	if err != nil {
		out.Table = history.BarTable{Ticker: sym.String()}
		out.Rows = 0
		out.Err = err
		out.Kind = apperror.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(out.Kind))
		slog.Error("symbol failed", "symbol", sym, "kind", out.Kind, "error", err)
		return out
	}

	span.SetAttributes(attribute.Int("rows", out.Rows))
	slog.Info("downloaded", "symbol", sym, "rows", out.Rows, "elapsed", out.Elapsed)
	return out
}
