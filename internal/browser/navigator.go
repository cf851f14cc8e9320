// Package browser drives a headless browser session until a lazily loaded
// table has rendered all of its rows.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
)

const tracerName = "yahoo-history/internal/browser"

// tracerFor reports to the provider of the caller's span, so a runner with
// its own provider sees navigation spans as children.
func tracerFor(ctx context.Context) trace.Tracer {
	if parent := trace.SpanFromContext(ctx); parent.SpanContext().IsValid() {
		return parent.TracerProvider().Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// Session is one browser tab. It holds navigation state and must not be
// shared between goroutines.
type Session interface {
	Load(ctx context.Context, url string) error
	RowCount(ctx context.Context, selector string) (int, error)
	ScrollToEnd(ctx context.Context) error
	Markup(ctx context.Context) (string, error)
	// Alive reports whether the underlying browser can still serve requests.
	Alive() bool
	Close() error
}

// Launcher starts new sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type State int

const (
	StateLoading State = iota
	StateStabilizing
	StateStable
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateStabilizing:
		return "stabilizing"
	case StateStable:
		return "stable"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Options struct {
	// Timeout bounds the initial page load.
	Timeout time.Duration
	// MaxScrolls bounds the number of scroll-to-end actions per page.
	MaxScrolls int
	// Settle is the pause between a scroll and the next row count.
	Settle time.Duration
	// RowSelector matches the rows counted while stabilizing.
	RowSelector string
}

func DefaultOptions() Options {
	return Options{
		Timeout:     30 * time.Second,
		MaxScrolls:  50,
		Settle:      750 * time.Millisecond,
		RowSelector: "table tbody tr",
	}
}

// Navigator loads pages in a single session and scrolls until the row count
// stops changing.
type Navigator struct {
	session Session
	opts    Options
}

func NewNavigator(session Session, opts Options) *Navigator {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxScrolls <= 0 {
		opts.MaxScrolls = def.MaxScrolls
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	if opts.RowSelector == "" {
		opts.RowSelector = def.RowSelector
	}
	return &Navigator{session: session, opts: opts}
}

// Fetch loads url and returns the page markup once two consecutive row
// counts agree.
func (n *Navigator) Fetch(ctx context.Context, url string) (string, error) {
	ctx, span := tracerFor(ctx).Start(ctx, "Navigator.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	markup, rows, state, err := n.fetch(ctx, url)
	span.SetAttributes(attribute.Int("rows", rows), attribute.String("state", state.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return "", n.classify(err)
	}
	return markup, nil
}

func (n *Navigator) fetch(ctx context.Context, url string) (string, int, State, error) {
	state := StateLoading
	slog.Debug("navigator: loading", "url", url)

	loadCtx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	err := n.session.Load(loadCtx, url)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", 0, StateTimedOut, apperror.Wrap(apperror.NavigationTimeout, err,
				fmt.Sprintf("page not ready after %s", n.opts.Timeout))
		}
		return "", 0, state, apperror.Wrap(apperror.NavigationFailed, err, "load page")
	}

	state = StateStabilizing
	prev, err := n.session.RowCount(ctx, n.opts.RowSelector)
	if err != nil {
		return "", 0, state, apperror.Wrap(apperror.NavigationFailed, err, "count rows")
	}

	for scrolls := 0; ; scrolls++ {
		if scrolls >= n.opts.MaxScrolls {
			slog.Debug("navigator: row count never settled", "url", url, "scrolls", scrolls, "rows", prev)
			return "", prev, StateTimedOut, apperror.New(apperror.NavigationTimeout,
				fmt.Sprintf("row count still changing after %d scrolls (last %d)", scrolls, prev))
		}

		if err := n.session.ScrollToEnd(ctx); err != nil {
			return "", prev, state, apperror.Wrap(apperror.NavigationFailed, err, "scroll to end")
		}
		if err := sleep(ctx, n.opts.Settle); err != nil {
			return "", prev, state, err
		}

		cur, err := n.session.RowCount(ctx, n.opts.RowSelector)
		if err != nil {
			return "", prev, state, apperror.Wrap(apperror.NavigationFailed, err, "count rows")
		}
		if cur == prev {
			break
		}
		slog.Debug("navigator: rows grew", "url", url, "from", prev, "to", cur)
		prev = cur
	}

	state = StateStable
	markup, err := n.session.Markup(ctx)
	if err != nil {
		return "", prev, state, apperror.Wrap(apperror.NavigationFailed, err, "read markup")
	}
	slog.Debug("navigator: stable", "url", url, "rows", prev)
	return markup, prev, state, nil
}

// classify promotes any failure on a dead session to a session failure.
func (n *Navigator) classify(err error) error {
	if !n.session.Alive() && !apperror.Is(err, apperror.Session) {
		return apperror.Wrap(apperror.Session, err, "browser session lost")
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
