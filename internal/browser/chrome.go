package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/chromedp/chromedp"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ChromeLauncher starts one headless Chrome process per session.
type ChromeLauncher struct {
	headless  bool
	execPath  string
	userAgent string
	width     int
	height    int
}

func NewChromeLauncher(opts ...ChromeOption) *ChromeLauncher {
	l := &ChromeLauncher{
		headless:  true,
		userAgent: defaultUserAgent,
		width:     1920,
		height:    1080,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

type ChromeOption func(*ChromeLauncher)

func WithHeadless(headless bool) ChromeOption {
	return func(l *ChromeLauncher) { l.headless = headless }
}

// WithExecPath points at a specific Chrome binary instead of searching PATH.
func WithExecPath(path string) ChromeOption {
	return func(l *ChromeLauncher) { l.execPath = path }
}

func WithUserAgent(ua string) ChromeOption {
	return func(l *ChromeLauncher) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

func WithWindowSize(width, height int) ChromeOption {
	return func(l *ChromeLauncher) { l.width, l.height = width, height }
}

// Launch starts a browser and opens a blank tab. The returned session lives
// until Close, independent of ctx.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.headless),
		chromedp.UserAgent(l.userAgent),
		chromedp.WindowSize(l.width, l.height),
	)
	if l.execPath != "" {
		opts = append(opts, chromedp.ExecPath(l.execPath))
	}

	base := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			slog.Debug("chromedp error: " + fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, apperror.Wrap(apperror.Session, err, "start browser")
	}

	return &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// bind runs actions on the tab while honouring the caller's ctx.
func (s *chromeSession) bind(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Load(ctx context.Context, url string) error {
	return s.bind(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) RowCount(ctx context.Context, selector string) (int, error) {
	var n int
	expr := "document.querySelectorAll(" + strconv.Quote(selector) + ").length"
	if err := s.bind(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *chromeSession) ScrollToEnd(ctx context.Context) error {
	var height int
	const expr = `window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`
	return s.bind(ctx, chromedp.Evaluate(expr, &height))
}

func (s *chromeSession) Markup(ctx context.Context) (string, error) {
	var html string
	if err := s.bind(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) Alive() bool {
	return s.ctx.Err() == nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
