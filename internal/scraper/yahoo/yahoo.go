// Package yahoo scrapes the Yahoo Finance history page. The page renders its
// table lazily, so markup is obtained through a browser-backed Fetcher and
// then parsed and normalized locally.
package yahoo

import (
	"context"
	"log/slog"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/normalize"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper"
	"github.com/ahmethakanbesel/yahoo-history/internal/table"
)

// Fetcher returns the fully rendered markup of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Scraper turns one symbol and date range into a bar table.
type Scraper struct {
	baseURL    string
	profile    scraper.Profile
	strict     bool
	chunkDays  int
	normalizer *normalize.Normalizer
}

// New creates a Scraper with the given options applied.
func New(opts ...Option) (*Scraper, error) {
	s := &Scraper{
		baseURL: DefaultBaseURL,
		profile: scraper.HistoryProfile(),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.profile.Validate(); err != nil {
		return nil, err
	}
	n, err := normalize.New(s.profile, normalize.WithStrict(s.strict))
	if err != nil {
		return nil, err
	}
	s.normalizer = n
	return s, nil
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithBaseURL overrides the site root, e.g. for a local mirror in tests.
func WithBaseURL(u string) Option {
	return func(s *Scraper) {
		if u != "" {
			s.baseURL = u
		}
	}
}

func WithProfile(p scraper.Profile) Option {
	return func(s *Scraper) { s.profile = p }
}

// WithChunkDays loads ranges longer than days as consecutive windows of at
// most days each, keeping every page short enough to settle. Zero loads the
// whole range at once.
func WithChunkDays(days int) Option {
	return func(s *Scraper) { s.chunkDays = max(days, 0) }
}

// WithStrict makes a single malformed row fail the whole symbol.
func WithStrict(strict bool) Option {
	return func(s *Scraper) { s.strict = strict }
}

// Scrape fetches, extracts and normalizes the history table of symbol.
// Errors keep the code of the stage that produced them; a failing window
// fails the whole symbol.
func (s *Scraper) Scrape(ctx context.Context, f Fetcher, symbol history.Symbol, dr history.DateRange) (history.BarTable, history.Stats, error) {
	empty := history.BarTable{Ticker: symbol.String()}

	chunks := scraper.SplitDateRange(dr, s.chunkDays)
	if len(chunks) <= 1 {
		tbl, stats, err := s.scrape(ctx, f, symbol, dr)
		if err != nil {
			return empty, stats, err
		}
		s.logRetrieved(symbol, dr, tbl, stats, 1)
		return tbl, stats, nil
	}

	out := empty
	var total history.Stats
	for i, c := range chunks {
		// The page excludes its upper bound. Inner windows ask for one more
		// day and keep only their own dates; the last one keeps dr's bound.
		query := c
		if i < len(chunks)-1 {
			query.Maximum = c.Maximum.AddDate(0, 0, 1)
		}
		tbl, stats, err := s.scrape(ctx, f, symbol, query)
		total.Add(stats)
		if err != nil {
			return empty, total, err
		}
		for _, b := range tbl.Bars {
			if c.Contains(b.Date) {
				out.Bars = append(out.Bars, b)
			}
		}
	}

	s.logRetrieved(symbol, dr, out, total, len(chunks))
	return out, total, nil
}

func (s *Scraper) scrape(ctx context.Context, f Fetcher, symbol history.Symbol, dr history.DateRange) (history.BarTable, history.Stats, error) {
	empty := history.BarTable{Ticker: symbol.String()}

	q, err := BuildQuery(s.baseURL, s.profile, symbol, dr)
	if err != nil {
		return empty, history.Stats{}, err
	}

	markup, err := f.Fetch(ctx, q.URL())
	if err != nil {
		return empty, history.Stats{}, err
	}

	rows, err := table.Extract(markup, table.Locator{Table: s.profile.Table, Required: s.profile.Required})
	if err != nil {
		return empty, history.Stats{}, err
	}

	tbl, stats, err := s.normalizer.Normalize(rows, symbol.String())
	if err != nil {
		return empty, stats, err
	}
	return tbl, stats, nil
}

func (s *Scraper) logRetrieved(symbol history.Symbol, dr history.DateRange, tbl history.BarTable, stats history.Stats, pages int) {
	slog.Info("retrieved yahoo data", "symbol", symbol,
		"range", dr.String(), "pages", pages, "rows", stats.Rows, "bars", tbl.Len(),
		"corporateActions", stats.CorporateActions, "malformed", stats.Malformed)
}
