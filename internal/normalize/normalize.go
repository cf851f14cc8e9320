// Package normalize turns raw table rows into typed, ordered bars.
package normalize

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper"
)

// coercer parses one raw cell into its field of b.
type coercer func(raw string, b *history.Bar) error

// coercers covers every output column except ticker, which is tagged after
// parsing.
var coercers = map[string]coercer{
	history.ColumnDate:   parseDate,
	history.ColumnOpen:   price(func(b *history.Bar, v float32) { b.Open = v }),
	history.ColumnHigh:   price(func(b *history.Bar, v float32) { b.High = v }),
	history.ColumnLow:    price(func(b *history.Bar, v float32) { b.Low = v }),
	history.ColumnClose:  price(func(b *history.Bar, v float32) { b.Close = v }),
	history.ColumnPrice:  price(func(b *history.Bar, v float32) { b.Price = v }),
	history.ColumnVolume: parseVolume,
}

var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02",
	"01/02/2006",
	"Jan 02, 2006",
}

type Normalizer struct {
	rename map[string]string
	skip   map[string][]string
	strict bool
}

type Option func(*Normalizer)

// WithStrict fails the whole table on the first malformed row instead of
// dropping it.
func WithStrict(strict bool) Option {
	return func(n *Normalizer) { n.strict = strict }
}

// New builds a normalizer for profile. It fails when the coercion table does
// not cover the output schema exactly.
func New(profile scraper.Profile, opts ...Option) (*Normalizer, error) {
	if err := validateSchema(); err != nil {
		return nil, err
	}
	n := &Normalizer{
		rename: profile.Rename,
		skip:   profile.Skip,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

func validateSchema() error {
	for _, col := range history.Columns {
		if col == history.ColumnTicker {
			continue
		}
		if _, ok := coercers[col]; !ok {
			return fmt.Errorf("no coercion for output column %q", col)
		}
	}
	for col := range coercers {
		if !slices.Contains(history.Columns, col) {
			return fmt.Errorf("coercion for unknown column %q", col)
		}
	}
	return nil
}

// Normalize converts rows into a table for ticker. Corporate-action rows are
// skipped before any parsing; malformed rows are logged and dropped unless
// the normalizer is strict. Zero surviving rows is an empty table.
func (n *Normalizer) Normalize(rows []history.RawRow, ticker string) (history.BarTable, history.Stats, error) {
	ticker = strings.ToUpper(ticker)
	stats := history.Stats{Rows: len(rows)}
	bars := make([]history.Bar, 0, len(rows))

	for i, raw := range rows {
		row := n.canonical(raw)
		if n.corporateAction(row) {
			stats.CorporateActions++
			continue
		}

		bar, err := coerce(row)
		if err != nil {
			err = apperror.Wrap(apperror.MalformedRow, err, fmt.Sprintf("row %d", i))
			if n.strict {
				return history.BarTable{Ticker: ticker}, stats, err
			}
			stats.Malformed++
			slog.Warn("dropping malformed row", "ticker", ticker, "row", i, "error", err)
			continue
		}
		bar.Ticker = ticker
		bars = append(bars, bar)
	}

	slices.SortStableFunc(bars, func(a, b history.Bar) int {
		return a.Date.Compare(b.Date)
	})

	// keep the first bar seen for each date
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].Date.Equal(b.Date) {
			stats.Duplicates++
			continue
		}
		out = append(out, b)
	}

	return history.BarTable{Ticker: ticker, Bars: out}, stats, nil
}

func (n *Normalizer) canonical(raw history.RawRow) history.RawRow {
	row := make(history.RawRow, len(raw))
	for i, c := range raw {
		key := strings.ToLower(strings.TrimSpace(c.Key))
		if to, ok := n.rename[key]; ok {
			key = to
		}
		row[i] = history.Cell{Key: key, Value: c.Value}
	}
	return row
}

func (n *Normalizer) corporateAction(row history.RawRow) bool {
	for col, markers := range n.skip {
		v, ok := row.Get(col)
		if !ok {
			continue
		}
		for _, m := range markers {
			if strings.Contains(v, m) {
				return true
			}
		}
	}
	return false
}

func coerce(row history.RawRow) (history.Bar, error) {
	var b history.Bar
	for _, col := range history.Columns {
		fn, ok := coercers[col]
		if !ok {
			continue
		}
		v, ok := row.Get(col)
		if !ok {
			return history.Bar{}, fmt.Errorf("missing column %q", col)
		}
		if err := fn(v, &b); err != nil {
			return history.Bar{}, fmt.Errorf("column %q: %w", col, err)
		}
	}
	if err := b.Validate(); err != nil {
		return history.Bar{}, err
	}
	return b, nil
}

func parseDate(raw string, b *history.Bar) error {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			b.Date = history.Day(t)
			return nil
		}
	}
	return fmt.Errorf("unparseable date %q", raw)
}

func price(set func(*history.Bar, float32)) coercer {
	return func(raw string, b *history.Bar) error {
		v, err := strconv.ParseFloat(stripThousands(raw), 32)
		if err != nil {
			return fmt.Errorf("unparseable price %q", raw)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid price %q", raw)
		}
		set(b, float32(v))
		return nil
	}
}

func parseVolume(raw string, b *history.Bar) error {
	v, err := strconv.ParseInt(stripThousands(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("unparseable volume %q", raw)
	}
	if v < 0 {
		return fmt.Errorf("negative volume %q", raw)
	}
	b.Volume = v
	return nil
}

func stripThousands(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}
