package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

const csvFile = "history.csv"

// CSV keeps one file per ticker under <root>/<TICKER>/history.csv.
type CSV struct {
	root string
}

func NewCSV(root string) *CSV {
	return &CSV{root: root}
}

func (c *CSV) Path(ticker string) string {
	return filepath.Join(c.root, strings.ToUpper(ticker), csvFile)
}

// Write stores tbl. The file is rewritten through a temp file and rename,
// so readers never see a partial table.
func (c *CSV) Write(ctx context.Context, ticker string, tbl history.BarTable, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ticker = strings.ToUpper(ticker)
	bars := tbl.Bars

	if mode == ModeAppend {
		existing, err := c.Read(ticker)
		if err != nil {
			return err
		}
		bars = merge(existing.Bars, tbl.Bars)
	}

	path := c.Path(ticker)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csv sink: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), csvFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("csv sink: create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := EncodeCSV(tmp, bars); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv sink: write %s: %w", ticker, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv sink: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("csv sink: replace %s: %w", path, err)
	}

	slog.Debug("csv sink: wrote table", "ticker", ticker, "path", path, "bars", len(bars), "mode", mode)
	return nil
}

// Read loads the stored table of ticker. A missing file is an empty table.
func (c *CSV) Read(ticker string) (history.BarTable, error) {
	ticker = strings.ToUpper(ticker)
	tbl := history.BarTable{Ticker: ticker}

	f, err := os.Open(c.Path(ticker))
	if errors.Is(err, os.ErrNotExist) {
		return tbl, nil
	}
	if err != nil {
		return tbl, fmt.Errorf("csv sink: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	bars, err := readBars(f)
	if err != nil {
		return tbl, fmt.Errorf("csv sink: read %s: %w", ticker, err)
	}
	tbl.Bars = bars
	return tbl, nil
}

// merge combines stored and fresh bars by date. Fresh bars win.
func merge(stored, fresh []history.Bar) []history.Bar {
	byDate := make(map[time.Time]history.Bar, len(stored)+len(fresh))
	for _, b := range stored {
		byDate[b.Date] = b
	}
	for _, b := range fresh {
		byDate[b.Date] = b
	}
	out := make([]history.Bar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b history.Bar) int { return a.Date.Compare(b.Date) })
	return out
}

// EncodeCSV writes bars as CSV with the output schema as header.
func EncodeCSV(w io.Writer, bars []history.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(history.Columns); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			b.Date.Format(history.DateFormat),
			b.Ticker,
			formatPrice(b.Open),
			formatPrice(b.High),
			formatPrice(b.Low),
			formatPrice(b.Close),
			formatPrice(b.Price),
			strconv.FormatInt(b.Volume, 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readBars(r io.Reader) ([]history.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(history.Columns)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if !slices.Equal(records[0], history.Columns) {
		return nil, fmt.Errorf("unexpected header %v", records[0])
	}

	bars := make([]history.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		b, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRecord(rec []string) (history.Bar, error) {
	date, err := time.Parse(history.DateFormat, rec[0])
	if err != nil {
		return history.Bar{}, err
	}
	b := history.Bar{Date: date, Ticker: rec[1]}
	for i, dst := range []*float32{&b.Open, &b.High, &b.Low, &b.Close, &b.Price} {
		v, err := strconv.ParseFloat(rec[i+2], 32)
		if err != nil {
			return history.Bar{}, err
		}
		*dst = float32(v)
	}
	if b.Volume, err = strconv.ParseInt(rec[7], 10, 64); err != nil {
		return history.Bar{}, err
	}
	return b, nil
}

func formatPrice(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
