package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/yahoo-history/internal/config"
	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/platform/sqlite"
	barrepo "github.com/ahmethakanbesel/yahoo-history/internal/repository/bar"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
)

func newShowCommand(a *app) *cobra.Command {
	var (
		from, to string
		source   string
		tail     int
	)

	cmd := &cobra.Command{
		Use:   "show [SYMBOL]",
		Short: "Prints the stored bars of a symbol, or a summary of every stored symbol.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				source = config.SinkCSV
				if a.cfg.Sink == config.SinkSQLite {
					source = config.SinkSQLite
				}
			}
			if source != config.SinkCSV && source != config.SinkSQLite {
				return fmt.Errorf("unknown source %q", source)
			}

			if len(args) == 0 {
				if source != config.SinkSQLite {
					return fmt.Errorf("a symbol is required when reading csv files")
				}
				return a.showSummary(cmd)
			}

			sym, err := history.NewSymbol(args[0])
			if err != nil {
				return err
			}
			lo, hi, err := parseBounds(from, to)
			if err != nil {
				return err
			}

			var tbl history.BarTable
			if source == config.SinkSQLite {
				db, err := sqlite.Open(a.cfg.DBPath)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				tbl, err = barrepo.NewRepository(db.DB).ListBars(cmd.Context(), sym.String(), lo, hi)
				if err != nil {
					return err
				}
			} else {
				tbl, err = sink.NewCSV(a.cfg.OutputDir).Read(sym.String())
				if err != nil {
					return err
				}
				tbl = between(tbl, lo, hi)
			}

			if tail > 0 && tbl.Len() > tail {
				tbl.Bars = tbl.Bars[tbl.Len()-tail:]
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"})
			for _, b := range tbl.Bars {
				t.AppendRow(table.Row{b.Date.Format(history.DateFormat), b.Open, b.High, b.Low, b.Close, b.Price, b.Volume})
			}
			t.AppendFooter(table.Row{sym, "", "", "", "", "bars", tbl.Len()})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&source, "source", "", "csv or sqlite (default follows the configured sink)")
	cmd.Flags().IntVar(&tail, "tail", 0, "only the most recent N bars")
	return cmd
}

func (a *app) showSummary(cmd *cobra.Command) error {
	db, err := sqlite.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sums, err := barrepo.NewRepository(db.DB).Tickers(cmd.Context())
	if err != nil {
		return err
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Symbol", "Bars", "First", "Last"})
	for _, s := range sums {
		t.AppendRow(table.Row{s.Ticker, s.Bars, s.First.Format(history.DateFormat), s.Last.Format(history.DateFormat)})
	}
	t.Render()
	return nil
}

func parseBounds(from, to string) (time.Time, time.Time, error) {
	var lo, hi time.Time
	var err error
	if from != "" {
		if lo, err = time.Parse(history.DateFormat, from); err != nil {
			return lo, hi, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if hi, err = time.Parse(history.DateFormat, to); err != nil {
			return lo, hi, fmt.Errorf("--to: %w", err)
		}
	}
	return lo, hi, nil
}

// between keeps the bars within [lo, hi]; zero bounds are open.
func between(tbl history.BarTable, lo, hi time.Time) history.BarTable {
	out := history.BarTable{Ticker: tbl.Ticker}
	for _, b := range tbl.Bars {
		if !lo.IsZero() && b.Date.Before(lo) {
			continue
		}
		if !hi.IsZero() && b.Date.After(hi) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out
}
