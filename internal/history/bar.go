package history

import (
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
)

// Output columns, in order.
const (
	ColumnDate   = "date"
	ColumnTicker = "ticker"
	ColumnOpen   = "open"
	ColumnHigh   = "high"
	ColumnLow    = "low"
	ColumnClose  = "close"
	ColumnPrice  = "price"
	ColumnVolume = "volume"
)

var Columns = []string{
	ColumnDate, ColumnTicker, ColumnOpen, ColumnHigh,
	ColumnLow, ColumnClose, ColumnPrice, ColumnVolume,
}

// Cell is one raw table cell keyed by its canonical column label.
type Cell struct {
	Key   string
	Value string
}

// RawRow is a table row as rendered by the site, in column order.
type RawRow []Cell

func (r RawRow) Get(key string) (string, bool) {
	for _, c := range r {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Bar is one trading day. Price holds the adjusted close.
type Bar struct {
	Date   time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Open   float32   `json:"open"`
	High   float32   `json:"high"`
	Low    float32   `json:"low"`
	Close  float32   `json:"close"`
	Price  float32   `json:"price"`
	Volume int64     `json:"volume"`
}

func (b Bar) Validate() error {
	if b.Date.IsZero() {
		return apperror.New(apperror.MalformedRow, "bar date is empty")
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Price < 0 || b.Volume < 0 {
		return apperror.New(apperror.MalformedRow, "bar has negative values on "+b.Date.Format(DateFormat))
	}
	return nil
}

// BarTable holds the bars of one ticker in strictly ascending date order.
type BarTable struct {
	Ticker string
	Bars   []Bar
}

func (t BarTable) Len() int    { return len(t.Bars) }
func (t BarTable) Empty() bool { return len(t.Bars) == 0 }

func (t BarTable) Dates() []time.Time {
	dates := make([]time.Time, len(t.Bars))
	for i, b := range t.Bars {
		dates[i] = b.Date
	}
	return dates
}

// Ascending reports whether the table's dates are strictly increasing.
func (t BarTable) Ascending() bool {
	for i := 1; i < len(t.Bars); i++ {
		if !t.Bars[i-1].Date.Before(t.Bars[i].Date) {
			return false
		}
	}
	return true
}
