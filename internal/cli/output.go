package cli

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// outcomeTable collects per-symbol results and renders them once the batch
// is done.
type outcomeTable struct {
	t      table.Writer
	ok     int
	failed int
}

func newOutcomeTable(w io.Writer) *outcomeTable {
	t := newTable(w)
	t.AppendHeader(table.Row{"Symbol", "Status", "Rows", "Actions", "Dropped", "Elapsed", "Error"})
	return &outcomeTable{t: t}
}

func (o *outcomeTable) add(out history.Outcome) {
	status := "ok"
	if out.Failed() {
		status = string(out.Kind)
		o.failed++
	} else {
		o.ok++
	}
	o.t.AppendRow(table.Row{
		out.Symbol,
		status,
		out.Rows,
		out.Stats.CorporateActions,
		out.Stats.Malformed + out.Stats.Duplicates,
		out.Elapsed.Round(time.Millisecond),
		out.Reason(),
	})
}

func (o *outcomeTable) render() {
	o.t.AppendFooter(table.Row{"", "", "", "", "", "ok", o.ok})
	o.t.AppendFooter(table.Row{"", "", "", "", "", "failed", o.failed})
	o.t.Render()
}
