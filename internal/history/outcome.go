package history

import (
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
)

// Stats counts what happened to the extracted rows of one table.
type Stats struct {
	Rows             int `json:"rows"`
	CorporateActions int `json:"corporateActions"`
	Malformed        int `json:"malformed"`
	Duplicates       int `json:"duplicates"`
}

// Add accumulates o, e.g. over the windows of one symbol.
func (s *Stats) Add(o Stats) {
	s.Rows += o.Rows
	s.CorporateActions += o.CorporateActions
	s.Malformed += o.Malformed
	s.Duplicates += o.Duplicates
}

// Outcome is the per-symbol result of a batch run. A failed outcome carries
// an empty table and the error that stopped the symbol.
type Outcome struct {
	Symbol  Symbol
	Table   BarTable
	Rows    int
	Stats   Stats
	Elapsed time.Duration
	Err     error
	Kind    apperror.Code
}

func (o Outcome) Failed() bool { return o.Err != nil }

func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
