package job

import (
	"fmt"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

type ListJobsRequest struct {
	Technical string
	Symbol    string
	Status    string
	Limit     int
}

// Validate normalizes the request in place.
func (r *ListJobsRequest) Validate() error {
	if r.Symbol != "" {
		sym, err := history.NewSymbol(r.Symbol)
		if err != nil {
			return err
		}
		r.Symbol = sym.String()
	}
	if r.Status != "" && !Status(r.Status).Valid() {
		return fmt.Errorf("unknown job status %q", r.Status)
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if r.Limit == 0 {
		r.Limit = 100
	}
	return nil
}

func (r ListJobsRequest) filter() Filter {
	return Filter{Technical: r.Technical, Symbol: r.Symbol, Status: Status(r.Status), Limit: r.Limit}
}
