// Package sink persists per-ticker bar tables.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

type Mode string

const (
	// ModeAppend merges the table into what is already stored. Stored rows
	// on the same date are replaced.
	ModeAppend Mode = "append"
	// ModeOverwrite replaces everything stored for the ticker.
	ModeOverwrite Mode = "overwrite"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAppend, ModeOverwrite:
		return m, nil
	case "":
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("unknown write mode %q", s)
	}
}

// Sink stores a whole table or nothing.
type Sink interface {
	Write(ctx context.Context, ticker string, tbl history.BarTable, mode Mode) error
}

// Multi writes to every sink in order and reports all failures.
type Multi []Sink

func (m Multi) Write(ctx context.Context, ticker string, tbl history.BarTable, mode Mode) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, ticker, tbl, mode); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every table.
type Discard struct{}

func (Discard) Write(context.Context, string, history.BarTable, Mode) error { return nil }
