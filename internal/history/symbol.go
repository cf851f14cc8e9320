package history

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
)

// Symbol is an upper-cased ticker.
type Symbol string

func NewSymbol(s string) (Symbol, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", apperror.New(apperror.InvalidSymbol, "symbol cannot be empty")
	}
	if strings.ContainsAny(s, " \t/?#") {
		return "", apperror.New(apperror.InvalidSymbol, fmt.Sprintf("invalid symbol %q", s))
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }

// ParseSymbols reads one ticker per line. Blank lines and lines starting
// with '#' are skipped; repeated tickers keep their first position.
func ParseSymbols(r io.Reader) ([]Symbol, error) {
	var symbols []Symbol
	seen := make(map[Symbol]bool)

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		sym, err := NewSymbol(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	return symbols, nil
}
