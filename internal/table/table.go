// Package table turns rendered page markup into raw, string-valued rows.
package table

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

// Locator finds the single data table in a page.
type Locator struct {
	// Table is a CSS selector matching candidate table elements.
	Table string
	// Required header keys disambiguate between several candidates.
	Required []string
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// CanonicalKey reduces a rendered header label to its column key: the first
// whitespace-separated word, lower-cased, without footnote markers.
// "Close*" becomes "close" and "Adj Close**" becomes "adj".
func CanonicalKey(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	key := strings.ToLower(fields[0])
	return strings.TrimRightFunc(key, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Extract parses markup and returns the rows of the table selected by loc.
func Extract(markup string, loc Locator) ([]history.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	tbl, err := locate(doc, loc)
	if err != nil {
		return nil, err
	}

	headers := headerKeys(tbl)
	if len(headers) == 0 {
		return nil, apperror.New(apperror.TableNotFound, "table has no header row")
	}

	var rows []history.RawRow
	tbl.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		row := make(history.RawRow, 0, cells.Length())
		cells.Each(func(i int, td *goquery.Selection) {
			if i >= len(headers) {
				return
			}
			row = append(row, history.Cell{Key: headers[i], Value: cellText(td)})
		})
		rows = append(rows, row)
	})

	return rows, nil
}

// Count returns how many elements of markup match selector.
func Count(markup, selector string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0, fmt.Errorf("parse markup: %w", err)
	}
	return doc.Find(selector).Length(), nil
}

func locate(doc *goquery.Document, loc Locator) (*goquery.Selection, error) {
	candidates := doc.Find(loc.Table)
	switch candidates.Length() {
	case 0:
		return nil, apperror.New(apperror.TableNotFound, fmt.Sprintf("no element matches %q", loc.Table))
	case 1:
		return candidates, nil
	}

	matching := candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		keys := headerKeys(s)
		for _, req := range loc.Required {
			if !contains(keys, req) {
				return false
			}
		}
		return true
	})
	if matching.Length() != 1 {
		return nil, apperror.New(apperror.TableNotFound, fmt.Sprintf(
			"%d tables match %q and %d carry headers %v", candidates.Length(), loc.Table, matching.Length(), loc.Required))
	}
	return matching, nil
}

func headerKeys(tbl *goquery.Selection) []string {
	cells := tbl.Find("thead tr").First().ChildrenFiltered("th, td")
	if cells.Length() == 0 {
		cells = tbl.Find("tr").First().ChildrenFiltered("th")
	}
	keys := make([]string, 0, cells.Length())
	cells.Each(func(_ int, s *goquery.Selection) {
		keys = append(keys, CanonicalKey(cellText(s)))
	})
	return keys
}

func cellText(s *goquery.Selection) string {
	return innerWhitespace.ReplaceAllString(strings.TrimSpace(s.Text()), " ")
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
