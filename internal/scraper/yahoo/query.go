package yahoo

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper"
)

const DefaultBaseURL = "https://finance.yahoo.com"

// Query is the address and parameters of one history page.
type Query struct {
	Address string
	Params  url.Values
}

func (q Query) URL() string {
	if len(q.Params) == 0 {
		return q.Address
	}
	return q.Address + "?" + q.Params.Encode()
}

// BuildQuery returns the page request for symbol over dr. The range bounds
// are sent as epoch seconds at 00:00 UTC.
func BuildQuery(baseURL string, profile scraper.Profile, symbol history.Symbol, dr history.DateRange) (Query, error) {
	sym, err := history.NewSymbol(symbol.String())
	if err != nil {
		return Query{}, err
	}
	if err := dr.Validate(); err != nil {
		return Query{}, err
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(dr.Start(), 10))
	params.Set("period2", strconv.FormatInt(dr.Stop(), 10))
	params.Set("frequency", "1d")
	params.Set("includeAdjustedClose", "true")

	return Query{
		Address: strings.TrimRight(baseURL, "/") + "/quote/" + url.PathEscape(sym.String()) + "/" + profile.Path,
		Params:  params,
	}, nil
}
