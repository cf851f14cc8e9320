package scraper

import "github.com/ahmethakanbesel/yahoo-history/internal/history"

// SplitDateRange cuts dr into consecutive windows of at most chunkDays
// calendar days. An invalid range or a non-positive size yields nil.
func SplitDateRange(dr history.DateRange, chunkDays int) []history.DateRange {
	if dr.Validate() != nil || chunkDays <= 0 {
		return nil
	}

	var chunks []history.DateRange
	for cur := dr.Minimum; !cur.After(dr.Maximum); cur = cur.AddDate(0, 0, chunkDays) {
		end := cur.AddDate(0, 0, chunkDays-1)
		if end.After(dr.Maximum) {
			end = dr.Maximum
		}
		chunks = append(chunks, history.DateRange{Minimum: cur, Maximum: end})
	}
	return chunks
}
