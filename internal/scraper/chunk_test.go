package scraper

import (
	"testing"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

func date(m, d int) time.Time {
	return time.Date(2024, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func span(from, to time.Time) history.DateRange {
	return history.DateRange{Minimum: from, Maximum: to}
}

func TestSplitDateRange(t *testing.T) {
	tests := []struct {
		name      string
		dr        history.DateRange
		chunkDays int
		wantLen   int
		wantFirst history.DateRange
		wantLast  history.DateRange
	}{
		{
			name:      "single chunk",
			dr:        span(date(1, 1), date(1, 10)),
			chunkDays: 60,
			wantLen:   1,
			wantFirst: span(date(1, 1), date(1, 10)),
			wantLast:  span(date(1, 1), date(1, 10)),
		},
		{
			name:      "multiple chunks",
			dr:        span(date(1, 1), date(3, 31)),
			chunkDays: 30,
			wantLen:   4,
			wantFirst: span(date(1, 1), date(1, 30)),
			wantLast:  span(date(3, 31), date(3, 31)),
		},
		{
			name:      "exact chunk boundary",
			dr:        span(date(1, 1), date(1, 30)),
			chunkDays: 30,
			wantLen:   1,
			wantFirst: span(date(1, 1), date(1, 30)),
			wantLast:  span(date(1, 1), date(1, 30)),
		},
		{
			name:      "minimum after maximum returns nil",
			dr:        span(date(3, 1), date(1, 1)),
			chunkDays: 30,
			wantLen:   0,
		},
		{
			name:      "zero chunk days returns nil",
			dr:        span(date(1, 1), date(1, 10)),
			chunkDays: 0,
			wantLen:   0,
		},
		{
			name:      "same day",
			dr:        span(date(1, 1), date(1, 1)),
			chunkDays: 30,
			wantLen:   1,
			wantFirst: span(date(1, 1), date(1, 1)),
			wantLast:  span(date(1, 1), date(1, 1)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitDateRange(tt.dr, tt.chunkDays)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}
			if got[0] != tt.wantFirst {
				t.Errorf("first = %v, want %v", got[0], tt.wantFirst)
			}
			if got[len(got)-1] != tt.wantLast {
				t.Errorf("last = %v, want %v", got[len(got)-1], tt.wantLast)
			}
		})
	}
}

func TestSplitDateRange_CoversRangeWithoutGaps(t *testing.T) {
	dr := history.LookbackRange(date(6, 15), 60)
	chunks := SplitDateRange(dr, 90)
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks for 422 days, got %d", len(chunks))
	}
	if !chunks[0].Minimum.Equal(dr.Minimum) || !chunks[len(chunks)-1].Maximum.Equal(dr.Maximum) {
		t.Fatalf("chunks do not span %s", dr)
	}
	for i := 1; i < len(chunks); i++ {
		if !chunks[i].Minimum.Equal(chunks[i-1].Maximum.AddDate(0, 0, 1)) {
			t.Errorf("gap or overlap between %s and %s", chunks[i-1], chunks[i])
		}
	}
}
