package history

import (
	"fmt"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
)

const DateFormat = "2006-01-02"

// DateRange is an inclusive range of calendar dates. Both ends are held at
// 00:00 UTC.
type DateRange struct {
	Minimum time.Time
	Maximum time.Time
}

func NewDateRange(minimum, maximum time.Time) (DateRange, error) {
	dr := DateRange{Minimum: Day(minimum), Maximum: Day(maximum)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// LookbackRange covers the last weeks up to and including tomorrow, so the
// current session's bar is never cut off by the page's exclusive upper bound.
func LookbackRange(now time.Time, weeks int) DateRange {
	today := Day(now)
	return DateRange{
		Minimum: today.AddDate(0, 0, -7*weeks),
		Maximum: today.AddDate(0, 0, 1),
	}
}

func (r DateRange) Validate() error {
	if r.Minimum.IsZero() || r.Maximum.IsZero() {
		return apperror.New(apperror.InvalidRange, "date range bounds cannot be empty")
	}
	if r.Minimum.After(r.Maximum) {
		return apperror.New(apperror.InvalidRange, fmt.Sprintf("minimum %s is after maximum %s",
			r.Minimum.Format(DateFormat), r.Maximum.Format(DateFormat)))
	}
	return nil
}

// Start is the epoch second of Minimum at midnight.
func (r DateRange) Start() int64 { return Day(r.Minimum).Unix() }

// Stop is the epoch second of Maximum at midnight.
func (r DateRange) Stop() int64 { return Day(r.Maximum).Unix() }

func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.Minimum)) && !d.After(Day(r.Maximum))
}

func (r DateRange) String() string {
	return r.Minimum.Format(DateFormat) + ".." + r.Maximum.Format(DateFormat)
}

// Day truncates t to its calendar date at 00:00 UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
