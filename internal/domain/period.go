package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format accepted on the wire.
const DateLayout = "2006-01-02"

// Period is an inclusive range of calendar days. Start and End carry no
// meaningful clock or zone; they are normalised to midnight UTC.
type Period struct {
	Start time.Time
	End   time.Time
}

// ParsePeriod parses two ISO dates and checks start <= end.
func ParsePeriod(start, end string) (Period, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Period{}, fmt.Errorf("%w: start must be an ISO date", ErrInvalidRequest)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Period{}, fmt.Errorf("%w: end must be an ISO date", ErrInvalidRequest)
	}
	if s.After(e) {
		return Period{}, fmt.Errorf("%w: start must not be after end", ErrInvalidRequest)
	}
	return Period{Start: s, End: e}, nil
}

// Bounds resolves the period to a half-open instant range [from, to) covering
// every day of the period in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(p.Start.Year(), p.Start.Month(), p.Start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(p.End.Year(), p.End.Month(), p.End.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return from, to
}

func (p Period) String() string {
	return p.Start.Format(DateLayout) + "_" + p.End.Format(DateLayout)
}
