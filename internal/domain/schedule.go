package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const DateLayout = "2006-01-02"

// ParseDate parses a calendar day in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.Mark(errors.Wrapf(err, "parse date %q", s), ErrInvalidInput)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateOnly drops the clock part, keeping the calendar day as seen in t's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, errors.Mark(errors.Newf("invalid clock time %q", s), ErrInvalidInput)
}

// Window returns the absolute start and end of the slot on date, in loc.
// An end at or before the start belongs to the next day.
func (ts TimeSlot) Window(date time.Time, loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	from, err := parseClock(ts.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseClock(ts.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to <= from {
		to += 24 * time.Hour
	}
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return midnight.Add(from), midnight.Add(to), nil
}
