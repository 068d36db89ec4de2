// Package period models the monthly rating period ("YYYY-MM").
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var layout = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// Period is one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// Parse reads a "YYYY-MM" string.
func Parse(s string) (Period, error) {
	m := layout.FindStringSubmatch(s)
	if m == nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Of returns the period containing t, in t's location.
func Of(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// LastCompleted returns the most recently finished month relative to now.
func LastCompleted(now time.Time) Period {
	return Of(now).Previous()
}

// String formats the period as "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	return p.add(-1)
}

func (p Period) add(months int) Period {
	idx := p.index() + months
	return Period{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

func (p Period) index() int {
	return p.Year*12 + int(p.Month) - 1
}

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool {
	return p.index() < o.index()
}

// Between returns the number of months from a to b; negative when b precedes a.
func Between(a, b Period) int {
	return b.index() - a.index()
}

// Bounds returns the half-open [start, end) interval of p in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
