// Package period provides the quarter/year calendar the control panel
// selects from.
package period

import (
	"fmt"
	"strconv"
	"strings"
)

// Default calendar bounds.
const (
	DefaultFirstYear = 2005
	DefaultLastYear  = 2015
)

// Period is a single quarter of a year.
type Period struct {
	Quarter int `json:"quarter"`
	Year    int `json:"year"`
}

// String returns the compact form, e.g. "Q2 2010".
func (p Period) String() string {
	return fmt.Sprintf("Q%d %d", p.Quarter, p.Year)
}

// Label returns the padded option label shown next to the slider.
func (p Period) Label() string {
	return fmt.Sprintf(" Q%d %d ", p.Quarter, p.Year)
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

// ParsePeriod parses "Q2 2010", "q2 2010" or "2010Q2".
func ParsePeriod(s string) (Period, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	var p Period
	switch {
	case strings.HasPrefix(s, "Q"):
		parts := strings.Fields(s[1:])
		if len(parts) != 2 {
			return p, fmt.Errorf("invalid period %q: want \"Q<quarter> <year>\"", s)
		}
		q, err := strconv.Atoi(parts[0])
		if err != nil {
			return p, fmt.Errorf("invalid quarter in %q: %w", s, err)
		}
		y, err := strconv.Atoi(parts[1])
		if err != nil {
			return p, fmt.Errorf("invalid year in %q: %w", s, err)
		}
		p = Period{Quarter: q, Year: y}
	case strings.Contains(s, "Q"):
		idx := strings.Index(s, "Q")
		y, err := strconv.Atoi(s[:idx])
		if err != nil {
			return p, fmt.Errorf("invalid year in %q: %w", s, err)
		}
		q, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return p, fmt.Errorf("invalid quarter in %q: %w", s, err)
		}
		p = Period{Quarter: q, Year: y}
	default:
		return p, fmt.Errorf("invalid period %q", s)
	}
	if p.Quarter < 1 || p.Quarter > 4 {
		return p, fmt.Errorf("invalid period %q: quarter must be 1-4", s)
	}
	return p, nil
}

// Range is an ordered pair of periods.
type Range struct {
	Start Period `json:"start"`
	End   Period `json:"end"`
}

func (r Range) String() string {
	return r.Start.String() + " - " + r.End.String()
}

// Calendar enumerates every quarter between two years, inclusive.
type Calendar struct {
	FirstYear int
	LastYear  int
}

// DefaultCalendar returns the 2005-2015 calendar.
func DefaultCalendar() Calendar {
	return Calendar{FirstYear: DefaultFirstYear, LastYear: DefaultLastYear}
}

// Len returns the number of periods in the calendar.
func (c Calendar) Len() int {
	if c.LastYear < c.FirstYear {
		return 0
	}
	return (c.LastYear - c.FirstYear + 1) * 4
}

// Options returns all periods in order, first quarter of the first year first.
func (c Calendar) Options() []Period {
	out := make([]Period, 0, c.Len())
	for year := c.FirstYear; year <= c.LastYear; year++ {
		for q := 1; q <= 4; q++ {
			out = append(out, Period{Quarter: q, Year: year})
		}
	}
	return out
}

// At returns the period at index i.
func (c Calendar) At(i int) (Period, bool) {
	if i < 0 || i >= c.Len() {
		return Period{}, false
	}
	return Period{Quarter: i%4 + 1, Year: c.FirstYear + i/4}, true
}

// Index returns the position of p, or -1 when p is outside the calendar.
func (c Calendar) Index(p Period) int {
	if !c.Contains(p) {
		return -1
	}
	return (p.Year-c.FirstYear)*4 + p.Quarter - 1
}

// Contains reports whether p is one of the calendar's options.
func (c Calendar) Contains(p Period) bool {
	return p.Quarter >= 1 && p.Quarter <= 4 && p.Year >= c.FirstYear && p.Year <= c.LastYear
}

// First returns the earliest period.
func (c Calendar) First() Period {
	return Period{Quarter: 1, Year: c.FirstYear}
}

// Last returns the latest period.
func (c Calendar) Last() Period {
	return Period{Quarter: 4, Year: c.LastYear}
}

// FullRange spans the whole calendar. It is the range selector's default.
func (c Calendar) FullRange() Range {
	return Range{Start: c.First(), End: c.Last()}
}

// ValidRange reports whether both ends are in the calendar and ordered.
func (c Calendar) ValidRange(r Range) error {
	if !c.Contains(r.Start) {
		return fmt.Errorf("range start %s outside %d-%d", r.Start, c.FirstYear, c.LastYear)
	}
	if !c.Contains(r.End) {
		return fmt.Errorf("range end %s outside %d-%d", r.End, c.FirstYear, c.LastYear)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("range end %s is before start %s", r.End, r.Start)
	}
	return nil
}
