package model

import (
	"fmt"
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End) within one day.
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// NewInterval parses two HH:MM strings into an Interval.
func NewInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

// MustInterval is NewInterval for literals.
func MustInterval(start, end string) Interval {
	iv, err := NewInterval(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Valid reports whether Start < End.
func (i Interval) Valid() bool {
	return i.Start < i.End
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return time.Duration(i.End-i.Start) * time.Minute
}

// Overlaps uses half-open semantics: touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies fully inside i.
func (i Interval) Contains(o Interval) bool {
	return o.Start >= i.Start && o.End <= i.End
}

func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", i.Start, i.End)
}

// SortIntervals orders intervals by start, then end.
func SortIntervals(ivs []Interval) {
	sort.Slice(ivs, func(a, b int) bool {
		if ivs[a].Start != ivs[b].Start {
			return ivs[a].Start < ivs[b].Start
		}
		return ivs[a].End < ivs[b].End
	})
}

// Subtract removes every interval in cut from base and returns what remains, sorted.
func Subtract(base Interval, cut []Interval) []Interval {
	sorted := append([]Interval(nil), cut...)
	SortIntervals(sorted)

	var out []Interval
	cursor := base.Start
	for _, c := range sorted {
		if c.End <= cursor || c.Start >= base.End {
			continue
		}
		if c.Start > cursor {
			out = append(out, Interval{Start: cursor, End: c.Start})
		}
		if c.End > cursor {
			cursor = c.End
		}
	}
	if cursor < base.End {
		out = append(out, Interval{Start: cursor, End: base.End})
	}
	return out
}
