package slots

import (
	"sort"

	"marketbook/internal/model"
)

type edge struct {
	at    model.Clock
	delta int
}

// edges returns start/end events; at equal times ends sort first so that
// touching intervals never count as concurrent.
func edges(ivs []model.Interval) []edge {
	out := make([]edge, 0, 2*len(ivs))
	for _, iv := range ivs {
		if !iv.Valid() {
			continue
		}
		out = append(out, edge{iv.Start, 1}, edge{iv.End, -1})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].at != out[j].at {
			return out[i].at < out[j].at
		}
		return out[i].delta < out[j].delta
	})
	return out
}

// Peak returns the maximum number of intervals active at the same instant.
func Peak(ivs []model.Interval) int {
	peak, cur := 0, 0
	for _, e := range edges(ivs) {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

// PeakWithin is Peak restricted to the part of each interval inside window.
func PeakWithin(ivs []model.Interval, window model.Interval) int {
	clipped := make([]model.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Overlaps(window) {
			continue
		}
		if iv.Start < window.Start {
			iv.Start = window.Start
		}
		if iv.End > window.End {
			iv.End = window.End
		}
		clipped = append(clipped, iv)
	}
	return Peak(clipped)
}

// Saturated returns the ranges where at least seats intervals are active.
func Saturated(ivs []model.Interval, seats int) []model.Interval {
	if seats <= 0 {
		seats = 1
	}

	var out []model.Interval
	cur := 0
	var openedAt model.Clock
	for _, e := range edges(ivs) {
		before := cur
		cur += e.delta
		switch {
		case before < seats && cur >= seats:
			openedAt = e.at
		case before >= seats && cur < seats:
			if e.at > openedAt {
				if n := len(out); n > 0 && out[n-1].End == openedAt {
					out[n-1].End = e.at
					continue
				}
				out = append(out, model.Interval{Start: openedAt, End: e.at})
			}
		}
	}
	return out
}
