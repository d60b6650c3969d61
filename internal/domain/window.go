package domain

import (
	"sort"
	"time"
)

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewTimeWindow(start, end time.Time) TimeWindow {
	return TimeWindow{Start: start.UTC(), End: end.UTC()}
}

func (w TimeWindow) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether two windows share any instant. Touching
// boundaries ([09:00,10:00) and [10:00,11:00)) do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Covers reports whether w fully contains other.
func (w TimeWindow) Covers(other TimeWindow) bool {
	return !w.Start.After(other.Start) && !w.End.Before(other.End)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Load is an amount held over a window, e.g. participants of a booking.
type Load struct {
	Window TimeWindow
	Units  int
}

// PeakLoad is the highest total held at any instant inside w. Loads that
// only touch a boundary of w or of each other never add up.
func PeakLoad(w TimeWindow, loads []Load) int {
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(loads))
	for _, l := range loads {
		if !l.Window.Overlaps(w) {
			continue
		}
		start, end := l.Window.Start, l.Window.End
		if start.Before(w.Start) {
			start = w.Start
		}
		if end.After(w.End) {
			end = w.End
		}
		edges = append(edges, edge{start, l.Units}, edge{end, -l.Units})
	}
	// Ends sort before starts at the same instant.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	peak, cur := 0, 0
	for _, e := range edges {
		cur += e.delta
		peak = max(peak, cur)
	}
	return peak
}
