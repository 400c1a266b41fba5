// Package interval implements merging of watched timeline ranges.
//
// A watched range is a span of seconds on a video timeline. Coverage is
// always reduced to a normalized form: sorted by start, with overlapping
// and touching ranges coalesced, so rewatching material never counts twice.
package interval

import "sort"

// Interval is a watched range of the timeline, in seconds.
// Invariant: Start <= End.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the span of the interval in seconds.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// Merge returns the minimal sorted set of disjoint, non-touching intervals
// covering the same span as in. Touching counts as mergeable: [0,20] and
// [20,30] become [0,30], since contiguously re-approached playback reads
// as one span. The input is not modified. Merge is idempotent and the
// result does not depend on input ordering or duplicates.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}

	sorted := make([]Interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start <= cur.End {
			if next.End > cur.End {
				cur.End = next.End
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

// Total returns the summed length of the intervals in seconds.
// For a merged set this is the true watched coverage.
func Total(in []Interval) float64 {
	var total float64
	for _, iv := range in {
		total += iv.End - iv.Start
	}
	return total
}
