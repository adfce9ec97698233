// Package interval implements merge and complement over half-open minute intervals.
package interval

import "sort"

// Interval is [Start, End) in minutes.
type Interval struct {
	Start int
	End   int
}

func (iv Interval) Empty() bool {
	return iv.Start >= iv.End
}

func (iv Interval) Len() int {
	if iv.Empty() {
		return 0
	}
	return iv.End - iv.Start
}

// Overlaps is false for intervals that only touch.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && o.Start < iv.End
}

// Clip intersects iv with window. ok is false when nothing remains.
func Clip(iv, window Interval) (Interval, bool) {
	out := Interval{Start: max(iv.Start, window.Start), End: min(iv.End, window.End)}
	if out.Empty() {
		return Interval{}, false
	}
	return out, true
}

// MergeSorted sorts a copy of in by start and folds touching or overlapping intervals
// together. Empty intervals are dropped.
func MergeSorted(in []Interval) []Interval {
	b := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			b = append(b, iv)
		}
	}
	sort.Slice(b, func(i, j int) bool {
		if b[i].Start != b[j].Start {
			return b[i].Start < b[j].Start
		}
		return b[i].End < b[j].End
	})

	merged := make([]Interval, 0, len(b))
	for _, cur := range b {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start > last.End {
			merged = append(merged, cur)
			continue
		}
		if cur.End > last.End {
			last.End = cur.End
		}
	}
	return merged
}

// Complement returns the gaps of window not covered by busy. busy must be sorted and
// disjoint (the output of MergeSorted); parts outside window are ignored.
func Complement(window Interval, busy []Interval) []Interval {
	if window.Empty() {
		return nil
	}
	var out []Interval
	cursor := window.Start
	for _, b := range busy {
		c, ok := Clip(b, window)
		if !ok {
			continue
		}
		if c.Start > cursor {
			out = append(out, Interval{Start: cursor, End: c.Start})
		}
		if c.End > cursor {
			cursor = c.End
		}
	}
	if window.End > cursor {
		out = append(out, Interval{Start: cursor, End: window.End})
	}
	return out
}
