package availability

import "github.com/md-rashed-zaman/salonslots/services/booking-service/internal/interval"

// Candidates walks every free interval on a step grid anchored at local midnight and
// returns each [start, start+duration) that fits entirely inside the interval. A slot
// may end exactly on the interval end. Output is in ascending start order when free is.
func Candidates(free []interval.Interval, duration, step int) []interval.Interval {
	if duration <= 0 || step <= 0 {
		return nil
	}
	var out []interval.Interval
	for _, f := range free {
		for start := ceilToStep(f.Start, step); start+duration <= f.End; start += step {
			out = append(out, interval.Interval{Start: start, End: start + duration})
		}
	}
	return out
}

func ceilToStep(m, step int) int {
	if r := m % step; r != 0 {
		return m + step - r
	}
	return m
}
