package bookeo

import "time"

// MaxWindowDays is the longest startTime/endTime range the bookings
// endpoint accepts for a single call.
const MaxWindowDays = 31

// Window is a half-open [Start, End) time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// SplitRange covers [start, end) with contiguous non-overlapping windows of
// at most maxDays each. The final window ends exactly at end. A range with
// start >= end produces no windows; that is not an error.
func SplitRange(start, end time.Time, maxDays int) []Window {
	if maxDays <= 0 {
		maxDays = MaxWindowDays
	}
	if !start.Before(end) {
		return nil
	}
	step := time.Duration(maxDays) * 24 * time.Hour
	var windows []Window
	for current := start; current.Before(end); {
		chunkEnd := current.Add(step)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		windows = append(windows, Window{Start: current, End: chunkEnd})
		current = chunkEnd
	}
	return windows
}
