package index

import "time"

// ticksToDuration converts ticks of the given timescale to a duration with
// microsecond resolution, rounding toward negative infinity.
func ticksToDuration(ticks int64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	scale := int64(timescale)
	secs := ticks / scale
	rem := ticks % scale
	if rem < 0 {
		secs--
		rem += scale
	}
	return time.Duration(secs)*time.Second + time.Duration(rem*1_000_000/scale)*time.Microsecond
}

// durationToTicks converts a duration to ticks of the given timescale,
// rounding toward zero.
func durationToTicks(d time.Duration, timescale uint32) int64 {
	scale := int64(timescale)
	secs := int64(d / time.Second)
	rem := int64(d % time.Second)
	return secs*scale + rem*scale/int64(time.Second)
}
