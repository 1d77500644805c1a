package index

import (
	"time"

	"github.com/ugparu/mediaindex"
)

// EditList maps movie time onto the track timeline through the track's edit
// segments.
type EditList struct {
	segments   []mediaindex.EditSegment
	trackScale uint32
	movieScale uint32
}

// NewEditList returns nil when there is nothing to map: no segments or an
// unusable timescale.
func NewEditList(segments []mediaindex.EditSegment, trackScale, movieScale uint32) *EditList {
	if len(segments) == 0 || trackScale == 0 || movieScale == 0 {
		return nil
	}
	return &EditList{segments: segments, trackScale: trackScale, movieScale: movieScale}
}

// Segments returns the segment list.
func (el *EditList) Segments() []mediaindex.EditSegment {
	return el.segments
}

// editState is the segment in effect during iteration and the movie time at
// which it starts presenting.
type editState struct {
	seg   int
	start int64
}

// mediaShift is the track time a segment starts presenting from. It only
// applies for a non-zero rate and a positive media time.
func mediaShift(seg mediaindex.EditSegment) int64 {
	if (seg.RateNum > 0 || seg.RateDen > 0) && seg.MediaTime > 0 {
		return seg.MediaTime
	}
	return 0
}

// find returns the segment containing movie time t and its start. Times past
// the end clamp to the last segment.
func (el *EditList) find(t int64) (int, int64) {
	var start int64
	for i, seg := range el.segments {
		dur := int64(seg.Duration) //nolint:gosec
		if start <= t && t < start+dur {
			return i, start
		}
		start += dur
	}
	last := len(el.segments) - 1
	return last, start - int64(el.segments[last].Duration) //nolint:gosec
}

// MovieTicksToTrack converts a movie time in movie ticks to track ticks. The
// second result is false inside an empty segment, where the track presents
// nothing. Times before the first segment map to the start of the track.
func (el *EditList) MovieTicksToTrack(t int64) (int64, bool) {
	if t < 0 {
		return 0, true
	}
	i, start := el.find(t)
	seg := el.segments[i]
	if seg.Empty() {
		return 0, false
	}
	return (t-start)*int64(el.trackScale)/int64(el.movieScale) + mediaShift(seg), true
}

// MovieToTrack is MovieTicksToTrack for a wall-clock movie time.
func (el *EditList) MovieToTrack(d time.Duration) (int64, bool) {
	return el.MovieTicksToTrack(durationToTicks(d, el.movieScale))
}

// nextPresenting returns the start of the first non-empty segment after
// segment i, or false when only empty segments follow.
func (el *EditList) nextPresenting(i int, start int64) (int, int64, bool) {
	for ; i < len(el.segments); i++ {
		if !el.segments[i].Empty() {
			return i, start, true
		}
		start += int64(el.segments[i].Duration) //nolint:gosec
	}
	return 0, 0, false
}

// selectAt returns the state for presenting movie time t. An empty segment
// delays the track: the state moves to the following segment, starting where
// the empty one ends.
func (el *EditList) selectAt(t int64) editState {
	if t < 0 {
		t = 0
	}
	i, start := el.find(t)
	if el.segments[i].Empty() {
		if j, s, ok := el.nextPresenting(i, start); ok {
			return editState{seg: j, start: s}
		}
		return editState{seg: i, start: start + int64(el.segments[i].Duration)} //nolint:gosec
	}
	return editState{seg: i, start: start}
}

// stateForTrack picks the first presenting segment whose media range holds
// track time t, falling back to the state at movie time zero.
func (el *EditList) stateForTrack(t int64) editState {
	var start int64
	for i, seg := range el.segments {
		if !seg.Empty() {
			media := mediaShift(seg)
			span := int64(seg.Duration) * int64(el.trackScale) / int64(el.movieScale) //nolint:gosec
			if media <= t && t < media+span {
				return editState{seg: i, start: start}
			}
		}
		start += int64(seg.Duration) //nolint:gosec
	}
	return el.selectAt(0)
}

// presentation shifts a track time onto the movie timeline, in track ticks.
func (el *EditList) presentation(t int64, st editState) int64 {
	seg := el.segments[st.seg]
	if !seg.Empty() {
		t -= mediaShift(seg)
	}
	t += st.start * int64(el.trackScale) / int64(el.movieScale)
	return max(t, 0)
}

// segmentEnd is the movie time at which st stops applying.
func (el *EditList) segmentEnd(st editState) int64 {
	seg := el.segments[st.seg]
	if seg.Empty() {
		return st.start
	}
	return st.start + int64(seg.Duration) //nolint:gosec
}

// toMovie converts track ticks to movie ticks.
func (el *EditList) toMovie(t int64) int64 {
	return t * int64(el.movieScale) / int64(el.trackScale)
}
