package index

import (
	"sort"
	"time"
)

// Position addresses a sample by its chunk and its global index.
type Position struct {
	Chunk  int
	Sample uint64
}

// Locate finds the sample to start presenting from for a track time in track
// ticks. Negative times clamp to the first sample. When the track has a sync
// table the result snaps back to the closest sync sample at or before the
// target. Locate does not touch any cursor.
func (idx *Index) Locate(t int64) (Position, error) {
	if idx.total == 0 {
		return Position{}, &SeekPastEndError{Samples: 0}
	}
	t = max(t, 0)

	chunks := idx.chunks
	i := sort.Search(len(chunks), func(i int) bool {
		return int64(chunks[i].FirstDTS) > t //nolint:gosec
	}) - 1
	i = max(i, 0)

	ck := &chunks[i]
	sample := ck.FirstSample
	dts := int64(ck.FirstDTS) //nolint:gosec
	for _, run := range ck.DTS {
		span := int64(run.Count) * int64(run.Delta)
		if dts+span < t {
			dts += span
			sample += uint64(run.Count)
			continue
		}
		if run.Delta > 0 {
			sample += uint64((t - dts) / int64(run.Delta))
		}
		break
	}

	if sample >= idx.total {
		return Position{}, &SeekPastEndError{Sample: sample, Samples: idx.total}
	}
	for chunks[i].EndSample() <= sample {
		i++
	}

	if idx.sync != nil {
		j := sort.Search(len(idx.sync), func(j int) bool { return idx.sync[j] > sample }) - 1
		if j >= 0 {
			sample = idx.sync[j]
			for i > 0 && chunks[i].FirstSample > sample {
				i--
			}
			for chunks[i].EndSample() <= sample {
				i++
			}
		}
	}
	return Position{Chunk: i, Sample: sample}, nil
}

// LocateTime is Locate for a presentation time. The edit list, if any, maps it
// onto the track timeline first; a time inside an empty segment seeks to the
// start of the next segment that presents media.
func (idx *Index) LocateTime(d time.Duration) (Position, error) {
	pos, _, err := idx.locateMovie(d)
	return pos, err
}

func (idx *Index) locateMovie(d time.Duration) (Position, editState, error) {
	el := idx.edits
	if el == nil {
		pos, err := idx.Locate(durationToTicks(d, idx.timescale))
		return pos, editState{}, err
	}

	m := max(durationToTicks(d, el.movieScale), 0)
	t, ok := el.MovieTicksToTrack(m)
	if ok {
		pos, err := idx.Locate(t)
		return pos, el.selectAt(m), err
	}

	i, start := el.find(m)
	j, next, ok := el.nextPresenting(i, start)
	if !ok {
		return Position{}, editState{}, &SeekPastEndError{Sample: idx.total, Samples: idx.total}
	}
	pos, err := idx.Locate(mediaShift(el.segments[j]))
	return pos, editState{seg: j, start: next}, err
}
