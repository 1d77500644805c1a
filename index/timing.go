package index

import "github.com/ugparu/mediaindex"

// Timing summarises a BuildTiming pass.
type Timing struct {
	// End is the decoding time following the last timed sample.
	End uint64
	// MissingDTS and MissingCTS count samples the run tables did not reach.
	MissingDTS uint64
	MissingCTS uint64
}

// Truncated reports whether any run table ran out before the chunk table.
func (t Timing) Truncated() bool {
	return t.MissingDTS > 0 || t.MissingCTS > 0
}

// runCursor walks a global run table across chunk boundaries. Runs may
// straddle chunks, so the position inside the current run is kept between
// calls to take.
type runCursor[R any] struct {
	runs  []R
	count func(R) uint32
	with  func(R, uint32) R
	pos   int
	used  uint32
}

// take appends chunk-local runs covering up to n samples to dst and returns the
// number of samples it could not cover.
func (rc *runCursor[R]) take(dst []R, n uint32) ([]R, uint32) {
	for n > 0 && rc.pos < len(rc.runs) {
		run := rc.runs[rc.pos]
		left := rc.count(run) - rc.used
		if left == 0 {
			rc.pos++
			rc.used = 0
			continue
		}
		k := min(left, n)
		dst = append(dst, rc.with(run, k))
		n -= k
		rc.used += k
		if rc.used == rc.count(run) {
			rc.pos++
			rc.used = 0
		}
	}
	return dst, n
}

// BuildTiming slices the global decoding and composition run tables into
// per-chunk runs and stamps each chunk with the decoding times of its first and
// last samples. The work is proportional to the number of runs and chunks, not
// samples. Chunks the tables do not reach keep empty or partial run lists and
// inherit the last known decoding time.
func BuildTiming(chunks []Chunk, dts []mediaindex.TimeRun, cts []mediaindex.OffsetRun) Timing {
	var t Timing

	// Every chunk boundary splits at most one run, so the backing arrays are
	// never reallocated and the per-chunk windows stay put.
	dtsBuf := make([]mediaindex.TimeRun, 0, len(dts)+len(chunks))
	dc := runCursor[mediaindex.TimeRun]{
		runs:  dts,
		count: func(r mediaindex.TimeRun) uint32 { return r.Count },
		with:  func(r mediaindex.TimeRun, n uint32) mediaindex.TimeRun { return mediaindex.TimeRun{Count: n, Delta: r.Delta} },
	}

	var running uint64
	for i := range chunks {
		ck := &chunks[i]
		ck.FirstDTS = running
		ck.LastDTS = running

		start := len(dtsBuf)
		var missing uint32
		dtsBuf, missing = dc.take(dtsBuf, ck.SampleCount)
		ck.DTS = dtsBuf[start:len(dtsBuf):len(dtsBuf)]
		t.MissingDTS += uint64(missing)

		for _, run := range ck.DTS {
			running += uint64(run.Count) * uint64(run.Delta)
		}
		if n := len(ck.DTS); n > 0 {
			ck.LastDTS = running - uint64(ck.DTS[n-1].Delta)
		}
	}
	t.End = running

	if len(cts) == 0 {
		return t
	}

	ctsBuf := make([]mediaindex.OffsetRun, 0, len(cts)+len(chunks))
	cc := runCursor[mediaindex.OffsetRun]{
		runs:  cts,
		count: func(r mediaindex.OffsetRun) uint32 { return r.Count },
		with:  func(r mediaindex.OffsetRun, n uint32) mediaindex.OffsetRun { return mediaindex.OffsetRun{Count: n, Offset: r.Offset} },
	}
	for i := range chunks {
		ck := &chunks[i]
		start := len(ctsBuf)
		var missing uint32
		ctsBuf, missing = cc.take(ctsBuf, ck.SampleCount)
		ck.CTS = ctsBuf[start:len(ctsBuf):len(ctsBuf)]
		t.MissingCTS += uint64(missing)
	}
	return t
}
