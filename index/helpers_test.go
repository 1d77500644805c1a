package index

import (
	"math/rand/v2"
	"sort"

	"github.com/ugparu/mediaindex"
)

// randomShape limits what randomTables generates.
type randomShape struct {
	zeroDeltas bool // allow zero-delta timing runs
	noSync     bool
}

// randomTables generates a well-formed track of at most 10 000 samples.
func randomTables(seed uint64, shape randomShape) *mediaindex.Tables {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec

	nChunks := 1 + r.IntN(200)
	t := &mediaindex.Tables{
		TrackTimescale: uint32(1000 + r.IntN(90000)), //nolint:gosec
		MovieTimescale: 1000,
	}

	var off uint64
	for range nChunks {
		off += 1 + uint64(r.IntN(1<<20)) //nolint:gosec
		t.ChunkOffsets = append(t.ChunkOffsets, off)
	}
	for first := 1; first <= nChunks; first += 1 + r.IntN(5) {
		t.SampleToChunk = append(t.SampleToChunk, mediaindex.ChunkRun{
			FirstChunk:             uint32(first),          //nolint:gosec
			SamplesPerChunk:        uint32(1 + r.IntN(50)), //nolint:gosec
			SampleDescriptionIndex: uint32(1 + r.IntN(2)),  //nolint:gosec
		})
	}

	total := len(expandCounts(t))
	for left := total; left > 0; {
		if r.IntN(10) == 0 {
			t.DecodingTimes = append(t.DecodingTimes, mediaindex.TimeRun{Count: 0, Delta: 7})
		}
		n := 1 + r.IntN(min(left, 30))
		delta := uint32(1 + r.IntN(3000)) //nolint:gosec
		if shape.zeroDeltas && r.IntN(4) == 0 {
			delta = 0
		}
		t.DecodingTimes = append(t.DecodingTimes, mediaindex.TimeRun{Count: uint32(n), Delta: delta}) //nolint:gosec
		left -= n
	}
	if r.IntN(2) == 0 {
		for left := total; left > 0; {
			n := 1 + r.IntN(min(left, 30))
			t.CompositionTimes = append(t.CompositionTimes, mediaindex.OffsetRun{
				Count:  uint32(n),                 //nolint:gosec
				Offset: int32(r.IntN(2000) - 500), //nolint:gosec
			})
			left -= n
		}
	}

	if r.IntN(2) == 0 {
		t.Sizes.Constant = uint32(1 + r.IntN(5000)) //nolint:gosec
		t.Sizes.Count = uint32(total)               //nolint:gosec
	} else {
		for range total {
			t.Sizes.PerSample = append(t.Sizes.PerSample, uint32(1+r.IntN(5000))) //nolint:gosec
		}
		t.Sizes.Count = uint32(total) //nolint:gosec
	}

	if !shape.noSync && r.IntN(3) > 0 {
		t.SyncOneBased = true
		for s := 1; s <= total; s += 1 + r.IntN(40) {
			t.SyncSamples = append(t.SyncSamples, uint32(s)) //nolint:gosec
		}
	}
	return t
}

// expandCounts returns the chunk of every sample, assuming runs are ascending.
func expandCounts(t *mediaindex.Tables) []int {
	var chunkOf []int
	for i, run := range t.SampleToChunk {
		end := len(t.ChunkOffsets)
		if i+1 < len(t.SampleToChunk) {
			end = int(t.SampleToChunk[i+1].FirstChunk - 1)
		}
		for c := int(run.FirstChunk - 1); c < end; c++ {
			for range run.SamplesPerChunk {
				chunkOf = append(chunkOf, c)
			}
		}
	}
	return chunkOf
}

// expansion is the one-entry-per-sample view of a track.
type expansion struct {
	chunk  []int
	offset []uint64
	size   []uint32
	dts    []uint64
	pts    []int64
	sync   []bool
	end    uint64
}

func expand(t *mediaindex.Tables) expansion {
	var e expansion
	e.chunk = expandCounts(t)
	total := len(e.chunk)

	for s := range total {
		sz := t.Sizes.Constant
		if sz == 0 {
			sz = t.Sizes.PerSample[s]
		}
		e.size = append(e.size, sz)
		off := t.ChunkOffsets[e.chunk[s]]
		if s > 0 && e.chunk[s-1] == e.chunk[s] {
			off = e.offset[s-1] + uint64(e.size[s-1])
		}
		e.offset = append(e.offset, off)
	}

	for _, run := range t.DecodingTimes {
		for range run.Count {
			e.dts = append(e.dts, e.end)
			e.end += uint64(run.Delta)
		}
	}
	for _, run := range t.CompositionTimes {
		for range run.Count {
			e.pts = append(e.pts, int64(e.dts[len(e.pts)])+int64(run.Offset)) //nolint:gosec
		}
	}
	if len(e.pts) == 0 {
		for _, d := range e.dts {
			e.pts = append(e.pts, int64(d)) //nolint:gosec
		}
	}

	e.sync = make([]bool, total)
	for _, s := range t.SyncSamples {
		e.sync[s-1] = true
	}
	if len(t.SyncSamples) == 0 {
		for i := range e.sync {
			e.sync[i] = true
		}
	}
	return e
}

// locate is the reference seek for tracks with strictly increasing dts.
func (e expansion) locate(t int64) (uint64, bool) {
	t = max(t, 0)
	if uint64(t) >= e.end {
		return 0, false
	}
	s := sort.Search(len(e.dts), func(i int) bool { return int64(e.dts[i]) > t }) - 1 //nolint:gosec
	for k := s; k >= 0; k-- {
		if e.sync[k] {
			return uint64(k), true
		}
	}
	return uint64(s), true //nolint:gosec
}

// scenario is the two-chunk track used across tests: five samples of 100
// bytes lasting one second each.
func scenario() *mediaindex.Tables {
	return &mediaindex.Tables{
		TrackTimescale: 1000,
		MovieTimescale: 1000,
		ChunkOffsets:   []uint64{0, 300},
		SampleToChunk: []mediaindex.ChunkRun{
			{FirstChunk: 1, SamplesPerChunk: 3, SampleDescriptionIndex: 1},
			{FirstChunk: 2, SamplesPerChunk: 2, SampleDescriptionIndex: 1},
		},
		Sizes:         mediaindex.SizeTable{Constant: 100, Count: 5},
		DecodingTimes: []mediaindex.TimeRun{{Count: 5, Delta: 1000}},
	}
}
