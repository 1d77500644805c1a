// Package index turns the run-length sample tables of one track into a
// queryable index: sequential iteration in decode order and seeking to a
// presentation time. Timing is kept as per-chunk runs, never per sample.
package index

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/utils/logger"
)

// Index is the immutable per-track sample index. Any number of cursors can
// iterate it concurrently.
type Index struct {
	name      string
	chunks    []Chunk
	sizes     *Sizes
	sync      []uint64 // sorted, 0-based; nil when every sample is a sync sample
	edits     *EditList
	timescale uint32
	total     uint64
	timing    Timing
}

// Build indexes one track. MissingTableError and CorruptTableError mean the
// track cannot be played.
func Build(t *mediaindex.Tables, opts ...Option) (*Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if t == nil {
		return nil, &MissingTableError{Table: TableSampleToChunk}
	}
	if t.TrackTimescale == 0 {
		return nil, &CorruptTableError{Table: TableTimescale, Reason: "track timescale is zero"}
	}

	idx := &Index{name: cfg.name, timescale: t.TrackTimescale}

	chunks, err := BuildChunks(t.ChunkOffsets, t.SampleToChunk, cfg.policy)
	if err != nil {
		return nil, err
	}
	idx.chunks = chunks
	if n := len(chunks); n > 0 {
		idx.total = chunks[n-1].EndSample()
	}

	if t.Sizes.Constant > 0 && t.Sizes.Count > 0 && uint64(t.Sizes.Count) < idx.total {
		logger.Warningf(idx, "chunk table holds %d samples, size table declares %d", idx.total, t.Sizes.Count)
		idx.total = truncateChunks(idx.chunks, uint64(t.Sizes.Count))
	}

	if idx.total > 0 && len(t.DecodingTimes) == 0 {
		return nil, &MissingTableError{Table: TableDecodingTime}
	}
	idx.timing = BuildTiming(idx.chunks, t.DecodingTimes, t.CompositionTimes)
	if idx.timing.Truncated() {
		logger.Warningf(idx, "timing tables end early: %d samples without dts, %d without cts",
			idx.timing.MissingDTS, idx.timing.MissingCTS)
	}

	if idx.sizes, err = NewSizes(t.Sizes, t.Packets, idx.total); err != nil {
		return nil, err
	}

	if !cfg.noSync {
		idx.sync = normalizeSync(t.SyncSamples, t.SyncOneBased, idx.total)
	}

	if !cfg.noEdits && len(t.Edits) > 0 {
		if idx.edits = NewEditList(t.Edits, t.TrackTimescale, t.MovieTimescale); idx.edits == nil {
			logger.Warningf(idx, "ignoring %d edit segments: movie timescale is zero", len(t.Edits))
		}
	}

	logger.Debugf(idx, "%d samples in %d chunks, %s sizes, %d sync samples, %d edits, duration %v",
		idx.total, len(idx.chunks), idx.sizes.mode, len(idx.sync), len(t.Edits), idx.Duration())
	return idx, nil
}

// truncateChunks drops samples past limit and returns the new total.
func truncateChunks(chunks []Chunk, limit uint64) uint64 {
	for i := range chunks {
		ck := &chunks[i]
		if ck.FirstSample >= limit {
			ck.FirstSample = limit
			ck.SampleCount = 0
			continue
		}
		if ck.EndSample() > limit {
			ck.SampleCount = uint32(limit - ck.FirstSample) //nolint:gosec
		}
	}
	return limit
}

// normalizeSync converts a sync table to sorted, unique, 0-based sample
// indices below total. An empty result means every sample is a sync sample.
func normalizeSync(samples []uint32, oneBased bool, total uint64) []uint64 {
	if len(samples) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(samples))
	for _, s := range samples {
		n := uint64(s)
		if oneBased {
			if n == 0 {
				continue
			}
			n--
		}
		if n < total {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func (idx *Index) String() string {
	return idx.name
}

// Chunks returns the chunk table. It must not be modified.
func (idx *Index) Chunks() []Chunk {
	return idx.chunks
}

// SampleCount returns the number of samples in the track.
func (idx *Index) SampleCount() uint64 {
	return idx.total
}

// Timescale returns the track timescale.
func (idx *Index) Timescale() uint32 {
	return idx.timescale
}

// Timing returns the result of slicing the timing tables.
func (idx *Index) Timing() Timing {
	return idx.timing
}

// Edits returns the edit list in use, nil when presentation follows the track
// timeline.
func (idx *Index) Edits() *EditList {
	return idx.edits
}

// Packetized reports whether samples are read in packet groups.
func (idx *Index) Packetized() bool {
	return idx.sizes.Packetized()
}

// Duration is the decoding time following the last sample.
func (idx *Index) Duration() time.Duration {
	return ticksToDuration(int64(idx.timing.End), idx.timescale) //nolint:gosec
}

// ByteRange returns the smallest byte range holding every sample of the track.
// Both ends are zero for an empty track.
func (idx *Index) ByteRange() (start, end uint64) {
	first := true
	for i := range idx.chunks {
		ck := &idx.chunks[i]
		if ck.SampleCount == 0 {
			continue
		}
		last := ck.Offset + idx.sizes.chunkBytes(ck.FirstSample, ck.SampleCount)
		if first || ck.Offset < start {
			start = ck.Offset
		}
		if first || last > end {
			end = last
		}
		first = false
	}
	return start, end
}

// chunkOf returns the chunk holding sample n, which must be below the total.
func (idx *Index) chunkOf(n uint64) int {
	return sort.Search(len(idx.chunks), func(i int) bool {
		return idx.chunks[i].EndSample() > n
	})
}

// SizeOf returns the size of sample n.
func (idx *Index) SizeOf(n uint64) (uint32, error) {
	if n >= idx.total {
		return 0, &SampleRangeError{Sample: n, Samples: idx.total}
	}
	ck := &idx.chunks[idx.chunkOf(n)]
	return idx.sizes.sizeAt(n, uint32(n-ck.FirstSample), ck.SampleCount), nil //nolint:gosec
}

// DecodeTicks returns the decoding time of sample n in track ticks.
func (idx *Index) DecodeTicks(n uint64) (uint64, error) {
	if n >= idx.total {
		return 0, &SampleRangeError{Sample: n, Samples: idx.total}
	}
	ck := &idx.chunks[idx.chunkOf(n)]
	k := n - ck.FirstSample
	dts := ck.FirstDTS
	for _, run := range ck.DTS {
		if k < uint64(run.Count) {
			return dts + k*uint64(run.Delta), nil
		}
		k -= uint64(run.Count)
		dts += uint64(run.Count) * uint64(run.Delta)
	}
	return dts, nil
}

// IsSync reports whether sample n is a sync sample.
func (idx *Index) IsSync(n uint64) bool {
	if n >= idx.total {
		return false
	}
	if idx.sync == nil {
		return true
	}
	_, ok := slices.BinarySearch(idx.sync, n)
	return ok
}

// SyncSamples returns the sorted 0-based sync samples, nil when every sample
// is a sync sample.
func (idx *Index) SyncSamples() []uint64 {
	return idx.sync
}

// Describe returns a short summary for tools.
func (idx *Index) Describe() string {
	start, end := idx.ByteRange()
	return fmt.Sprintf("%s: %d samples, %d chunks, %v, bytes [%d, %d)",
		idx.name, idx.total, len(idx.chunks), idx.Duration(), start, end)
}

// NewCursor returns a cursor on the first sample.
func (idx *Index) NewCursor() *Cursor {
	c := &Cursor{idx: idx}
	c.Reset()
	return c
}
