package index

import (
	"fmt"

	"github.com/ugparu/mediaindex"
)

// Chunk is one physically contiguous run of samples. DTS and CTS hold the
// chunk-local slices of the track's run tables; their counts add up to
// SampleCount unless the timing tables were too short.
type Chunk struct {
	Offset           uint64
	DescriptionIndex uint32
	SampleCount      uint32
	FirstSample      uint64
	FirstDTS         uint64
	LastDTS          uint64

	DTS []mediaindex.TimeRun
	CTS []mediaindex.OffsetRun
}

// EndSample is the global index following the chunk's last sample.
func (c *Chunk) EndSample() uint64 {
	return c.FirstSample + uint64(c.SampleCount)
}

// OverlapPolicy decides which sample-to-chunk run owns a chunk claimed by more
// than one run. Well-formed tables never overlap.
type OverlapPolicy uint8

const (
	// LastRunWins lets the later-declared run overwrite earlier ones.
	LastRunWins OverlapPolicy = iota
	// FirstRunWins keeps the assignment of the earliest run.
	FirstRunWins
)

func (p OverlapPolicy) String() string {
	if p == FirstRunWins {
		return "first-run-wins"
	}
	return "last-run-wins"
}

// BuildChunks expands the sample-to-chunk run table into one record per chunk
// offset. A run covers chunks from its FirstChunk up to the FirstChunk of the
// run declared after it, or to the last chunk when that run does not start
// later. Chunks no run covers hold zero samples.
func BuildChunks(offsets []uint64, runs []mediaindex.ChunkRun, policy OverlapPolicy) ([]Chunk, error) {
	if len(runs) == 0 {
		return nil, &MissingTableError{Table: TableSampleToChunk}
	}

	count := uint64(len(offsets))
	for i, run := range runs {
		if run.FirstChunk == 0 || uint64(run.FirstChunk-1) >= count {
			return nil, &CorruptTableError{
				Table:  TableSampleToChunk,
				Reason: fmt.Sprintf("run %d starts at chunk %d, table has %d chunks", i, run.FirstChunk, count),
			}
		}
	}

	chunks := make([]Chunk, len(offsets))
	for i, off := range offsets {
		chunks[i].Offset = off
	}

	// free[c] leads to the first chunk at or after c that no run owns yet, so
	// every chunk is assigned once whatever the shape of the run table.
	free := make([]int, len(chunks)+1)
	for i := range free {
		free[i] = i
	}
	find := func(c int) int {
		for free[c] != c {
			free[c] = free[free[c]]
			c = free[c]
		}
		return c
	}

	apply := func(i int) {
		run := runs[i]
		start := int(run.FirstChunk - 1)
		end := len(chunks)
		if i+1 < len(runs) && int(runs[i+1].FirstChunk-1) > start {
			end = int(runs[i+1].FirstChunk - 1)
		}
		for c := find(start); c < end; c = find(c) {
			chunks[c].DescriptionIndex = run.SampleDescriptionIndex
			chunks[c].SampleCount = run.SamplesPerChunk
			free[c] = c + 1
		}
	}

	if policy == FirstRunWins {
		for i := range runs {
			apply(i)
		}
	} else {
		for i := len(runs) - 1; i >= 0; i-- {
			apply(i)
		}
	}

	var first uint64
	for i := range chunks {
		chunks[i].FirstSample = first
		first += uint64(chunks[i].SampleCount)
	}
	return chunks, nil
}
