package index

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/mediaindex"
)

func chunksOf(counts ...uint32) []Chunk {
	chunks := make([]Chunk, len(counts))
	var first uint64
	for i, n := range counts {
		chunks[i] = Chunk{Offset: uint64(i) * 1000, SampleCount: n, FirstSample: first, DescriptionIndex: 1}
		first += uint64(n)
	}
	return chunks
}

func TestBuildTiming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		counts    []uint32
		dts       []mediaindex.TimeRun
		cts       []mediaindex.OffsetRun
		wantDTS   [][]mediaindex.TimeRun
		wantCTS   [][]mediaindex.OffsetRun
		wantFirst []uint64
		wantLast  []uint64
		want      Timing
	}{
		{
			name:      "constant_delta",
			counts:    []uint32{3, 2},
			dts:       []mediaindex.TimeRun{{Count: 5, Delta: 1000}},
			wantDTS:   [][]mediaindex.TimeRun{{{Count: 3, Delta: 1000}}, {{Count: 2, Delta: 1000}}},
			wantCTS:   [][]mediaindex.OffsetRun{nil, nil},
			wantFirst: []uint64{0, 3000},
			wantLast:  []uint64{2000, 4000},
			want:      Timing{End: 5000},
		},
		{
			name:   "run_straddles_chunks",
			counts: []uint32{3, 3},
			dts:    []mediaindex.TimeRun{{Count: 2, Delta: 10}, {Count: 4, Delta: 20}},
			wantDTS: [][]mediaindex.TimeRun{
				{{Count: 2, Delta: 10}, {Count: 1, Delta: 20}},
				{{Count: 3, Delta: 20}},
			},
			wantCTS:   [][]mediaindex.OffsetRun{nil, nil},
			wantFirst: []uint64{0, 40},
			wantLast:  []uint64{20, 80},
			want:      Timing{End: 100},
		},
		{
			name:   "zero_count_runs_skipped",
			counts: []uint32{2},
			dts:    []mediaindex.TimeRun{{Count: 0, Delta: 99}, {Count: 1, Delta: 5}, {Count: 0, Delta: 7}, {Count: 1, Delta: 6}},
			wantDTS: [][]mediaindex.TimeRun{
				{{Count: 1, Delta: 5}, {Count: 1, Delta: 6}},
			},
			wantCTS:   [][]mediaindex.OffsetRun{nil},
			wantFirst: []uint64{0},
			wantLast:  []uint64{5},
			want:      Timing{End: 11},
		},
		{
			name:    "dts_underflow",
			counts:  []uint32{3, 2},
			dts:     []mediaindex.TimeRun{{Count: 2, Delta: 10}},
			wantDTS: [][]mediaindex.TimeRun{{{Count: 2, Delta: 10}}, {}},
			wantCTS: [][]mediaindex.OffsetRun{nil, nil},
			// The second chunk inherits the running dts.
			wantFirst: []uint64{0, 20},
			wantLast:  []uint64{10, 20},
			want:      Timing{End: 20, MissingDTS: 3},
		},
		{
			name:   "composition_offsets",
			counts: []uint32{2, 2},
			dts:    []mediaindex.TimeRun{{Count: 4, Delta: 100}},
			cts:    []mediaindex.OffsetRun{{Count: 1, Offset: 200}, {Count: 2, Offset: -100}},
			wantDTS: [][]mediaindex.TimeRun{
				{{Count: 2, Delta: 100}},
				{{Count: 2, Delta: 100}},
			},
			wantCTS: [][]mediaindex.OffsetRun{
				{{Count: 1, Offset: 200}, {Count: 1, Offset: -100}},
				{{Count: 1, Offset: -100}},
			},
			wantFirst: []uint64{0, 200},
			wantLast:  []uint64{100, 300},
			want:      Timing{End: 400, MissingCTS: 1},
		},
		{
			name:      "empty_chunk_between",
			counts:    []uint32{1, 0, 1},
			dts:       []mediaindex.TimeRun{{Count: 2, Delta: 50}},
			wantDTS:   [][]mediaindex.TimeRun{{{Count: 1, Delta: 50}}, {}, {{Count: 1, Delta: 50}}},
			wantCTS:   [][]mediaindex.OffsetRun{nil, nil, nil},
			wantFirst: []uint64{0, 50, 50},
			wantLast:  []uint64{0, 50, 50},
			want:      Timing{End: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chunks := chunksOf(tt.counts...)
			got := BuildTiming(chunks, tt.dts, tt.cts)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want.MissingDTS > 0 || tt.want.MissingCTS > 0, got.Truncated())
			for i := range chunks {
				require.Equal(t, tt.wantFirst[i], chunks[i].FirstDTS, "chunk %d first dts", i)
				require.Equal(t, tt.wantLast[i], chunks[i].LastDTS, "chunk %d last dts", i)
				require.ElementsMatch(t, tt.wantDTS[i], chunks[i].DTS, "chunk %d dts runs", i)
				require.ElementsMatch(t, tt.wantCTS[i], chunks[i].CTS, "chunk %d cts runs", i)
			}
		})
	}
}

func TestBuildTiming_RunsNotPerSample(t *testing.T) {
	t.Parallel()

	chunks := chunksOf(100000, 100000)
	BuildTiming(chunks, []mediaindex.TimeRun{{Count: 200000, Delta: 1}}, nil)
	require.Len(t, chunks[0].DTS, 1)
	require.Len(t, chunks[1].DTS, 1)
	require.Equal(t, uint64(100000), chunks[1].FirstDTS)
}

func TestBuildTiming_WindowsDoNotAlias(t *testing.T) {
	t.Parallel()

	chunks := chunksOf(1, 1)
	BuildTiming(chunks, []mediaindex.TimeRun{{Count: 1, Delta: 1}, {Count: 1, Delta: 2}}, nil)
	_ = append(chunks[0].DTS, mediaindex.TimeRun{Count: 9, Delta: 9})
	require.Equal(t, []mediaindex.TimeRun{{Count: 1, Delta: 2}}, chunks[1].DTS)
}
