package mp4

import (
	"path/filepath"
	"testing"

	gomp4 "github.com/abema/go-mp4"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/mediaindex/format/mp4/mp4test"
)

func videoTrack() mp4test.Track {
	return mp4test.Track{
		ID:        1,
		Handler:   "vide",
		Timescale: 1000,
		Duration:  400,
		Entries:   []mp4test.Entry{{Box: mp4test.VideoEntry("avc1", 64, 48)}},
		Stts:      []gomp4.SttsEntry{{SampleCount: 4, SampleDelta: 100}},
		Stsc:      []gomp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionIndex: 1}},
		Sizes:     []uint32{3, 1, 2, 2},
		Stss:      []uint32{1, 3},
		Chunks: [][]byte{
			{0x10, 0x11, 0x12, 0x13},
			{0x14, 0x15, 0x16, 0x17},
		},
	}
}

func aacTrack() mp4test.Track {
	return mp4test.Track{
		ID:        2,
		Handler:   "soun",
		Timescale: 8000,
		Duration:  3200,
		Entries: []mp4test.Entry{{
			Box:      mp4test.AudioEntry("mp4a", 2, 16, 8000),
			Children: []gomp4.IImmutableBox{mp4test.AACConfig([]byte{0x12, 0x10})},
		}},
		Stts:        []gomp4.SttsEntry{{SampleCount: 8, SampleDelta: 400}},
		Stsc:        []gomp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 4, SampleDescriptionIndex: 1}},
		SampleSize:  2,
		SampleCount: 8,
		Chunks: [][]byte{
			{0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27},
			{0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f},
		},
	}
}

func writeMovie(t *testing.T, m mp4test.Movie) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, mp4test.WriteFile(path, m))
	return path
}
