package mkv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/at-wat/ebml-go"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/mediaindex/format/mkv/mkvtest"
)

func testTracks() mkvtest.Tracks {
	return mkvtest.Tracks{TrackEntry: []mkvtest.TrackEntry{
		{
			TrackNumber: 1,
			TrackUID:    11,
			TrackType:   trackTypeVideo,
			CodecID:     "V_MPEG4/ISO/AVC",
			Video:       mkvtest.Video{PixelWidth: 320, PixelHeight: 240},
		},
		{
			TrackNumber:     2,
			TrackUID:        22,
			TrackType:       trackTypeAudio,
			CodecID:         "A_AAC",
			CodecPrivate:    []byte{0x12, 0x10},
			DefaultDuration: 20_000_000,
			Audio:           mkvtest.Audio{SamplingFrequency: 44100, Channels: 2},
		},
	}}
}

// testClusters holds four video frames at 0, 40, 80 and 120 ms, keyframes at
// 0 and 80, and three audio frames at 0, 20 and 40 ms, the first two laced.
func testClusters() []mkvtest.Cluster {
	return []mkvtest.Cluster{
		{
			Timecode: 0,
			SimpleBlock: []ebml.Block{
				mkvtest.Frames(1, 0, true, []byte{1, 1, 1}),
				mkvtest.Frames(2, 0, true, []byte{0xa, 0xa}, []byte{0xb, 0xb}),
				mkvtest.Frames(1, 40, false, []byte{2, 2}),
				mkvtest.Frames(2, 40, true, []byte{0xc, 0xc}),
			},
		},
		{
			Timecode: 80,
			BlockGroup: []mkvtest.BlockGroup{
				{Block: mkvtest.Frames(1, 0, false, []byte{3, 3, 3, 3}), BlockDuration: 40},
				{Block: mkvtest.Frames(1, 40, false, []byte{4}), BlockDuration: 40, ReferenceBlock: []int64{-40}},
			},
		},
	}
}

func testFile() *mkvtest.File {
	return &mkvtest.File{
		Header: mkvtest.Header("matroska"),
		Segment: mkvtest.Segment{
			Info:    mkvtest.Info{TimecodeScale: 1_000_000, Duration: 160, MuxingApp: "mkvtest", WritingApp: "mkvtest"},
			Tracks:  testTracks(),
			Cluster: testClusters(),
		},
	}
}

func writeFile(t *testing.T, f any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mkv")
	require.NoError(t, mkvtest.WriteFile(path, f))
	return path
}

func readSegment(t *testing.T, f any) (*Segment, *os.File) {
	t.Helper()
	file, err := os.Open(writeFile(t, f))
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	fi, err := file.Stat()
	require.NoError(t, err)

	s, err := ReadSegment(file, fi.Size())
	require.NoError(t, err)
	return s, file
}
