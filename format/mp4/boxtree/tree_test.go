package boxtree_test

import (
	"os"
	"path/filepath"
	"testing"

	gomp4 "github.com/abema/go-mp4"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/mediaindex/format/mp4/boxtree"
	"github.com/ugparu/mediaindex/format/mp4/mp4test"
)

func readMovie(t *testing.T, m mp4test.Movie) *boxtree.Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, mp4test.WriteFile(path, m))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	tree, err := boxtree.Read(f)
	require.NoError(t, err)
	return tree
}

func audioTrack(typ string) mp4test.Track {
	return mp4test.Track{
		ID:          1,
		Handler:     "soun",
		Timescale:   8000,
		Entries:     []mp4test.Entry{{Box: mp4test.AudioEntry(typ, 1, 16, 8000)}},
		Stts:        []gomp4.SttsEntry{{SampleCount: 4, SampleDelta: 1}},
		Stsc:        []gomp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionIndex: 1}},
		SampleSize:  2,
		SampleCount: 4,
		Chunks:      [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}},
	}
}

func TestReadStructure(t *testing.T) {
	t.Parallel()

	track := audioTrack("mp4a")
	track.Entries[0].Children = []gomp4.IImmutableBox{mp4test.AACConfig([]byte{0x15, 0x88})}
	track.Elst = []gomp4.ElstEntry{{SegmentDurationV0: 500, MediaTimeV0: -1, MediaRateInteger: 1}}
	tree := readMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{track}})

	var top []string
	for _, id := range tree.Children(boxtree.Root) {
		top = append(top, tree.Node(id).Type.String())
	}
	require.Equal(t, []string{"ftyp", "mdat", "moov"}, top)

	moov := tree.Child(boxtree.Root, gomp4.BoxTypeMoov())
	require.NotEqual(t, boxtree.Nil, moov)
	require.Len(t, tree.ChildrenOf(moov, gomp4.BoxTypeTrak()), 1)

	mvhd, ok := boxtree.Payload[*gomp4.Mvhd](tree, tree.Child(moov, gomp4.BoxTypeMvhd()))
	require.True(t, ok)
	require.Equal(t, uint32(1000), mvhd.Timescale)

	stbl := tree.Find(moov, gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl())
	require.NotEqual(t, boxtree.Nil, stbl)

	stco, ok := boxtree.Payload[*gomp4.Stco](tree, tree.Child(stbl, gomp4.BoxTypeStco()))
	require.True(t, ok)
	require.Len(t, stco.ChunkOffset, 2)
	require.Equal(t, stco.ChunkOffset[0]+4, stco.ChunkOffset[1])

	entry := tree.Find(stbl, gomp4.BoxTypeStsd(), gomp4.BoxTypeMp4a())
	ase, ok := boxtree.Payload[*gomp4.AudioSampleEntry](tree, entry)
	require.True(t, ok)
	require.Equal(t, uint16(8000), ase.GetSampleRateInt())

	esds, ok := boxtree.Payload[*gomp4.Esds](tree, tree.Child(entry, gomp4.BoxTypeEsds()))
	require.True(t, ok)
	require.Len(t, esds.Descriptors, 4)

	elst, ok := boxtree.Payload[*gomp4.Elst](tree, tree.Descendant(moov, gomp4.BoxTypeElst()))
	require.True(t, ok)
	require.Equal(t, int64(-1), elst.GetMediaTime(0))

	mdat := tree.Node(tree.Child(boxtree.Root, gomp4.BoxTypeMdat()))
	require.Nil(t, mdat.Box)
	require.Equal(t, uint64(8+8), mdat.Size)
}

func TestQuickTimeEntries(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"sowt", "twos", "lpcm", "ulaw", "alaw", "in24"} {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()
			tree := readMovie(t, mp4test.Movie{
				Timescale: 1000,
				QuickTime: true,
				Tracks:    []mp4test.Track{audioTrack(typ)},
			})
			stsd := tree.Descendant(boxtree.Root, gomp4.BoxTypeStsd())
			require.NotEqual(t, boxtree.Nil, stsd)

			entry := tree.Child(stsd, gomp4.StrToBoxType(typ))
			ase, ok := boxtree.Payload[*gomp4.AudioSampleEntry](tree, entry)
			require.True(t, ok)
			require.Equal(t, uint16(16), ase.SampleSize)
			require.True(t, tree.Node(entry).QuickTime)
		})
	}
}

func TestConfigBytes(t *testing.T) {
	t.Parallel()

	track := audioTrack("Opus")
	track.Entries[0].Children = []gomp4.IImmutableBox{&gomp4.DOps{OutputChannelCount: 2, PreSkip: 312, InputSampleRate: 48000}}
	tree := readMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{track}})

	dops := tree.Descendant(boxtree.Root, gomp4.BoxTypeDOps())
	require.NotEqual(t, boxtree.Nil, dops)
	node := tree.Node(dops)
	require.Len(t, node.Raw, int(node.Size-node.HeaderSize))

	box, ok := boxtree.Payload[*gomp4.DOps](tree, dops)
	require.True(t, ok)
	require.Equal(t, uint16(312), box.PreSkip)
}

func TestWalk(t *testing.T) {
	t.Parallel()

	tree := readMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{audioTrack("mp4a")}})

	visited := 0
	maxDepth := 0
	tree.Walk(boxtree.Root, func(_ boxtree.NodeID, depth int) bool {
		visited++
		maxDepth = max(maxDepth, depth)
		return true
	})
	require.Equal(t, tree.Len(), visited)
	require.Equal(t, 6, maxDepth) // moov/trak/mdia/minf/stbl/stsd/mp4a

	shallow := 0
	tree.Walk(boxtree.Root, func(boxtree.NodeID, int) bool {
		shallow++
		return false
	})
	require.Equal(t, 3, shallow)
}

func TestReadTruncated(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, mp4test.WriteFile(path, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{audioTrack("mp4a")}}))
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf[:len(buf)-10], 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = boxtree.Read(f)
	require.Error(t, err)
}

func TestNilLookups(t *testing.T) {
	t.Parallel()

	tree := readMovie(t, mp4test.Movie{Timescale: 1000})
	require.Equal(t, boxtree.Nil, tree.Find(boxtree.Root, gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak()))
	_, ok := boxtree.Payload[*gomp4.Mvhd](tree, boxtree.Nil)
	require.False(t, ok)
}
