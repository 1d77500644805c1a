package mp4

import (
	"io"
	"testing"
	"time"

	gomp4 "github.com/abema/go-mp4"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/format/mp4/mp4test"
	"github.com/ugparu/mediaindex/utils"
)

type readPacket struct {
	idx  uint8
	dts  time.Duration
	key  bool
	data []byte
}

func drain(t *testing.T, dmx mediaindex.Demuxer) []readPacket {
	t.Helper()
	var out []readPacket
	for {
		pkt, err := dmx.ReadPacket()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, readPacket{
			idx:  pkt.StreamIndex(),
			dts:  pkt.DecodeTimestamp(),
			key:  pkt.IsKeyFrame(),
			data: append([]byte(nil), pkt.Data()...),
		})
		pkt.Release()
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func TestDemuxerInterleaving(t *testing.T) {
	t.Parallel()

	path := writeMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{videoTrack(), aacTrack()}})
	dmx := NewDemuxer(path)
	defer dmx.Close()

	infos, err := dmx.Demux()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	audio := func(k int, dts int) readPacket {
		return readPacket{idx: 1, dts: ms(dts), key: true, data: []byte{byte(0x20 + 2*k), byte(0x21 + 2*k)}}
	}
	require.Equal(t, []readPacket{
		{idx: 0, dts: ms(0), key: true, data: []byte{0x10, 0x11, 0x12}},
		audio(0, 0),
		audio(1, 50),
		{idx: 0, dts: ms(100), key: false, data: []byte{0x13}},
		audio(2, 100),
		audio(3, 150),
		{idx: 0, dts: ms(200), key: true, data: []byte{0x14, 0x15}},
		audio(4, 200),
		audio(5, 250),
		{idx: 0, dts: ms(300), key: false, data: []byte{0x16, 0x17}},
		audio(6, 300),
		audio(7, 350),
	}, drain(t, dmx))
}

func TestDemuxerDurations(t *testing.T) {
	t.Parallel()

	path := writeMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{videoTrack()}})
	dmx := NewDemuxer(path)
	defer dmx.Close()
	_, err := dmx.Demux()
	require.NoError(t, err)

	for range 4 {
		pkt, err := dmx.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, ms(100), pkt.Duration())
		require.Equal(t, mediaindex.H264, pkt.Codec())
		pkt.Release()
	}
}

func TestDemuxerSeek(t *testing.T) {
	t.Parallel()

	path := writeMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{videoTrack(), aacTrack()}})
	dmx := NewDemuxer(path)
	defer dmx.Close()
	_, err := dmx.Demux()
	require.NoError(t, err)

	require.NoError(t, dmx.SeekTo(ms(220)))
	got := drain(t, dmx)
	require.Len(t, got, 6)
	require.Equal(t, readPacket{idx: 0, dts: ms(200), key: true, data: []byte{0x14, 0x15}}, got[0])
	require.Equal(t, ms(200), got[1].dts)
	require.Equal(t, uint8(1), got[1].idx)

	// a video seek snaps back to the preceding sync sample
	require.NoError(t, dmx.SeekTo(ms(150)))
	pkt, err := dmx.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, ms(0), pkt.DecodeTimestamp())
	require.True(t, pkt.IsKeyFrame())
	pkt.Release()

	require.Error(t, dmx.SeekTo(time.Hour))
	_, err = dmx.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestDemuxerParams(t *testing.T) {
	t.Parallel()

	path := writeMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{videoTrack(), aacTrack()}})

	dmx := NewDemuxer(path, mediaindex.NoAudio)
	defer dmx.Close()
	infos, err := dmx.Demux()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, mediaindex.KindVideo, infos[0].Kind)
	require.Len(t, drain(t, dmx), 4)

	only := NewDemuxer(path, mediaindex.NoVideo, mediaindex.NoAudio)
	defer only.Close()
	_, err = only.Demux()
	var none *utils.NoTracksError
	require.ErrorAs(t, err, &none)
}

func TestDemuxerDescriptionChange(t *testing.T) {
	t.Parallel()

	video := videoTrack()
	video.Entries = append(video.Entries, mp4test.Entry{Box: mp4test.VideoEntry("hvc1", 64, 48)})
	video.Stsc = []gomp4.StscEntry{
		{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionIndex: 1},
		{FirstChunk: 2, SamplesPerChunk: 2, SampleDescriptionIndex: 2},
	}
	path := writeMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{video}})

	dmx := NewDemuxer(path)
	defer dmx.Close()
	_, err := dmx.Demux()
	require.NoError(t, err)

	var codecs []mediaindex.CodecType
	for {
		pkt, err := dmx.ReadPacket()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		codecs = append(codecs, pkt.Codec())
		pkt.Release()
	}
	require.Equal(t, []mediaindex.CodecType{mediaindex.H264, mediaindex.H264, mediaindex.H265, mediaindex.H265}, codecs)
}

func TestDemuxerBrokenTrack(t *testing.T) {
	t.Parallel()

	broken := aacTrack()
	broken.Stsc = nil
	path := writeMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{videoTrack(), broken}})

	dmx := NewDemuxer(path)
	defer dmx.Close()
	infos, err := dmx.Demux()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, uint32(1), infos[0].ID)
	require.Len(t, drain(t, dmx), 4)
}

func TestDemuxerEditList(t *testing.T) {
	t.Parallel()

	video := videoTrack()
	video.Elst = []gomp4.ElstEntry{{SegmentDurationV0: 200, MediaTimeV0: 200, MediaRateInteger: 1}}
	path := writeMovie(t, mp4test.Movie{Timescale: 1000, Tracks: []mp4test.Track{video}})

	dmx := NewDemuxer(path)
	defer dmx.Close()
	_, err := dmx.Demux()
	require.NoError(t, err)
	got := drain(t, dmx)
	require.Len(t, got, 2)
	require.Equal(t, ms(0), got[0].dts)
	require.Equal(t, []byte{0x14, 0x15}, got[0].data)

	plain := NewDemuxer(path, mediaindex.NoEditLists)
	defer plain.Close()
	_, err = plain.Demux()
	require.NoError(t, err)
	require.Len(t, drain(t, plain), 4)
}

func TestDemuxerNotDemuxed(t *testing.T) {
	t.Parallel()

	dmx := NewDemuxer("missing.mp4")
	_, err := dmx.ReadPacket()
	require.ErrorAs(t, err, new(*utils.NotDemuxedError))
	require.ErrorAs(t, dmx.SeekTo(0), new(*utils.NotDemuxedError))

	_, err = dmx.Demux()
	require.Error(t, err)
	dmx.Close()
}
