package mkv

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/mediaindex"
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
		if errors.Is(err, io.EOF) {
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

func TestDemuxer(t *testing.T) {
	t.Parallel()

	dmx := NewDemuxer(writeFile(t, testFile()))
	defer dmx.Close()

	infos, err := dmx.Demux()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	require.Equal(t, []readPacket{
		{idx: 0, dts: ms(0), key: true, data: []byte{1, 1, 1}},
		{idx: 1, dts: ms(0), key: true, data: []byte{0xa, 0xa}},
		{idx: 1, dts: ms(20), key: true, data: []byte{0xb, 0xb}},
		{idx: 0, dts: ms(40), key: false, data: []byte{2, 2}},
		{idx: 1, dts: ms(40), key: true, data: []byte{0xc, 0xc}},
		{idx: 0, dts: ms(80), key: true, data: []byte{3, 3, 3, 3}},
		{idx: 0, dts: ms(120), key: false, data: []byte{4}},
	}, drain(t, dmx))
}

func TestDemuxerSeek(t *testing.T) {
	t.Parallel()

	dmx := NewDemuxer(writeFile(t, testFile()))
	defer dmx.Close()
	_, err := dmx.Demux()
	require.NoError(t, err)

	require.NoError(t, dmx.SeekTo(ms(100)))
	got := drain(t, dmx)
	require.Len(t, got, 2)
	require.Equal(t, ms(80), got[0].dts)
	require.True(t, got[0].key)

	require.NoError(t, dmx.SeekTo(ms(30)))
	got = drain(t, dmx)
	require.Equal(t, readPacket{idx: 0, dts: ms(0), key: true, data: []byte{1, 1, 1}}, got[0])
	require.Equal(t, readPacket{idx: 1, dts: ms(20), key: true, data: []byte{0xb, 0xb}}, got[1])
}

func TestDemuxerNoVideo(t *testing.T) {
	t.Parallel()

	dmx := NewDemuxer(writeFile(t, testFile()), mediaindex.NoVideo)
	defer dmx.Close()
	infos, err := dmx.Demux()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, mediaindex.KindAudio, infos[0].Kind)

	got := drain(t, dmx)
	require.Len(t, got, 3)
	for _, pkt := range got {
		require.Equal(t, uint8(0), pkt.idx)
	}
}

func TestDemuxerNotDemuxed(t *testing.T) {
	t.Parallel()

	dmx := NewDemuxer(filepath.Join(t.TempDir(), "missing.mkv"))
	_, err := dmx.ReadPacket()
	require.ErrorAs(t, err, new(*utils.NotDemuxedError))
	require.ErrorAs(t, dmx.SeekTo(0), new(*utils.NotDemuxedError))

	_, err = dmx.Demux()
	require.Error(t, err)
	dmx.Close()
}
