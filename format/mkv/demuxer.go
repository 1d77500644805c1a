package mkv

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/format/track"
	"github.com/ugparu/mediaindex/utils"
)

type Demuxer struct {
	r       *os.File
	url     string
	params  []mediaindex.InputParameter
	segment *Segment
	set     *track.Set
}

func NewDemuxer(url string, params ...mediaindex.InputParameter) mediaindex.Demuxer {
	dmx := new(Demuxer)
	dmx.url = url
	dmx.params = params
	return dmx
}

func (dmx *Demuxer) String() string {
	return fmt.Sprintf("MKV_DEMUXER url=%s", dmx.url)
}

func (dmx *Demuxer) Demux() (infos []mediaindex.TrackInfo, err error) {
	if dmx.r, err = os.Open(dmx.url); err != nil {
		return
	}
	var fi os.FileInfo
	if fi, err = dmx.r.Stat(); err == nil {
		err = dmx.probe(dmx.r, fi.Size())
	}
	if err != nil {
		dmx.r.Close()
		dmx.r = nil
		return
	}
	return dmx.set.Infos(), nil
}

// DemuxReader indexes size bytes of r. The demuxer does not take ownership
// of r.
func (dmx *Demuxer) DemuxReader(r io.ReaderAt, size int64) ([]mediaindex.TrackInfo, error) {
	if err := dmx.probe(r, size); err != nil {
		return nil, err
	}
	return dmx.set.Infos(), nil
}

func (dmx *Demuxer) probe(r io.ReaderAt, size int64) (err error) {
	if dmx.segment, err = ReadSegment(r, size); err != nil {
		return
	}
	if dmx.set, err = track.NewSet(dmx.url, r, size, dmx.segment, dmx.params...); err != nil {
		return fmt.Errorf("mkv: %w", err)
	}
	return
}

func (dmx *Demuxer) Close() {
	if dmx.r != nil {
		dmx.r.Close()
		dmx.r = nil
	}
}

func (dmx *Demuxer) ReadPacket() (mediaindex.Packet, error) {
	if dmx.set == nil {
		return nil, &utils.NotDemuxedError{}
	}
	return dmx.set.ReadPacket()
}

func (dmx *Demuxer) SeekTo(d time.Duration) error {
	if dmx.set == nil {
		return &utils.NotDemuxedError{}
	}
	return dmx.set.SeekTo(d)
}

// Segment returns the parsed segment; nil before Demux.
func (dmx *Demuxer) Segment() *Segment {
	return dmx.segment
}

// Tracks returns the indexed tracks; nil before Demux.
func (dmx *Demuxer) Tracks() *track.Set {
	return dmx.set
}
