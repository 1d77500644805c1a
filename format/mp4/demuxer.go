// Package mp4 reads ISO-BMFF and QuickTime files through sample-table indexes.
package mp4

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
	r      *os.File
	url    string
	params []mediaindex.InputParameter
	movie  *Movie
	set    *track.Set
}

func NewDemuxer(url string, params ...mediaindex.InputParameter) mediaindex.Demuxer {
	dmx := new(Demuxer)
	dmx.url = url
	dmx.params = params
	return dmx
}

func (dmx *Demuxer) String() string {
	return fmt.Sprintf("MP4_DEMUXER url=%s", dmx.url)
}

func (dmx *Demuxer) Demux() (infos []mediaindex.TrackInfo, err error) {
	if dmx.r, err = os.Open(dmx.url); err != nil {
		return
	}
	if err = dmx.probe(dmx.r); err != nil {
		dmx.r.Close()
		dmx.r = nil
		return
	}
	return dmx.set.Infos(), nil
}

// DemuxReader indexes a file that is already open. The demuxer does not take
// ownership of r.
func (dmx *Demuxer) DemuxReader(r interface {
	io.ReadSeeker
	io.ReaderAt
}) ([]mediaindex.TrackInfo, error) {
	if err := dmx.probe(r); err != nil {
		return nil, err
	}
	return dmx.set.Infos(), nil
}

func (dmx *Demuxer) probe(r interface {
	io.ReadSeeker
	io.ReaderAt
}) (err error) {
	if dmx.movie, err = ReadMovie(r); err != nil {
		return
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if dmx.set, err = track.NewSet(dmx.url, r, size, dmx.movie, dmx.params...); err != nil {
		return fmt.Errorf("mp4: %w", err)
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

// Movie returns the parsed moov; nil before Demux.
func (dmx *Demuxer) Movie() *Movie {
	return dmx.movie
}

// Tracks returns the indexed tracks; nil before Demux.
func (dmx *Demuxer) Tracks() *track.Set {
	return dmx.set
}
