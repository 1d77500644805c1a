package mp4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	gomp4 "github.com/abema/go-mp4"
	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/format/mp4/boxtree"
	"github.com/ugparu/mediaindex/utils"
	"github.com/ugparu/mediaindex/utils/logger"
)

// ErrNoMovie is returned for files without a moov box.
var ErrNoMovie = errors.New("mp4: 'moov' atom not found")

// Movie exposes the tracks of a moov box as raw sample tables. It implements
// mediaindex.TableProvider.
type Movie struct {
	tree      *boxtree.Tree
	timescale uint32
	duration  time.Duration
	tracks    []movieTrack
}

type movieTrack struct {
	info mediaindex.TrackInfo
	trak boxtree.NodeID
	stbl boxtree.NodeID
}

// ReadMovie parses the box structure of r.
func ReadMovie(r io.ReadSeeker) (*Movie, error) {
	tree, err := boxtree.Read(r)
	if err != nil {
		return nil, fmt.Errorf("mp4: %w", err)
	}
	return NewMovie(tree)
}

// NewMovie collects the tracks of an already parsed tree. Tracks without a
// sample table are skipped.
func NewMovie(tree *boxtree.Tree) (*Movie, error) {
	moov := tree.Child(boxtree.Root, gomp4.BoxTypeMoov())
	if moov == boxtree.Nil {
		return nil, ErrNoMovie
	}

	m := &Movie{tree: tree}
	if mvhd, ok := boxtree.Payload[*gomp4.Mvhd](tree, tree.Child(moov, gomp4.BoxTypeMvhd())); ok {
		m.timescale = mvhd.Timescale
		m.duration = durationMp4ToGo(mvhd.GetDuration(), mvhd.Timescale)
	}

	for i, trak := range tree.ChildrenOf(moov, gomp4.BoxTypeTrak()) {
		tr, err := m.readTrack(trak)
		if err != nil {
			logger.Warningf(m, "skipping track #%d: %v", i, err)
			continue
		}
		m.tracks = append(m.tracks, tr)
	}
	return m, nil
}

func durationMp4ToGo(v uint64, timeScale uint32) time.Duration {
	if timeScale == 0 {
		return 0
	}
	ts := uint64(timeScale)
	secs := v / ts
	dec := v % ts
	return time.Duration(secs)*time.Second + time.Duration(dec)*time.Second/time.Duration(ts) //nolint:gosec
}

func (m *Movie) String() string {
	return fmt.Sprintf("mp4 movie tracks=%d", len(m.tracks))
}

// Tree returns the parsed box structure.
func (m *Movie) Tree() *boxtree.Tree {
	return m.tree
}

// Timescale returns the movie timescale from mvhd.
func (m *Movie) Timescale() uint32 {
	return m.timescale
}

// Duration returns the movie duration declared in mvhd.
func (m *Movie) Duration() time.Duration {
	return m.duration
}

func (m *Movie) readTrack(trak boxtree.NodeID) (movieTrack, error) {
	t := m.tree
	tr := movieTrack{trak: trak}

	tkhd, ok := boxtree.Payload[*gomp4.Tkhd](t, t.Child(trak, gomp4.BoxTypeTkhd()))
	if !ok {
		return tr, errors.New("no tkhd")
	}
	tr.info.ID = tkhd.TrackID

	mdia := t.Child(trak, gomp4.BoxTypeMdia())
	mdhd, ok := boxtree.Payload[*gomp4.Mdhd](t, t.Child(mdia, gomp4.BoxTypeMdhd()))
	if !ok {
		return tr, errors.New("no mdhd")
	}
	tr.info.Timescale = mdhd.Timescale
	tr.info.Duration = durationMp4ToGo(mdhd.GetDuration(), mdhd.Timescale)

	if hdlr, ok := boxtree.Payload[*gomp4.Hdlr](t, t.Child(mdia, gomp4.BoxTypeHdlr())); ok {
		tr.info.Kind = handlerKind(hdlr.HandlerType)
	}

	tr.stbl = t.Find(mdia, gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl())
	if tr.stbl == boxtree.Nil {
		return tr, errors.New("no stbl")
	}

	stsd := t.Child(tr.stbl, gomp4.BoxTypeStsd())
	if stsd == boxtree.Nil {
		return tr, errors.New("no stsd")
	}
	for i, entry := range t.Children(stsd) {
		d, err := describe(t, entry, uint32(i+1)) //nolint:gosec
		if err != nil {
			logger.Warningf(m, "track %d description %d: %v", tr.info.ID, i+1, err)
		}
		tr.info.Descriptions = append(tr.info.Descriptions, d)
	}
	if tr.info.Kind == mediaindex.KindUnknown && len(tr.info.Descriptions) > 0 {
		tr.info.Kind = codecKind(tr.info.Descriptions[0].Codec)
	}
	return tr, nil
}

// codecKind classifies tracks whose handler type is missing or unusual.
func codecKind(c mediaindex.CodecType) mediaindex.TrackKind {
	switch {
	case c.IsVideo():
		return mediaindex.KindVideo
	case c.IsAudio():
		return mediaindex.KindAudio
	}
	return mediaindex.KindUnknown
}

func handlerKind(h [4]byte) mediaindex.TrackKind {
	switch string(h[:]) {
	case "vide":
		return mediaindex.KindVideo
	case "soun":
		return mediaindex.KindAudio
	case "text", "sbtl", "subt", "clcp":
		return mediaindex.KindText
	}
	return mediaindex.KindUnknown
}

// Tracks returns the static description of every usable track.
func (m *Movie) Tracks() []mediaindex.TrackInfo {
	out := make([]mediaindex.TrackInfo, len(m.tracks))
	for i := range m.tracks {
		out[i] = m.tracks[i].info
	}
	return out
}

func (m *Movie) track(id uint32) *movieTrack {
	for i := range m.tracks {
		if m.tracks[i].info.ID == id {
			return &m.tracks[i]
		}
	}
	return nil
}

// Tables returns the raw sample tables of a track. Absent tables are left
// empty; deciding whether the track is usable is up to the index.
func (m *Movie) Tables(trackID uint32) (*mediaindex.Tables, error) {
	tr := m.track(trackID)
	if tr == nil {
		return nil, &utils.UnknownTrackError{ID: trackID}
	}
	t := m.tree
	stbl := tr.stbl

	tables := &mediaindex.Tables{
		TrackTimescale: tr.info.Timescale,
		MovieTimescale: m.timescale,
		SyncOneBased:   true,
	}

	if co64, ok := boxtree.Payload[*gomp4.Co64](t, t.Child(stbl, gomp4.BoxTypeCo64())); ok {
		tables.ChunkOffsets = co64.ChunkOffset
	} else if stco, ok := boxtree.Payload[*gomp4.Stco](t, t.Child(stbl, gomp4.BoxTypeStco())); ok {
		tables.ChunkOffsets = make([]uint64, len(stco.ChunkOffset))
		for i, o := range stco.ChunkOffset {
			tables.ChunkOffsets[i] = uint64(o)
		}
	}

	if stsc, ok := boxtree.Payload[*gomp4.Stsc](t, t.Child(stbl, gomp4.BoxTypeStsc())); ok {
		tables.SampleToChunk = make([]mediaindex.ChunkRun, len(stsc.Entries))
		for i, e := range stsc.Entries {
			tables.SampleToChunk[i] = mediaindex.ChunkRun{
				FirstChunk:             e.FirstChunk,
				SamplesPerChunk:        e.SamplesPerChunk,
				SampleDescriptionIndex: e.SampleDescriptionIndex,
			}
		}
	}

	if stsz, ok := boxtree.Payload[*gomp4.Stsz](t, t.Child(stbl, gomp4.BoxTypeStsz())); ok {
		tables.Sizes = mediaindex.SizeTable{Constant: stsz.SampleSize, Count: stsz.SampleCount}
		if stsz.SampleSize == 0 {
			tables.Sizes.PerSample = stsz.EntrySize
		}
	}

	if stts, ok := boxtree.Payload[*gomp4.Stts](t, t.Child(stbl, gomp4.BoxTypeStts())); ok {
		tables.DecodingTimes = make([]mediaindex.TimeRun, len(stts.Entries))
		for i, e := range stts.Entries {
			tables.DecodingTimes[i] = mediaindex.TimeRun{Count: e.SampleCount, Delta: e.SampleDelta}
		}
	}

	if ctts, ok := boxtree.Payload[*gomp4.Ctts](t, t.Child(stbl, gomp4.BoxTypeCtts())); ok {
		tables.CompositionTimes = make([]mediaindex.OffsetRun, len(ctts.Entries))
		for i, e := range ctts.Entries {
			// version 0 offsets above 2^31 are written by muxers that meant negative values
			tables.CompositionTimes[i] = mediaindex.OffsetRun{
				Count:  e.SampleCount,
				Offset: int32(ctts.GetSampleOffset(i)), //nolint:gosec
			}
		}
	}

	if stss, ok := boxtree.Payload[*gomp4.Stss](t, t.Child(stbl, gomp4.BoxTypeStss())); ok {
		tables.SyncSamples = stss.SampleNumber
	}

	if elst, ok := boxtree.Payload[*gomp4.Elst](t, t.Find(tr.trak, gomp4.BoxTypeEdts(), gomp4.BoxTypeElst())); ok {
		tables.Edits = make([]mediaindex.EditSegment, len(elst.Entries))
		for i, e := range elst.Entries {
			tables.Edits[i] = mediaindex.EditSegment{
				Duration:  elst.GetSegmentDuration(i),
				MediaTime: elst.GetMediaTime(i),
				RateNum:   int32(e.MediaRateInteger),
				RateDen:   int32(e.MediaRateFraction),
			}
		}
	}

	if tables.Sizes.Constant > 0 {
		m.fixAudioSizes(tr, tables)
	}
	return tables, nil
}

// fixAudioSizes applies the QuickTime sound description to constant sample
// sizes: version 1 entries describe blocked packets, and version 0 PCM entries
// often declare a size of one byte regardless of the sample width.
func (m *Movie) fixAudioSizes(tr *movieTrack, tables *mediaindex.Tables) {
	t := m.tree
	stsd := t.Child(tr.stbl, gomp4.BoxTypeStsd())
	entries := t.Children(stsd)
	if len(entries) == 0 {
		return
	}
	ase, ok := boxtree.Payload[*gomp4.AudioSampleEntry](t, entries[0])
	if !ok {
		return
	}

	switch {
	case ase.EntryVersion == 1 && len(ase.QuickTimeData) >= 12: //nolint:mnd
		spp := binary.BigEndian.Uint32(ase.QuickTimeData[0:4])
		bpf := binary.BigEndian.Uint32(ase.QuickTimeData[8:12])
		if spp > 0 && bpf > 1 {
			tables.Packets = &mediaindex.PacketLayout{SamplesPerPacket: spp, BytesPerFrame: bpf}
		}
	case ase.EntryVersion == 0 && tables.Sizes.Constant == 1 && isPCM(tr.info.Descriptions):
		width := uint32(tr.info.Descriptions[0].SampleFormat.BytesPerSample()) //nolint:gosec
		if width == 0 {
			width = uint32(ase.SampleSize) / 8 //nolint:mnd
		}
		if frame := width * uint32(ase.ChannelCount); frame > 1 {
			logger.Debugf(m, "track %d: constant sample size 1 raised to %d", tr.info.ID, frame)
			tables.Sizes.Constant = frame
		}
	}
}

func isPCM(descs []mediaindex.SampleDescription) bool {
	if len(descs) == 0 {
		return false
	}
	switch descs[0].Codec {
	case mediaindex.PCM, mediaindex.PCMAlaw, mediaindex.PCMMulaw:
		return true
	}
	return false
}
