// Package mkv reads Matroska and WebM files through sample-table indexes.
// Metadata elements are decoded with ebml-go; clusters are scanned for the
// byte ranges of their frames.
package mkv

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/utils"
	"github.com/ugparu/mediaindex/utils/logger"
)

var (
	// ErrNotMatroska is returned for input not starting with an EBML header
	// of the matroska or webm doc type.
	ErrNotMatroska = errors.New("mkv: not a matroska file")
	// ErrNoSegment is returned for files without a Segment element.
	ErrNoSegment = errors.New("mkv: 'Segment' element not found")
)

// Segment exposes the tracks of a Matroska segment as raw sample tables. It
// implements mediaindex.TableProvider.
//
// Every block becomes one chunk and every frame of a block one sample.
// Matroska stores presentation times; decoding times are the presentation
// times in ascending order and the difference is reported as composition
// offsets.
type Segment struct {
	r        io.ReaderAt
	size     int64
	docType  string
	scale    uint64 // nanoseconds per timecode tick
	duration time.Duration
	tracks   []*segmentTrack
}

type segmentTrack struct {
	entry  trackEntry
	info   mediaindex.TrackInfo
	blocks []block
	frames []frame
}

type block struct {
	offset uint64
	frames uint32
}

type frame struct {
	time int64 // timecode ticks
	size uint32
	key  bool
	dur  int64 // timecode ticks, 0 when unknown
}

// ReadSegment indexes the first segment of r. size is the length of the input.
// A cluster cut short ends the scan; the frames indexed so far are kept.
func ReadSegment(r io.ReaderAt, size int64) (*Segment, error) {
	er := newElementReader(r, 0, size)
	e, err := er.next()
	if err != nil || e.ID != idEBML || e.Size == unknownSize || e.end() > size {
		return nil, ErrNotMatroska
	}
	var h headerElement
	if err = unmarshalElement(r, e, &h); err != nil {
		return nil, fmt.Errorf("mkv: %w", err)
	}
	switch h.Header.EBMLDocType {
	case "matroska", "webm":
	default:
		return nil, fmt.Errorf("%w: doc type %q", ErrNotMatroska, h.Header.EBMLDocType)
	}

	s := &Segment{r: r, size: size, docType: h.Header.EBMLDocType, scale: defaultTimecodeScale}
	if err = er.seek(e.end()); err != nil {
		return nil, fmt.Errorf("mkv: %w", err)
	}
	for {
		if e, err = er.next(); err != nil {
			return nil, ErrNoSegment
		}
		if e.ID == idSegment {
			break
		}
		if e.Size == unknownSize {
			return nil, ErrNoSegment
		}
		if err = er.seek(e.end()); err != nil {
			return nil, ErrNoSegment
		}
	}

	end := size
	if e.Size != unknownSize {
		end = min(e.end(), size)
	}
	if err = s.scan(er, end); err != nil {
		return nil, fmt.Errorf("mkv: %w", err)
	}
	for _, t := range s.tracks {
		logger.Debugf(s, "track %d: %d frames in %d blocks", t.info.ID, len(t.frames), len(t.blocks))
	}
	return s, nil
}

func (s *Segment) scan(er *elementReader, end int64) error {
	for er.pos < end {
		e, err := er.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			logger.Warningf(s, "segment cut short at %d: %v", er.pos, err)
			return nil
		}

		switch e.ID {
		case idInfo, idTracks:
			if e.Size == unknownSize || e.end() > end {
				return fmt.Errorf("element 0x%X at %d overruns the segment", e.ID, e.Offset)
			}
			if err = s.readMetadata(e); err != nil {
				return err
			}
		case idCluster:
			if err = s.scanCluster(er, e, end); err != nil {
				logger.Warningf(s, "cluster at %d cut short: %v", e.Offset, err)
				return nil
			}
			continue
		default:
			if e.Size == unknownSize {
				return nil
			}
		}
		if err = er.seek(e.end()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Segment) readMetadata(e element) error {
	if e.ID == idInfo {
		var el infoElement
		if err := unmarshalElement(s.r, e, &el); err != nil {
			return err
		}
		if el.Info.TimecodeScale > 0 {
			s.scale = el.Info.TimecodeScale
		}
		if d := el.Info.Duration * float64(s.scale); d > 0 && d < math.MaxInt64 {
			s.duration = time.Duration(d)
		}
		for _, t := range s.tracks {
			t.info.Timescale, _ = s.timescale()
			t.info.Duration = s.duration
		}
		return nil
	}

	var el tracksElement
	if err := unmarshalElement(s.r, e, &el); err != nil {
		return err
	}
	for _, entry := range el.Tracks.TrackEntry {
		if entry.TrackNumber == 0 || entry.TrackNumber > math.MaxUint32 || s.track(uint32(entry.TrackNumber)) != nil {
			logger.Warningf(s, "skipping track entry with number %d", entry.TrackNumber)
			continue
		}
		t := &segmentTrack{entry: entry}
		t.info = mediaindex.TrackInfo{
			ID:       uint32(entry.TrackNumber),
			Kind:     trackKind(entry.TrackType),
			Duration: s.duration,
		}
		t.info.Timescale, _ = s.timescale()
		desc, err := describe(entry)
		if err != nil {
			logger.Warningf(s, "track %d: %v", entry.TrackNumber, err)
		}
		t.info.Descriptions = []mediaindex.SampleDescription{desc}
		s.tracks = append(s.tracks, t)
	}
	return nil
}

func trackKind(typ uint64) mediaindex.TrackKind {
	switch typ {
	case trackTypeVideo:
		return mediaindex.KindVideo
	case trackTypeAudio:
		return mediaindex.KindAudio
	case trackTypeSubtitle:
		return mediaindex.KindText
	}
	return mediaindex.KindUnknown
}

func (s *Segment) scanCluster(er *elementReader, c element, limit int64) error {
	end := limit
	if c.Size != unknownSize {
		end = min(c.end(), limit)
	}

	var timecode int64
	for er.pos < end {
		e, err := er.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if c.Size == unknownSize && topLevel(e.ID) {
			return er.seek(e.Offset)
		}
		if e.Size == unknownSize || e.end() > end {
			return io.ErrUnexpectedEOF
		}

		switch e.ID {
		case idTimecode:
			v, err := er.uint(e)
			if err != nil {
				return err
			}
			timecode = int64(v) //nolint:gosec
		case idSimpleBlock:
			err = s.readBlock(er, e, timecode, blockGroup{simple: true})
		case idBlockGroup:
			err = s.readBlockGroup(er, e, timecode)
		}
		if err != nil {
			return err
		}
		if err = er.seek(e.end()); err != nil {
			return err
		}
	}
	return nil
}

// blockGroup carries what a BlockGroup says about its Block.
type blockGroup struct {
	simple     bool
	referenced bool
	duration   int64
}

func (s *Segment) readBlockGroup(er *elementReader, g element, timecode int64) error {
	var bg blockGroup
	var blk *element
	for er.pos < g.end() {
		e, err := er.next()
		if err != nil {
			return unexpected(err)
		}
		if e.Size == unknownSize || e.end() > g.end() {
			return io.ErrUnexpectedEOF
		}
		switch e.ID {
		case idBlock:
			blk = &e
		case idBlockDuration:
			v, err := er.uint(e)
			if err != nil {
				return err
			}
			bg.duration = int64(v) //nolint:gosec
		case idReferenceBlock:
			bg.referenced = true
		}
		if err = er.seek(e.end()); err != nil {
			return err
		}
	}
	if blk == nil {
		return nil
	}
	if err := er.seek(blk.Data); err != nil {
		return err
	}
	return s.readBlock(er, *blk, timecode, bg)
}

// readBlock records the frames of a Block or SimpleBlock. Laced blocks are
// decoded with ebml-go to learn the frame sizes; frames are stored back to
// back at the end of the block.
func (s *Segment) readBlock(er *elementReader, e element, timecode int64, bg blockGroup) error {
	number, n, err := er.vint(false)
	if err != nil {
		return unexpected(err)
	}
	hdr, err := er.read(3) //nolint:mnd
	if err != nil {
		return err
	}
	t := s.track(uint32(min(number, math.MaxUint32))) //nolint:gosec
	if t == nil {
		return nil
	}

	headerLen := int64(n) + 3 //nolint:mnd
	flags := hdr[2]
	key := !bg.referenced
	if bg.simple {
		key = flags&0x80 != 0
	}

	var sizes []int64
	if flags&0x06 == 0 {
		sizes = []int64{e.Size - headerLen}
	} else {
		b, err := ebml.UnmarshalBlock(io.NewSectionReader(s.r, e.Data, e.Size), e.Size)
		if err != nil {
			return fmt.Errorf("laced block at %d: %w", e.Offset, err)
		}
		for _, d := range b.Data {
			sizes = append(sizes, int64(len(d)))
		}
	}

	var total int64
	for _, sz := range sizes {
		if sz < 0 || sz > math.MaxUint32 {
			return fmt.Errorf("block at %d: invalid frame size %d", e.Offset, sz)
		}
		total += sz
	}
	if total > e.Size-headerLen || len(sizes) == 0 {
		return fmt.Errorf("block at %d: frames overrun the block", e.Offset)
	}

	start := timecode + int64(int16(uint16(hdr[0])<<8|uint16(hdr[1]))) //nolint:gosec
	step := t.laceStep(s.scale, bg.duration, len(sizes))
	t.blocks = append(t.blocks, block{
		offset: uint64(e.end() - total), //nolint:gosec
		frames: uint32(len(sizes)),      //nolint:gosec
	})
	for i, sz := range sizes {
		f := frame{time: start + int64(i)*step, size: uint32(sz), key: key} //nolint:gosec
		if i == len(sizes)-1 && bg.duration > 0 {
			f.dur = bg.duration - int64(i)*step
		}
		t.frames = append(t.frames, f)
	}
	return nil
}

// laceStep is the time between two frames of one block, in timecode ticks.
func (t *segmentTrack) laceStep(scale uint64, blockDuration int64, frames int) int64 {
	if frames < 2 { //nolint:mnd
		return 0
	}
	if t.entry.DefaultDuration > 0 && scale > 0 {
		return int64(t.entry.DefaultDuration / scale) //nolint:gosec
	}
	return blockDuration / int64(frames)
}

func (s *Segment) String() string {
	return fmt.Sprintf("mkv segment tracks=%d", len(s.tracks))
}

// DocType is the EBML doc type, matroska or webm.
func (s *Segment) DocType() string {
	return s.docType
}

// TimecodeScale is the length of one timecode tick in nanoseconds.
func (s *Segment) TimecodeScale() uint64 {
	return s.scale
}

// Duration is the segment duration declared in Info, if any.
func (s *Segment) Duration() time.Duration {
	return s.duration
}

// timescale returns the track timescale for the timecode scale and the factor
// applied to timecodes to express them in it.
func (s *Segment) timescale() (uint32, int64) {
	if s.scale > 0 && s.scale <= uint64(time.Second) && uint64(time.Second)%s.scale == 0 {
		return uint32(uint64(time.Second) / s.scale), 1 //nolint:gosec
	}
	return uint32(time.Second), int64(min(s.scale, math.MaxInt32)) //nolint:gosec
}

// Tracks returns the static description of every track entry.
func (s *Segment) Tracks() []mediaindex.TrackInfo {
	out := make([]mediaindex.TrackInfo, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t.info
	}
	return out
}

func (s *Segment) track(id uint32) *segmentTrack {
	for _, t := range s.tracks {
		if t.info.ID == id {
			return t
		}
	}
	return nil
}

// Tables converts the frames of a track to raw sample tables. A track without
// frames yields empty tables.
func (s *Segment) Tables(trackID uint32) (*mediaindex.Tables, error) {
	t := s.track(trackID)
	if t == nil {
		return nil, &utils.UnknownTrackError{ID: trackID}
	}
	timescale, factor := s.timescale()
	tables := &mediaindex.Tables{
		TrackTimescale: timescale,
		MovieTimescale: timescale,
	}
	if len(t.frames) == 0 {
		return tables, nil
	}

	tables.ChunkOffsets = make([]uint64, len(t.blocks))
	for i, b := range t.blocks {
		tables.ChunkOffsets[i] = b.offset
		runs := tables.SampleToChunk
		if len(runs) > 0 && runs[len(runs)-1].SamplesPerChunk == b.frames {
			continue
		}
		tables.SampleToChunk = append(runs, mediaindex.ChunkRun{
			FirstChunk:             uint32(i + 1), //nolint:gosec
			SamplesPerChunk:        b.frames,
			SampleDescriptionIndex: 1,
		})
	}

	sizes := make([]uint32, len(t.frames))
	for i, f := range t.frames {
		sizes[i] = f.size
	}
	tables.Sizes = mediaindex.SizeTable{PerSample: sizes, Count: uint32(len(sizes))} //nolint:gosec

	tables.DecodingTimes, tables.CompositionTimes = t.timing(factor)

	var sync []uint32
	for i, f := range t.frames {
		if f.key {
			sync = append(sync, uint32(i)) //nolint:gosec
		}
	}
	if len(sync) < len(t.frames) {
		tables.SyncSamples = sync
		if len(sync) == 0 {
			tables.SyncSamples = []uint32{0}
		}
	}
	return tables, nil
}

// timing derives decoding runs and composition offsets from the presentation
// times of the frames.
func (t *segmentTrack) timing(factor int64) ([]mediaindex.TimeRun, []mediaindex.OffsetRun) {
	n := len(t.frames)
	pts := make([]int64, n)
	for i, f := range t.frames {
		pts[i] = f.time * factor
	}
	dts := slices.Clone(pts)
	slices.Sort(dts)

	var runs []mediaindex.TimeRun
	var prev uint32
	for i := range n {
		var delta uint32
		switch {
		case i+1 < n:
			delta = clampDelta(dts[i+1] - dts[i])
		case t.frames[i].dur > 0:
			delta = clampDelta(t.frames[i].dur * factor)
		default:
			delta = prev
		}
		prev = delta
		if k := len(runs) - 1; k >= 0 && runs[k].Delta == delta {
			runs[k].Count++
			continue
		}
		runs = append(runs, mediaindex.TimeRun{Count: 1, Delta: delta})
	}

	var offsets []mediaindex.OffsetRun
	shifted := false
	for i := range n {
		off := int32(max(min(pts[i]-(dts[i]-dts[0]), math.MaxInt32), math.MinInt32)) //nolint:gosec
		shifted = shifted || off != 0
		if k := len(offsets) - 1; k >= 0 && offsets[k].Offset == off {
			offsets[k].Count++
			continue
		}
		offsets = append(offsets, mediaindex.OffsetRun{Count: 1, Offset: off})
	}
	if !shifted {
		offsets = nil
	}
	return runs, offsets
}

func clampDelta(d int64) uint32 {
	return uint32(max(min(d, math.MaxUint32), 0)) //nolint:gosec
}
