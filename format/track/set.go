// Package track reads the samples of several indexed tracks of one file in
// decode order, the way a demuxer hands them out.
package track

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/index"
	"github.com/ugparu/mediaindex/utils"
	"github.com/ugparu/mediaindex/utils/buffer"
	"github.com/ugparu/mediaindex/utils/logger"
)

// spanLimit bounds the number of uncompressed audio samples merged into one
// packet.
const spanLimit = 1024

// Track is one indexed track of a Set.
type Track struct {
	Info  mediaindex.TrackInfo
	Index *index.Index

	idx     uint8
	cursor  *index.Cursor
	span    uint32
	enabled bool
	lastDur time.Duration
	damaged bool
}

func (t *Track) String() string {
	return t.Index.String()
}

// Enabled reports whether the track takes part in reading.
func (t *Track) Enabled() bool {
	return t.enabled
}

// StreamIndex returns the index packets of this track carry.
func (t *Track) StreamIndex() uint8 {
	return t.idx
}

func (t *Track) codec(desc uint32) mediaindex.CodecType {
	d, ok := t.Info.Description(desc)
	if !ok {
		return mediaindex.Unknown
	}
	return d.Codec
}

// Set drives one cursor per track over a shared reader.
type Set struct {
	name string

	mu   sync.Mutex
	r    io.ReaderAt
	size uint64

	tracks   []*Track
	position time.Duration
}

// NewSet indexes every track p exposes. A track whose tables cannot be
// indexed is left out with a warning; its siblings are still read. size is the
// length of the input behind r; samples reaching past it are never read.
func NewSet(name string, r io.ReaderAt, size int64, p mediaindex.TableProvider,
	params ...mediaindex.InputParameter,
) (*Set, error) {
	s := &Set{name: name, r: r, size: uint64(max(size, 0))} //nolint:gosec

	var opts []index.Option
	if slices.Contains(params, mediaindex.NoEditLists) {
		opts = append(opts, index.WithoutEditList())
	}

	for _, info := range p.Tracks() {
		switch {
		case info.Kind == mediaindex.KindVideo && slices.Contains(params, mediaindex.NoVideo):
			continue
		case info.Kind == mediaindex.KindAudio && slices.Contains(params, mediaindex.NoAudio):
			continue
		}
		if len(s.tracks) > int(^uint8(0)) {
			logger.Warningf(s, "track %d ignored: too many tracks", info.ID)
			continue
		}

		tables, err := p.Tables(info.ID)
		if err != nil {
			logger.Warningf(s, "track %d disabled: %v", info.ID, err)
			continue
		}
		trackOpts := append(slices.Clone(opts), index.WithName(fmt.Sprintf("%s track %d", name, info.ID)))
		idx, err := index.Build(tables, trackOpts...)
		if err != nil {
			logger.Warningf(s, "track %d disabled: %v", info.ID, err)
			continue
		}

		t := &Track{
			Info:    info,
			Index:   idx,
			idx:     uint8(len(s.tracks)), //nolint:gosec
			cursor:  idx.NewCursor(),
			span:    1,
			enabled: true,
		}
		if idx.Packetized() || isUncompressed(info) {
			t.span = spanLimit
		}
		s.tracks = append(s.tracks, t)
	}

	if len(s.tracks) == 0 {
		return nil, &utils.NoTracksError{}
	}
	return s, nil
}

func isUncompressed(info mediaindex.TrackInfo) bool {
	if len(info.Descriptions) == 0 {
		return false
	}
	switch info.Descriptions[0].Codec {
	case mediaindex.PCM, mediaindex.PCMAlaw, mediaindex.PCMMulaw:
		return true
	}
	return false
}

func (s *Set) String() string {
	return s.name
}

// Tracks returns the indexed tracks in stream index order.
func (s *Set) Tracks() []*Track {
	return s.tracks
}

// Infos returns the description of the indexed tracks.
func (s *Set) Infos() []mediaindex.TrackInfo {
	out := make([]mediaindex.TrackInfo, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t.Info
	}
	return out
}

// Track returns the track with the given container id, or nil.
func (s *Set) Track(id uint32) *Track {
	for _, t := range s.tracks {
		if t.Info.ID == id {
			return t
		}
	}
	return nil
}

func (s *Set) readAt(p []byte, off uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.r.ReadAt(p, int64(off)) //nolint:gosec
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// inBounds reports whether the bytes of d lie inside the input.
func (s *Set) inBounds(d mediaindex.SampleDescriptor) bool {
	return d.Offset <= s.size && uint64(d.Size) <= s.size-d.Offset
}

// pick returns the enabled track holding the pending sample with the lowest
// decoding time; ties go to the lower stream index.
func (s *Set) pick() (*Track, mediaindex.SampleDescriptor) {
	var chosen *Track
	var next mediaindex.SampleDescriptor
	for _, t := range s.tracks {
		if !t.enabled || t.cursor.Exhausted() {
			continue
		}
		d, err := t.cursor.Span(t.span)
		if err != nil {
			continue
		}
		if chosen == nil || d.DTS < next.DTS {
			chosen, next = t, d
		}
	}
	return chosen, next
}

// skip steps over a sample whose bytes are missing from the input. The first
// one of each track is logged.
func (s *Set) skip(t *Track, d mediaindex.SampleDescriptor) {
	if !t.damaged {
		t.damaged = true
		logger.Warningf(t, "sample at %d (%d bytes) is past the end of the input, skipping unreadable samples",
			d.Offset, d.Size)
	}
	_, _ = t.cursor.AdvanceBy(max(d.Samples, 1))
}

// ReadPacket returns the pending sample with the lowest decoding time across
// enabled tracks. Samples lying past the end of the input are skipped, so a
// truncated track ends early while its siblings go on. io.EOF is returned once
// every track is exhausted.
func (s *Set) ReadPacket() (mediaindex.Packet, error) {
	for {
		chosen, next := s.pick()
		if chosen == nil {
			return nil, io.EOF
		}
		if !s.inBounds(next) && next.Samples > 1 {
			if d, err := chosen.cursor.Span(1); err == nil {
				next = d
			}
		}
		if !s.inBounds(next) {
			s.skip(chosen, next)
			continue
		}

		buf := buffer.Get(int(next.Size))
		err := s.readAt(buf.Data(), next.Offset)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			buf.Release()
			s.skip(chosen, next)
			continue
		}
		if err != nil {
			buf.Release()
			return nil, fmt.Errorf("%s: sample at %d: %w", chosen, next.Offset, err)
		}
		return s.emit(chosen, next, buf), nil
	}
}

func (s *Set) emit(chosen *Track, next mediaindex.SampleDescriptor, buf buffer.PooledBuffer) *Packet {
	pkt := &Packet{
		Idx:         chosen.idx,
		CodecType:   chosen.codec(next.DescriptionIndex),
		PTS:         next.PTS,
		DTS:         next.DTS,
		Key:         next.Sync,
		Description: next.DescriptionIndex,
		Samples:     next.Samples,
		Offset:      next.Offset,
		buf:         buf,
	}
	s.position = next.DTS

	tr, err := chosen.cursor.AdvanceBy(max(next.Samples, 1))
	if tr.DescriptionChanged {
		logger.Debugf(chosen, "sample description changed to %d", tr.DescriptionIndex)
	}
	pkt.Dur = chosen.lastDur
	if err == nil {
		if d, err := chosen.cursor.Current(); err == nil && d.DTS > next.DTS {
			pkt.Dur = d.DTS - next.DTS
		}
	}
	chosen.lastDur = pkt.Dur
	return pkt
}

// SeekTo moves every enabled track to the sample presented at d. Tracks with
// nothing left at d are exhausted; an error is returned only when no track
// could be positioned.
func (s *Set) SeekTo(d time.Duration) error {
	var lastErr error
	positioned := 0
	for _, t := range s.tracks {
		if !t.enabled {
			continue
		}
		if _, err := t.cursor.SeekToTime(d); err != nil {
			logger.Debugf(t, "seek to %v: %v", d, err)
			lastErr = err
			continue
		}
		positioned++
	}
	s.position = d
	if positioned == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// Reset moves every track back to its first sample.
func (s *Set) Reset() {
	for _, t := range s.tracks {
		t.cursor.Reset()
		t.lastDur = 0
	}
	s.position = 0
}

// SetEnabled turns a track on or off. A track turned back on resumes at the
// position of the last packet read.
func (s *Set) SetEnabled(id uint32, on bool) error {
	t := s.Track(id)
	if t == nil {
		return &utils.UnknownTrackError{ID: id}
	}
	if t.enabled == on {
		return nil
	}
	t.enabled = on
	if !on {
		return nil
	}
	if s.position == 0 {
		t.cursor.Reset()
		return nil
	}
	if _, err := t.cursor.SeekToTime(s.position); err != nil {
		logger.Debugf(t, "resume at %v: %v", s.position, err)
	}
	return nil
}
