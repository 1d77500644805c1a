package mkv

import (
	"bufio"
	"errors"
	"io"
)

// Element ids, RFC 8794 and RFC 9559.
const (
	idEBML           = 0x1A45DFA3
	idSegment        = 0x18538067
	idSeekHead       = 0x114D9B74
	idInfo           = 0x1549A966
	idTracks         = 0x1654AE6B
	idCluster        = 0x1F43B675
	idCues           = 0x1C53BB6B
	idTags           = 0x1254C367
	idChapters       = 0x1043A770
	idAttachments    = 0x1941A469
	idTimecode       = 0xE7
	idSimpleBlock    = 0xA3
	idBlockGroup     = 0xA0
	idBlock          = 0xA1
	idBlockDuration  = 0x9B
	idReferenceBlock = 0xFB
)

const unknownSize = -1

// topLevel reports whether id starts a Segment child. It ends a cluster of
// unknown size.
func topLevel(id uint64) bool {
	switch id {
	case idSeekHead, idInfo, idTracks, idCluster, idCues, idTags, idChapters, idAttachments:
		return true
	}
	return false
}

// element is the header of one EBML element. Size is unknownSize for
// elements that run to the end of their parent.
type element struct {
	ID     uint64
	Offset int64 // header start
	Data   int64 // payload start
	Size   int64
}

func (e element) end() int64 {
	return e.Data + e.Size
}

// elementReader walks EBML headers sequentially, seeking over payloads.
type elementReader struct {
	rs  io.ReadSeeker
	r   *bufio.Reader
	pos int64
}

func newElementReader(r io.ReaderAt, off, n int64) *elementReader {
	sr := io.NewSectionReader(r, off, n)
	return &elementReader{rs: sr, r: bufio.NewReaderSize(sr, 8*1024), pos: 0}
}

func (er *elementReader) readByte() (byte, error) {
	b, err := er.r.ReadByte()
	if err != nil {
		return 0, err
	}
	er.pos++
	return b, nil
}

func (er *elementReader) read(n int64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(er.r, buf); err != nil {
		return nil, unexpected(err)
	}
	er.pos += n
	return buf, nil
}

func (er *elementReader) seek(pos int64) error {
	if pos == er.pos {
		return nil
	}
	if pos > er.pos && pos-er.pos <= int64(er.r.Buffered()) {
		n, err := er.r.Discard(int(pos - er.pos))
		er.pos += int64(n)
		return err
	}
	if _, err := er.rs.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	er.r.Reset(er.rs)
	er.pos = pos
	return nil
}

func vintLength(first byte) int {
	for i := range 8 {
		if first&(0x80>>i) != 0 {
			return i + 1
		}
	}
	return 0
}

// vint reads a variable length integer. With raw set the length marker is
// kept, as element ids are written.
func (er *elementReader) vint(raw bool) (uint64, int, error) {
	first, err := er.readByte()
	if err != nil {
		return 0, 0, err
	}
	n := vintLength(first)
	if n == 0 {
		return 0, 0, errInvalidVint
	}
	v := uint64(first)
	if !raw {
		v &= uint64(0xFF >> n)
	}
	for range n - 1 {
		b, err := er.readByte()
		if err != nil {
			return 0, 0, unexpected(err)
		}
		v = v<<8 | uint64(b)
	}
	return v, n, nil
}

// next reads the header of the element at the current position. io.EOF is
// returned when the input ends on an element boundary.
func (er *elementReader) next() (element, error) {
	e := element{Offset: er.pos}
	id, _, err := er.vint(true)
	if err != nil {
		return e, err
	}
	size, n, err := er.vint(false)
	if err != nil {
		return e, unexpected(err)
	}
	e.ID = id
	e.Data = er.pos
	e.Size = int64(size) //nolint:gosec
	if size == 1<<(7*n)-1 {
		e.Size = unknownSize
	}
	if e.Size < unknownSize {
		return e, errInvalidVint
	}
	return e, nil
}

func (er *elementReader) uint(e element) (uint64, error) {
	if e.Size < 0 || e.Size > 8 { //nolint:mnd
		return 0, errInvalidVint
	}
	buf, err := er.read(e.Size)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

var errInvalidVint = errors.New("mkv: invalid variable length integer")

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
