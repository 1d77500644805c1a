package mkv

import (
	"errors"
	"fmt"
	"io"

	"github.com/at-wat/ebml-go"
)

// Metadata elements decoded with ebml-go struct tags. Field names follow the
// element names of the ebml-go schema.

type header struct {
	EBMLVersion     uint64
	EBMLReadVersion uint64
	EBMLDocType     string
}

type headerElement struct {
	Header header `ebml:"EBML"`
}

type info struct {
	TimecodeScale uint64
	Duration      float64
	MuxingApp     string
	WritingApp    string
}

type infoElement struct {
	Info info `ebml:"Info"`
}

type videoSettings struct {
	PixelWidth  uint64
	PixelHeight uint64
}

type audioSettings struct {
	SamplingFrequency float64
	Channels          uint64
	BitDepth          uint64
}

type trackEntry struct {
	TrackNumber     uint64
	TrackUID        uint64
	TrackType       uint64
	CodecID         string
	CodecPrivate    []byte
	DefaultDuration uint64
	Video           videoSettings
	Audio           audioSettings
}

type tracksElement struct {
	Tracks struct {
		TrackEntry []trackEntry
	} `ebml:"Tracks"`
}

// Matroska TrackType values.
const (
	trackTypeVideo    = 1
	trackTypeAudio    = 2
	trackTypeSubtitle = 0x11
)

const defaultTimecodeScale = 1_000_000

// unmarshalElement decodes the element e of r into v.
func unmarshalElement(r io.ReaderAt, e element, v any) error {
	sr := io.NewSectionReader(r, e.Offset, e.end()-e.Offset)
	if err := ebml.Unmarshal(sr, v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode element 0x%X: %w", e.ID, err)
	}
	return nil
}
