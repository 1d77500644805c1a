// Package mkvtest writes small Matroska files for tests.
package mkvtest

import (
	"io"
	"os"

	"github.com/at-wat/ebml-go"
)

type EBMLHeader struct {
	EBMLVersion            uint64
	EBMLReadVersion        uint64
	EBMLMaxIDLength        uint64
	EBMLMaxSizeLength      uint64
	EBMLDocType            string
	EBMLDocTypeVersion     uint64
	EBMLDocTypeReadVersion uint64
}

type Info struct {
	TimecodeScale uint64
	Duration      float64
	MuxingApp     string
	WritingApp    string
}

type Video struct {
	PixelWidth  uint64
	PixelHeight uint64
}

type Audio struct {
	SamplingFrequency float64
	Channels          uint64
	BitDepth          uint64
}

type TrackEntry struct {
	TrackNumber     uint64
	TrackUID        uint64
	TrackType       uint64
	CodecID         string
	CodecPrivate    []byte `ebml:",omitempty"`
	DefaultDuration uint64 `ebml:",omitempty"`
	Video           Video
	Audio           Audio
}

type Tracks struct {
	TrackEntry []TrackEntry
}

type BlockGroup struct {
	Block          ebml.Block
	BlockDuration  uint64  `ebml:",omitempty"`
	ReferenceBlock []int64 `ebml:",omitempty"`
}

type Cluster struct {
	Timecode    uint64
	SimpleBlock []ebml.Block `ebml:",omitempty"`
	BlockGroup  []BlockGroup `ebml:",omitempty"`
}

type Segment struct {
	Info    Info
	Tracks  Tracks
	Cluster []Cluster
}

// LiveSegment is a Segment whose clusters are written with unknown sizes.
type LiveSegment struct {
	Info    Info
	Tracks  Tracks
	Cluster []Cluster `ebml:",size=unknown"`
}

type File struct {
	Header  EBMLHeader `ebml:"EBML"`
	Segment Segment
}

// LiveFile is written the way live encoders do, with the Segment and its
// clusters of unknown size.
type LiveFile struct {
	Header  EBMLHeader  `ebml:"EBML"`
	Segment LiveSegment `ebml:",size=unknown"`
}

// Header returns an EBML header of the given doc type.
func Header(docType string) EBMLHeader {
	return EBMLHeader{
		EBMLVersion:            1,
		EBMLReadVersion:        1,
		EBMLMaxIDLength:        4, //nolint:mnd
		EBMLMaxSizeLength:      8, //nolint:mnd
		EBMLDocType:            docType,
		EBMLDocTypeVersion:     4, //nolint:mnd
		EBMLDocTypeReadVersion: 2, //nolint:mnd
	}
}

// Frames builds a block of one track. Several frames are written with fixed
// lacing and must be of equal size.
func Frames(track uint64, timecode int16, key bool, frames ...[]byte) ebml.Block {
	b := ebml.Block{
		TrackNumber: track,
		Timecode:    timecode,
		Keyframe:    key,
		Data:        frames,
	}
	if len(frames) > 1 {
		b.Lacing = ebml.LacingFixed
	}
	return b
}

// Write marshals f, a *File or a *LiveFile, to w.
func Write(w io.Writer, f any) error {
	return ebml.Marshal(f, w)
}

// WriteFile marshals f to a new file at path.
func WriteFile(path string, f any) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = Write(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
