package index

import "fmt"

// Table names a raw table in error reports.
type Table string

// Tables an index can be built from.
const (
	TableChunkOffset   Table = "chunk offset"
	TableSampleToChunk Table = "sample-to-chunk"
	TableSampleSize    Table = "sample size"
	TableDecodingTime  Table = "decoding time"
	TableTimescale     Table = "timescale"
)

// MissingTableError is returned when a table required to index the track is
// absent or empty. The track cannot be played; sibling tracks are unaffected.
type MissingTableError struct {
	Table Table
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("missing %s table", e.Table)
}

// CorruptTableError is returned when a table references data outside its
// declared bounds.
type CorruptTableError struct {
	Table  Table
	Reason string
}

func (e *CorruptTableError) Error() string {
	return fmt.Sprintf("corrupt %s table: %s", e.Table, e.Reason)
}

// SeekPastEndError is returned when a seek target lies beyond the last sample.
type SeekPastEndError struct {
	Sample  uint64
	Samples uint64
}

func (e *SeekPastEndError) Error() string {
	return fmt.Sprintf("seek past end: sample %d of %d", e.Sample, e.Samples)
}

// ExhaustedError signals the regular end of a track.
type ExhaustedError struct{}

func (*ExhaustedError) Error() string {
	return "track exhausted"
}

// SampleRangeError is returned for lookups of samples the track does not have.
type SampleRangeError struct {
	Sample  uint64
	Samples uint64
}

func (e *SampleRangeError) Error() string {
	return fmt.Sprintf("sample %d out of range (%d samples)", e.Sample, e.Samples)
}
