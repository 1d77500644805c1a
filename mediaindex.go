// Package mediaindex defines the shared types of the sample-table index: the raw
// tables a container hands over for one track, the descriptors produced while
// iterating, and the demuxer/reader interfaces that drive the index.
package mediaindex

import "time"

// ChunkRun is one row of the sample-to-chunk table. FirstChunk is 1-based.
type ChunkRun struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// TimeRun stands for Count consecutive samples lasting Delta ticks each.
type TimeRun struct {
	Count uint32
	Delta uint32
}

// OffsetRun stands for Count consecutive samples whose presentation time is
// their decoding time plus Offset ticks.
type OffsetRun struct {
	Count  uint32
	Offset int32
}

// EditSegment maps a slice of the movie timeline onto the track timeline.
// Duration is in movie ticks, MediaTime in track ticks; MediaTime == -1 marks
// an empty segment.
type EditSegment struct {
	Duration  uint64
	MediaTime int64
	RateNum   int32
	RateDen   int32
}

// Empty reports whether the segment presents nothing.
func (s EditSegment) Empty() bool {
	return s.MediaTime < 0
}

// SizeTable holds either one constant size for every sample or one size per
// sample. Count is the number of samples the container declares.
type SizeTable struct {
	Constant  uint32
	PerSample []uint32
	Count     uint32
}

// PacketLayout describes blocked audio where samples are only addressable in
// groups of SamplesPerPacket occupying BytesPerFrame bytes.
type PacketLayout struct {
	SamplesPerPacket uint32
	BytesPerFrame    uint32
}

// Tables is everything a container exposes about the samples of one track.
// The slices are treated as immutable once handed to the index.
type Tables struct {
	TrackTimescale uint32
	MovieTimescale uint32

	ChunkOffsets  []uint64
	SampleToChunk []ChunkRun
	Sizes         SizeTable
	Packets       *PacketLayout // nil unless the track uses a blocked layout

	DecodingTimes    []TimeRun
	CompositionTimes []OffsetRun // optional

	SyncSamples  []uint32 // optional, ascending
	SyncOneBased bool     // true when SyncSamples counts from 1

	Edits []EditSegment // optional
}

// TrackKind classifies a track by its handler.
type TrackKind uint8

const (
	KindUnknown TrackKind = iota
	KindVideo
	KindAudio
	KindText
)

func (k TrackKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	}
	return "unknown"
}

// SampleDescription is one entry of a track's codec configuration list.
type SampleDescription struct {
	Index     uint32 // 1-based, as referenced by ChunkRun.SampleDescriptionIndex
	Tag       string // container type tag (fourcc or codec id)
	Codec     CodecType
	ExtraData []byte // raw codec configuration record, if any

	Width, Height uint16 // video only
	SampleRate    uint32 // audio only
	Channels      uint16 // audio only
	SampleFormat  SampleFormat
}

// TrackInfo is the static description of a track as reported by a provider.
type TrackInfo struct {
	ID           uint32
	Kind         TrackKind
	Timescale    uint32
	Duration     time.Duration
	Descriptions []SampleDescription
}

// Description returns the entry with the given 1-based index.
func (ti TrackInfo) Description(idx uint32) (SampleDescription, bool) {
	for _, d := range ti.Descriptions {
		if d.Index == idx {
			return d, true
		}
	}
	return SampleDescription{}, false
}

// TableProvider is implemented by container parsers that can expose the raw
// sample tables of their tracks.
type TableProvider interface {
	Tracks() []TrackInfo
	Tables(trackID uint32) (*Tables, error)
}

// SampleDescriptor locates one sample (or one packetized group of samples) in
// the file and stamps it.
type SampleDescriptor struct {
	Offset  uint64
	Size    uint32
	Samples uint32 // number of samples covered, 1 unless packetized

	DTS time.Duration
	PTS time.Duration

	DecodeTicks  int64
	PresentTicks int64

	Sync             bool
	DescriptionIndex uint32
}

// Packet is a sample read from a container.
type Packet interface {
	StreamIndex() uint8             // Index of the track inside its container.
	Codec() CodecType               // Codec of the sample description in use.
	Timestamp() time.Duration       // Presentation timestamp.
	DecodeTimestamp() time.Duration // Decoding timestamp.
	Duration() time.Duration        // Duration of the sample content.
	IsKeyFrame() bool               // Sample is a sync sample.
	Data() []byte                   // Raw sample bytes.
	Release()                       // Returns the backing buffer to its pool.
}

// Demuxer extracts packets from a container in decode order across tracks.
type Demuxer interface {
	Demux() ([]TrackInfo, error)         // Opens the container and indexes its tracks.
	ReadPacket() (pkt Packet, err error) // Reads the next packet, io.EOF at the end.
	SeekTo(time.Duration) error          // Repositions every track at a presentation time.
	Close()                              // Releases resources used by the demuxer.
}

// Reader delivers packets from a set of files asynchronously.
type Reader interface {
	Read()                    // Starts the reading process.
	AddURL() chan<- string    // Channel to add new files.
	RemoveURL() chan<- string // Channel to remove files.
	Packets() <-chan Packet   // Channel providing read packets.
	Close()                   // Stops reading and releases resources.
}

// InputParameter defines flags for controlling demuxing.
type InputParameter uint8

// Input parameter constants
const (
	NoVideo     InputParameter = iota // Skip video tracks.
	NoAudio                           // Skip audio tracks.
	NoEditLists                       // Ignore edit lists.
)
