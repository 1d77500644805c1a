package mediaindex

// CodecType identifies the codec of a sample description.
type CodecType uint32

// avCodecTypeMagic offsets codec bases so they never collide with zero.
const avCodecTypeMagic = 233333

func makeAudioCodecType(base uint32) (c CodecType) {
	c = CodecType(base)<<codecTypeOtherBits | CodecType(codecTypeAudioBit)
	return
}

func makeVideoCodecType(base uint32) (c CodecType) {
	c = CodecType(base) << codecTypeOtherBits
	return
}

// Known codec types. Unknown is reported for sample descriptions no handler
// claims; such tracks are still indexed and read.
var (
	Unknown    CodecType
	H264       = makeVideoCodecType(avCodecTypeMagic + 1)  //nolint:mnd
	H265       = makeVideoCodecType(avCodecTypeMagic + 2)  //nolint:mnd
	VP8        = makeVideoCodecType(avCodecTypeMagic + 4)  //nolint:mnd
	VP9        = makeVideoCodecType(avCodecTypeMagic + 5)  //nolint:mnd
	AV1        = makeVideoCodecType(avCodecTypeMagic + 6)  //nolint:mnd
	MJPEG      = makeVideoCodecType(avCodecTypeMagic + 7)  //nolint:mnd
	MPEG4Video = makeVideoCodecType(avCodecTypeMagic + 8)  //nolint:mnd
	AAC        = makeAudioCodecType(avCodecTypeMagic + 1)  //nolint:mnd
	PCMMulaw   = makeAudioCodecType(avCodecTypeMagic + 2)  //nolint:mnd
	PCMAlaw    = makeAudioCodecType(avCodecTypeMagic + 3)  //nolint:mnd
	PCM        = makeAudioCodecType(avCodecTypeMagic + 6)  //nolint:mnd
	OPUS       = makeAudioCodecType(avCodecTypeMagic + 7)  //nolint:mnd
	MP3        = makeAudioCodecType(avCodecTypeMagic + 8)  //nolint:mnd
	FLAC       = makeAudioCodecType(avCodecTypeMagic + 9)  //nolint:mnd
	VORBIS     = makeAudioCodecType(avCodecTypeMagic + 10) //nolint:mnd
)

const (
	codecTypeAudioBit  = 0x1
	codecTypeOtherBits = 1
)

// String returns the human-readable name of a CodecType.
func (ct CodecType) String() string {
	switch ct {
	case H264:
		return "H264"
	case H265:
		return "H265"
	case VP8:
		return "VP8"
	case VP9:
		return "VP9"
	case AV1:
		return "AV1"
	case MJPEG:
		return "MJPEG"
	case MPEG4Video:
		return "MPEG4_VIDEO"
	case AAC:
		return "AAC"
	case PCMMulaw:
		return "PCM_MULAW"
	case PCMAlaw:
		return "PCM_ALAW"
	case PCM:
		return "PCM"
	case OPUS:
		return "OPUS"
	case MP3:
		return "MP3"
	case FLAC:
		return "FLAC"
	case VORBIS:
		return "VORBIS"
	}
	return "UNKNOWN"
}

// IsAudio returns true if the CodecType represents an audio codec.
func (ct CodecType) IsAudio() bool {
	return ct&codecTypeAudioBit != 0
}

// IsVideo returns true if the CodecType represents a known video codec.
func (ct CodecType) IsVideo() bool {
	return ct != Unknown && ct&codecTypeAudioBit == 0
}
