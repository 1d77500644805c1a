package mkv

import (
	"fmt"
	"strings"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/ugparu/mediaindex"
)

type codec struct {
	typ    mediaindex.CodecType
	format mediaindex.SampleFormat
}

var codecIDs = map[string]codec{
	"V_MPEG4/ISO/AVC":  {typ: mediaindex.H264},
	"V_MPEGH/ISO/HEVC": {typ: mediaindex.H265},
	"V_AV1":            {typ: mediaindex.AV1},
	"V_VP8":            {typ: mediaindex.VP8},
	"V_VP9":            {typ: mediaindex.VP9},
	"V_MJPEG":          {typ: mediaindex.MJPEG},
	"V_MPEG4/ISO/SP":   {typ: mediaindex.MPEG4Video},
	"V_MPEG4/ISO/ASP":  {typ: mediaindex.MPEG4Video},
	"V_MPEG4/ISO/AP":   {typ: mediaindex.MPEG4Video},

	"A_AAC":            {typ: mediaindex.AAC},
	"A_OPUS":           {typ: mediaindex.OPUS},
	"A_VORBIS":         {typ: mediaindex.VORBIS},
	"A_FLAC":           {typ: mediaindex.FLAC},
	"A_MPEG/L3":        {typ: mediaindex.MP3},
	"A_PCM/INT/LIT":    {typ: mediaindex.PCM},
	"A_PCM/INT/BIG":    {typ: mediaindex.PCM},
	"A_PCM/FLOAT/IEEE": {typ: mediaindex.PCM, format: mediaindex.FLT},
}

// describe builds the single sample description of a track entry. Unknown
// codec ids are reported as Unknown but the track is still indexed.
func describe(e trackEntry) (mediaindex.SampleDescription, error) {
	d := mediaindex.SampleDescription{
		Index:     1,
		Tag:       e.CodecID,
		ExtraData: e.CodecPrivate,
	}
	switch e.TrackType {
	case trackTypeVideo:
		d.Width = uint16(min(e.Video.PixelWidth, 0xFFFF))   //nolint:gosec
		d.Height = uint16(min(e.Video.PixelHeight, 0xFFFF)) //nolint:gosec
	case trackTypeAudio:
		d.SampleRate = uint32(e.Audio.SamplingFrequency)
		d.Channels = uint16(min(e.Audio.Channels, 0xFFFF)) //nolint:gosec
	}

	id := e.CodecID
	if strings.HasPrefix(id, "A_AAC/") {
		id = "A_AAC"
	}
	c, ok := codecIDs[id]
	if !ok {
		return d, nil
	}
	d.Codec = c.typ
	d.SampleFormat = c.format

	switch {
	case strings.HasPrefix(id, "A_PCM/INT"):
		d.SampleFormat = mediaindex.SampleFormatFromBits(uint16(e.Audio.BitDepth), false) //nolint:gosec
	case id == "A_PCM/FLOAT/IEEE" && e.Audio.BitDepth != 0:
		d.SampleFormat = mediaindex.SampleFormatFromBits(uint16(e.Audio.BitDepth), true) //nolint:gosec
	case id == "A_AAC" && len(e.CodecPrivate) > 0:
		var conf mpeg4audio.AudioSpecificConfig
		if err := conf.Unmarshal(e.CodecPrivate); err != nil {
			return d, fmt.Errorf("unable to parse AAC config: %w", err)
		}
		d.SampleRate = uint32(conf.SampleRate) //nolint:gosec
		d.Channels = uint16(conf.ChannelCount) //nolint:gosec
	}
	return d, nil
}
