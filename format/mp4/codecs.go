package mp4

import (
	"fmt"

	gomp4 "github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/format/mp4/boxtree"
)

// ISO 14496-1, table 5.
const (
	objectTypeMPEG4Video = 0x20
	objectTypeAAC        = 0x40
	objectTypeAACMain    = 0x66
	objectTypeAACLC      = 0x67
	objectTypeAACSSR     = 0x68
	objectTypeMP3        = 0x69
	objectTypeMP3Legacy  = 0x6B
	objectTypeJPEG       = 0x6C
)

// codecHandler completes a sample description from the boxes nested in its
// sample entry.
type codecHandler func(d *mediaindex.SampleDescription, tree *boxtree.Tree, entry boxtree.NodeID) error

var codecHandlers = map[string]codecHandler{
	"avc1": avcHandler,
	"avc3": avcHandler,
	"hvc1": hevcHandler,
	"hev1": hevcHandler,
	"av01": configured(mediaindex.AV1, gomp4.BoxTypeAv1C()),
	"vp08": configured(mediaindex.VP8, gomp4.BoxTypeVpcC()),
	"vp09": configured(mediaindex.VP9, gomp4.BoxTypeVpcC()),
	"mp4v": esdsHandler,
	"jpeg": fixed(mediaindex.MJPEG, 0),
	"mjpa": fixed(mediaindex.MJPEG, 0),

	"mp4a": esdsHandler,
	".mp3": fixed(mediaindex.MP3, 0),
	"Opus": opusHandler,
	"ulaw": fixed(mediaindex.PCMMulaw, mediaindex.U8),
	"alaw": fixed(mediaindex.PCMAlaw, mediaindex.U8),
	"raw ": fixed(mediaindex.PCM, mediaindex.U8),
	"twos": pcmHandler,
	"sowt": pcmHandler,
	"lpcm": pcmHandler,
	"ipcm": pcmHandler,
	"in24": fixed(mediaindex.PCM, mediaindex.S24),
	"in32": fixed(mediaindex.PCM, mediaindex.S32),
	"fl32": fixed(mediaindex.PCM, mediaindex.FLT),
	"fpcm": fixed(mediaindex.PCM, mediaindex.FLT),
	"fl64": fixed(mediaindex.PCM, mediaindex.DBL),
}

// describe builds the description of one sample entry. Entries with no
// registered handler are reported as Unknown but still usable.
func describe(tree *boxtree.Tree, entry boxtree.NodeID, index uint32) (mediaindex.SampleDescription, error) {
	node := tree.Node(entry)
	d := mediaindex.SampleDescription{
		Index: index,
		Tag:   node.Type.String(),
	}

	switch e := node.Box.(type) {
	case *gomp4.VisualSampleEntry:
		d.Width = e.Width
		d.Height = e.Height
	case *gomp4.AudioSampleEntry:
		d.SampleRate = uint32(e.GetSampleRateInt())
		d.Channels = e.ChannelCount
	}

	handler, ok := codecHandlers[d.Tag]
	if !ok {
		return d, nil
	}
	if err := handler(&d, tree, entry); err != nil {
		return d, fmt.Errorf("%s: %w", d.Tag, err)
	}
	return d, nil
}

func fixed(codec mediaindex.CodecType, format mediaindex.SampleFormat) codecHandler {
	return func(d *mediaindex.SampleDescription, _ *boxtree.Tree, _ boxtree.NodeID) error {
		d.Codec = codec
		d.SampleFormat = format
		return nil
	}
}

func configured(codec mediaindex.CodecType, config gomp4.BoxType) codecHandler {
	return func(d *mediaindex.SampleDescription, tree *boxtree.Tree, entry boxtree.NodeID) error {
		d.Codec = codec
		if c := tree.Child(entry, config); c != boxtree.Nil {
			d.ExtraData = tree.Node(c).Raw
		}
		return nil
	}
}

func pcmHandler(d *mediaindex.SampleDescription, tree *boxtree.Tree, entry boxtree.NodeID) error {
	d.Codec = mediaindex.PCM
	ase, ok := boxtree.Payload[*gomp4.AudioSampleEntry](tree, entry)
	if !ok {
		return nil
	}
	d.SampleFormat = mediaindex.SampleFormatFromBits(ase.SampleSize, false)
	return nil
}

func avcHandler(d *mediaindex.SampleDescription, tree *boxtree.Tree, entry boxtree.NodeID) error {
	d.Codec = mediaindex.H264
	c := tree.Child(entry, gomp4.BoxTypeAvcC())
	if c == boxtree.Nil {
		return nil
	}
	d.ExtraData = tree.Node(c).Raw

	conf, ok := boxtree.Payload[*gomp4.AVCDecoderConfiguration](tree, c)
	if !ok || len(conf.SequenceParameterSets) == 0 {
		return nil
	}
	var sps h264.SPS
	if err := sps.Unmarshal(conf.SequenceParameterSets[0].NALUnit); err != nil {
		return fmt.Errorf("unable to parse H264 SPS: %w", err)
	}
	d.Width = uint16(sps.Width())   //nolint:gosec
	d.Height = uint16(sps.Height()) //nolint:gosec
	return nil
}

func hevcHandler(d *mediaindex.SampleDescription, tree *boxtree.Tree, entry boxtree.NodeID) error {
	d.Codec = mediaindex.H265
	c := tree.Child(entry, gomp4.BoxTypeHvcC())
	if c == boxtree.Nil {
		return nil
	}
	d.ExtraData = tree.Node(c).Raw

	conf, ok := boxtree.Payload[*gomp4.HvcC](tree, c)
	if !ok {
		return nil
	}
	for _, arr := range conf.NaluArrays {
		if h265.NALUType(arr.NaluType) != h265.NALUType_SPS_NUT || len(arr.Nalus) == 0 {
			continue
		}
		var sps h265.SPS
		if err := sps.Unmarshal(arr.Nalus[0].NALUnit); err != nil {
			return fmt.Errorf("unable to parse H265 SPS: %w", err)
		}
		d.Width = uint16(sps.Width())   //nolint:gosec
		d.Height = uint16(sps.Height()) //nolint:gosec
		break
	}
	return nil
}

func opusHandler(d *mediaindex.SampleDescription, tree *boxtree.Tree, entry boxtree.NodeID) error {
	d.Codec = mediaindex.OPUS
	c := tree.Child(entry, gomp4.BoxTypeDOps())
	if c == boxtree.Nil {
		return nil
	}
	d.ExtraData = tree.Node(c).Raw
	if dops, ok := boxtree.Payload[*gomp4.DOps](tree, c); ok {
		d.Channels = uint16(dops.OutputChannelCount)
		d.SampleRate = dops.InputSampleRate
	}
	return nil
}

// esdsHandler reads the decoder configuration of mp4a and mp4v entries. In
// QuickTime files the esds may sit inside a wave box.
func esdsHandler(d *mediaindex.SampleDescription, tree *boxtree.Tree, entry boxtree.NodeID) error {
	c := tree.Descendant(entry, gomp4.BoxTypeEsds())
	esds, ok := boxtree.Payload[*gomp4.Esds](tree, c)
	if !ok {
		if d.Tag == "mp4v" {
			d.Codec = mediaindex.MPEG4Video
		}
		return nil
	}

	var objectType byte
	for _, desc := range esds.Descriptors {
		switch desc.Tag {
		case gomp4.DecoderConfigDescrTag:
			if desc.DecoderConfigDescriptor != nil {
				objectType = desc.DecoderConfigDescriptor.ObjectTypeIndication
			}
		case gomp4.DecSpecificInfoTag:
			d.ExtraData = desc.Data
		}
	}

	switch objectType {
	case objectTypeAAC, objectTypeAACMain, objectTypeAACLC, objectTypeAACSSR:
		d.Codec = mediaindex.AAC
		if len(d.ExtraData) == 0 {
			return nil
		}
		var conf mpeg4audio.AudioSpecificConfig
		if err := conf.Unmarshal(d.ExtraData); err != nil {
			return fmt.Errorf("unable to parse AAC config: %w", err)
		}
		d.SampleRate = uint32(conf.SampleRate) //nolint:gosec
		d.Channels = uint16(conf.ChannelCount) //nolint:gosec
	case objectTypeMP3, objectTypeMP3Legacy:
		d.Codec = mediaindex.MP3
	case objectTypeMPEG4Video:
		d.Codec = mediaindex.MPEG4Video
	case objectTypeJPEG:
		d.Codec = mediaindex.MJPEG
	}
	return nil
}
