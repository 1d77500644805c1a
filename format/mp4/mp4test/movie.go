package mp4test

import (
	"fmt"
	"io"
	"os"

	gomp4 "github.com/abema/go-mp4"
)

// Entry is one sample description: the sample entry box and the boxes nested
// in it.
type Entry struct {
	Box      gomp4.IImmutableBox
	Children []gomp4.IImmutableBox
}

// Track describes the sample tables of one trak box. Chunks hold the sample
// bytes; their offsets are filled in when the file is written.
type Track struct {
	ID        uint32
	Handler   string
	Timescale uint32
	Duration  uint32
	Entries   []Entry

	Stts        []gomp4.SttsEntry
	Ctts        []gomp4.CttsEntry
	CttsVersion uint8
	Stsc        []gomp4.StscEntry
	SampleSize  uint32
	SampleCount uint32
	Sizes       []uint32
	Stss        []uint32
	Elst        []gomp4.ElstEntry
	Co64        bool

	Chunks [][]byte
}

// Movie is a whole file.
type Movie struct {
	Timescale uint32
	QuickTime bool
	Tracks    []Track
}

// WriteFile writes m to a new file at path.
func WriteFile(path string, m Movie) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, m)
}

// Write writes ftyp, one mdat with the chunks of every track interleaved and
// then moov.
func Write(ws io.WriteSeeker, m Movie) error {
	w := NewWriter(ws, m.QuickTime)

	ftyp := &gomp4.Ftyp{
		MajorBrand:   [4]byte{'i', 's', 'o', 'm'},
		MinorVersion: 512, //nolint:mnd
		CompatibleBrands: []gomp4.CompatibleBrandElem{
			{CompatibleBrand: [4]byte{'i', 's', 'o', 'm'}},
			{CompatibleBrand: [4]byte{'m', 'p', '4', '1'}},
		},
	}
	if m.QuickTime {
		ftyp.MajorBrand = [4]byte{'q', 't', ' ', ' '}
		ftyp.CompatibleBrands = []gomp4.CompatibleBrandElem{{CompatibleBrand: [4]byte{'q', 't', ' ', ' '}}}
	}
	if _, err := w.WriteBox(ftyp); err != nil {
		return err
	}

	offsets, err := writeMdat(w, m.Tracks)
	if err != nil {
		return err
	}

	next := uint32(len(m.Tracks)) + 1 //nolint:gosec
	if _, err = w.WriteBoxStart(&gomp4.Moov{}); err != nil { // <moov>
		return err
	}
	if _, err = w.WriteBox(&gomp4.Mvhd{ // <mvhd/>
		Timescale:   m.Timescale,
		Rate:        65536, //nolint:mnd
		Volume:      256,   //nolint:mnd
		NextTrackID: next,
	}); err != nil {
		return err
	}
	for i := range m.Tracks {
		if err = writeTrak(w, &m.Tracks[i], offsets[i]); err != nil {
			return fmt.Errorf("track %d: %w", m.Tracks[i].ID, err)
		}
	}
	return w.WriteBoxEnd() // </moov>
}

func writeMdat(w *Writer, tracks []Track) ([][]uint64, error) {
	offsets := make([][]uint64, len(tracks))
	if _, err := w.WriteBoxStart(&gomp4.Mdat{}); err != nil {
		return nil, err
	}
	for i := 0; ; i++ {
		wrote := false
		for t := range tracks {
			if i >= len(tracks[t].Chunks) {
				continue
			}
			off, err := w.Offset()
			if err != nil {
				return nil, err
			}
			if _, err = w.Write(tracks[t].Chunks[i]); err != nil {
				return nil, err
			}
			offsets[t] = append(offsets[t], off)
			wrote = true
		}
		if !wrote {
			break
		}
	}
	return offsets, w.WriteBoxEnd()
}

type step func() error

func (w *Writer) open(box gomp4.IImmutableBox) step {
	return func() error {
		_, err := w.WriteBoxStart(box)
		return err
	}
}

func (w *Writer) leaf(box gomp4.IImmutableBox) step {
	return func() error {
		_, err := w.WriteBox(box)
		return err
	}
}

func (w *Writer) close() step {
	return w.WriteBoxEnd
}

func writeTrak(w *Writer, t *Track, offsets []uint64) error {
	var hdlr [4]byte
	copy(hdlr[:], t.Handler)

	steps := []step{
		w.open(&gomp4.Trak{}),
		w.leaf(&gomp4.Tkhd{
			FullBox:    gomp4.FullBox{Flags: [3]byte{0, 0, 3}},
			TrackID:    t.ID,
			DurationV0: t.Duration,
		}),
	}
	if len(t.Elst) > 0 {
		steps = append(steps,
			w.open(&gomp4.Edts{}),
			w.leaf(&gomp4.Elst{EntryCount: uint32(len(t.Elst)), Entries: t.Elst}), //nolint:gosec
			w.close(),
		)
	}
	steps = append(steps,
		w.open(&gomp4.Mdia{}),
		w.leaf(&gomp4.Mdhd{Timescale: t.Timescale, DurationV0: t.Duration}),
		w.leaf(&gomp4.Hdlr{HandlerType: hdlr, Name: "mp4test"}),
		w.open(&gomp4.Minf{}),
		w.open(&gomp4.Stbl{}),
		w.open(&gomp4.Stsd{EntryCount: uint32(len(t.Entries))}), //nolint:gosec
	)
	for _, e := range t.Entries {
		steps = append(steps, w.open(e.Box))
		for _, c := range e.Children {
			steps = append(steps, w.leaf(c))
		}
		steps = append(steps, w.close())
	}
	steps = append(steps,
		w.close(),
		w.leaf(&gomp4.Stts{EntryCount: uint32(len(t.Stts)), Entries: t.Stts}), //nolint:gosec
	)
	if len(t.Ctts) > 0 {
		steps = append(steps, w.leaf(&gomp4.Ctts{
			FullBox:    gomp4.FullBox{Version: t.CttsVersion},
			EntryCount: uint32(len(t.Ctts)), //nolint:gosec
			Entries:    t.Ctts,
		}))
	}
	count := t.SampleCount
	if t.SampleSize == 0 {
		count = uint32(len(t.Sizes)) //nolint:gosec
	}
	steps = append(steps,
		w.leaf(&gomp4.Stsc{EntryCount: uint32(len(t.Stsc)), Entries: t.Stsc}), //nolint:gosec
		w.leaf(&gomp4.Stsz{SampleSize: t.SampleSize, SampleCount: count, EntrySize: t.Sizes}),
	)
	if t.Co64 {
		steps = append(steps, w.leaf(&gomp4.Co64{EntryCount: uint32(len(offsets)), ChunkOffset: offsets})) //nolint:gosec
	} else {
		short := make([]uint32, len(offsets))
		for i, o := range offsets {
			short[i] = uint32(o) //nolint:gosec
		}
		steps = append(steps, w.leaf(&gomp4.Stco{EntryCount: uint32(len(short)), ChunkOffset: short})) //nolint:gosec
	}
	if len(t.Stss) > 0 {
		steps = append(steps, w.leaf(&gomp4.Stss{EntryCount: uint32(len(t.Stss)), SampleNumber: t.Stss})) //nolint:gosec
	}
	steps = append(steps,
		w.close(), // stbl
		w.close(), // minf
		w.close(), // mdia
		w.close(), // trak
	)

	for _, s := range steps {
		if err := s(); err != nil {
			return err
		}
	}
	return nil
}

// AudioEntry returns a sample entry of the given type with the usual fields
// filled in.
func AudioEntry(typ string, channels, bits uint16, rate uint32) *gomp4.AudioSampleEntry {
	return &gomp4.AudioSampleEntry{
		SampleEntry: gomp4.SampleEntry{
			AnyTypeBox:         gomp4.AnyTypeBox{Type: gomp4.StrToBoxType(typ)},
			DataReferenceIndex: 1,
		},
		ChannelCount: channels,
		SampleSize:   bits,
		SampleRate:   rate << 16, //nolint:mnd
	}
}

// VideoEntry returns a visual sample entry of the given type.
func VideoEntry(typ string, width, height uint16) *gomp4.VisualSampleEntry {
	return &gomp4.VisualSampleEntry{
		SampleEntry: gomp4.SampleEntry{
			AnyTypeBox:         gomp4.AnyTypeBox{Type: gomp4.StrToBoxType(typ)},
			DataReferenceIndex: 1,
		},
		Width:           width,
		Height:          height,
		Horizresolution: 4718592, //nolint:mnd
		Vertresolution:  4718592, //nolint:mnd
		FrameCount:      1,
		Depth:           24, //nolint:mnd
		PreDefined3:     -1,
	}
}

// AACConfig returns an esds box carrying the given AudioSpecificConfig.
func AACConfig(asc []byte) *gomp4.Esds {
	return &gomp4.Esds{
		Descriptors: []gomp4.Descriptor{
			{
				Tag:          gomp4.ESDescrTag,
				Size:         32 + uint32(len(asc)), //nolint:gosec,mnd
				ESDescriptor: &gomp4.ESDescriptor{ESID: 1},
			},
			{
				Tag:  gomp4.DecoderConfigDescrTag,
				Size: 18 + uint32(len(asc)), //nolint:gosec,mnd
				DecoderConfigDescriptor: &gomp4.DecoderConfigDescriptor{
					ObjectTypeIndication: 0x40, //nolint:mnd
					StreamType:           0x05, //nolint:mnd
					Reserved:             true,
				},
			},
			{
				Tag:  gomp4.DecSpecificInfoTag,
				Size: uint32(len(asc)), //nolint:gosec
				Data: asc,
			},
			{
				Tag:  gomp4.SLConfigDescrTag,
				Size: 1,
				Data: []byte{0x02},
			},
		},
	}
}
