// Package mp4test writes small but complete MP4 files for tests.
package mp4test

import (
	"io"

	gomp4 "github.com/abema/go-mp4"
)

// Writer is a MP4 box writer.
type Writer struct {
	w   *gomp4.Writer
	ctx gomp4.Context
}

// NewWriter allocates a Writer on ws.
func NewWriter(ws io.WriteSeeker, quickTime bool) *Writer {
	return &Writer{
		w:   gomp4.NewWriter(ws),
		ctx: gomp4.Context{IsQuickTimeCompatible: quickTime},
	}
}

// WriteBoxStart writes a box start.
func (w *Writer) WriteBoxStart(box gomp4.IImmutableBox) (int, error) {
	bi := &gomp4.BoxInfo{
		Type: box.GetType(),
	}
	var err error
	bi, err = w.w.StartBox(bi)
	if err != nil {
		return 0, err
	}

	_, err = gomp4.Marshal(w.w, box, w.ctx)
	if err != nil {
		return 0, err
	}

	return int(bi.Offset), nil //nolint:gosec
}

// WriteBoxEnd writes a box end.
func (w *Writer) WriteBoxEnd() error {
	_, err := w.w.EndBox()
	return err
}

// WriteBox writes a self-closing box.
func (w *Writer) WriteBox(box gomp4.IImmutableBox) (int, error) {
	off, err := w.WriteBoxStart(box)
	if err != nil {
		return 0, err
	}

	err = w.WriteBoxEnd()
	if err != nil {
		return 0, err
	}

	return off, nil
}

// Write writes raw bytes inside the current box.
func (w *Writer) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

// Offset returns the current write position.
func (w *Writer) Offset() (uint64, error) {
	off, err := w.w.Seek(0, io.SeekCurrent)
	return uint64(off), err //nolint:gosec
}
