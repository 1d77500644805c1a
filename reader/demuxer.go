package reader

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/format/mkv"
	"github.com/ugparu/mediaindex/format/mp4"
)

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// NewDemuxer returns the demuxer for the container of the file at path:
// Matroska for EBML files, MP4 otherwise.
func NewDemuxer(path string, params ...mediaindex.InputParameter) (mediaindex.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(ebmlMagic))
	if _, err = io.ReadFull(f, magic); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(magic, ebmlMagic) {
		return mkv.NewDemuxer(path, params...), nil
	}
	return mp4.NewDemuxer(path, params...), nil
}
