package track

import (
	"fmt"
	"time"

	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/utils/buffer"
)

// Packet is a sample read through an index cursor. Its data lives in a pooled
// buffer that Release hands back.
type Packet struct {
	Idx         uint8
	CodecType   mediaindex.CodecType
	PTS         time.Duration
	DTS         time.Duration
	Dur         time.Duration
	Key         bool
	Description uint32
	Samples     uint32
	Offset      uint64
	buf         buffer.PooledBuffer
}

func (pkt *Packet) StreamIndex() uint8 {
	return pkt.Idx
}

func (pkt *Packet) Codec() mediaindex.CodecType {
	return pkt.CodecType
}

func (pkt *Packet) Timestamp() time.Duration {
	return pkt.PTS
}

func (pkt *Packet) DecodeTimestamp() time.Duration {
	return pkt.DTS
}

func (pkt *Packet) Duration() time.Duration {
	return pkt.Dur
}

func (pkt *Packet) IsKeyFrame() bool {
	return pkt.Key
}

func (pkt *Packet) Data() []byte {
	if pkt.buf == nil {
		return nil
	}
	return pkt.buf.Data()
}

// Release returns the data buffer to its pool. The packet must not be used
// afterwards.
func (pkt *Packet) Release() {
	if pkt.buf != nil {
		pkt.buf.Release()
		pkt.buf = nil
	}
}

func (pkt *Packet) String() string {
	return fmt.Sprintf("PACKET idx=%d codec=%v pts=%v dts=%v dur=%v key=%t size=%d",
		pkt.Idx, pkt.CodecType, pkt.PTS, pkt.DTS, pkt.Dur, pkt.Key, len(pkt.Data()))
}
