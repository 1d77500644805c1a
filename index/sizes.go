package index

import (
	"fmt"
	"math"

	"github.com/ugparu/mediaindex"
)

type sizeMode uint8

const (
	sizeConstant sizeMode = iota
	sizePerSample
	sizePacketized
)

func (m sizeMode) String() string {
	switch m {
	case sizePerSample:
		return "per-sample"
	case sizePacketized:
		return "packetized"
	}
	return "constant"
}

// Sizes resolves sample sizes. Packetized tracks only address whole packets:
// a packet's bytes are attributed to its last sample inside the chunk, which
// keeps prefix sums equal to the packet-aligned offsets.
type Sizes struct {
	mode      sizeMode
	constant  uint32
	perSample []uint32
	layout    mediaindex.PacketLayout
	total     uint64
}

// NewSizes picks the size mode for a track with total samples.
func NewSizes(t mediaindex.SizeTable, layout *mediaindex.PacketLayout, total uint64) (*Sizes, error) {
	s := &Sizes{total: total}
	switch {
	case t.Constant == 0 && len(t.PerSample) == 0:
		if total > 0 {
			return nil, &MissingTableError{Table: TableSampleSize}
		}
	case t.Constant == 0:
		if uint64(len(t.PerSample)) != total {
			return nil, &CorruptTableError{
				Table:  TableSampleSize,
				Reason: fmt.Sprintf("%d entries for %d samples", len(t.PerSample), total),
			}
		}
		s.mode = sizePerSample
		s.perSample = t.PerSample
	case layout != nil && layout.SamplesPerPacket > 0 && layout.BytesPerFrame > 0:
		s.mode = sizePacketized
		s.layout = *layout
		s.constant = t.Constant
	default:
		s.constant = t.Constant
	}
	return s, nil
}

// Packetized reports whether samples must be read in packet groups.
func (s *Sizes) Packetized() bool {
	return s.mode == sizePacketized
}

// sizeAt returns the size of global sample n, the k-th of a chunk holding
// count samples. A trailing partial packet is attributed to the chunk's last
// sample.
func (s *Sizes) sizeAt(n uint64, k, count uint32) uint32 {
	switch s.mode {
	case sizePerSample:
		return s.perSample[n]
	case sizePacketized:
		if (k+1)%s.layout.SamplesPerPacket == 0 || k+1 == count {
			return s.layout.BytesPerFrame
		}
		return 0
	}
	return s.constant
}

// offsetIn returns the byte offset of the k-th sample of the chunk starting at
// global sample first. For packetized tracks this is the start of the packet
// holding the sample.
func (s *Sizes) offsetIn(first uint64, k uint32) uint64 {
	switch s.mode {
	case sizePerSample:
		var off uint64
		for _, sz := range s.perSample[first : first+uint64(k)] {
			off += uint64(sz)
		}
		return off
	case sizePacketized:
		return uint64(k/s.layout.SamplesPerPacket) * uint64(s.layout.BytesPerFrame)
	}
	return uint64(k) * uint64(s.constant)
}

// chunkBytes returns the byte length of a chunk holding count samples.
func (s *Sizes) chunkBytes(first uint64, count uint32) uint64 {
	switch s.mode {
	case sizePerSample:
		var b uint64
		for _, sz := range s.perSample[first : first+uint64(count)] {
			b += uint64(sz)
		}
		return b
	case sizePacketized:
		spp := uint64(s.layout.SamplesPerPacket)
		return (uint64(count) + spp - 1) / spp * uint64(s.layout.BytesPerFrame)
	}
	return uint64(count) * uint64(s.constant)
}

// span returns how many samples, starting at the k-th of a chunk of count
// samples, can be read together without exceeding limit samples, and their
// byte length. Packetized spans start at the packet holding sample k and end on
// a packet boundary, so n may exceed limit by less than one packet.
func (s *Sizes) span(first uint64, k, count, limit uint32) (n, size uint32) {
	avail := count - k
	limit = max(limit, 1)
	switch s.mode {
	case sizePerSample:
		var b uint64
		for _, sz := range s.perSample[first+uint64(k) : first+uint64(count)] {
			if n == limit || (n > 0 && b+uint64(sz) > math.MaxUint32) {
				break
			}
			b += uint64(sz)
			n++
		}
		return n, uint32(min(b, math.MaxUint32)) //nolint:gosec
	case sizePacketized:
		spp := uint64(s.layout.SamplesPerPacket)
		bpf := uint64(s.layout.BytesPerFrame)
		start := uint64(k) - uint64(k)%spp
		end := (uint64(k) + uint64(limit) + spp - 1) / spp * spp
		packets := (min(end, uint64(count)) - start + spp - 1) / spp
		packets = max(min(packets, math.MaxUint32/bpf), 1)
		end = min(start+packets*spp, uint64(count))
		return uint32(end - uint64(k)), uint32(packets * bpf) //nolint:gosec
	}
	n = min(limit, avail)
	if s.constant > 0 {
		n = max(min(n, math.MaxUint32/s.constant), 1)
	}
	return n, n * s.constant
}
