package reader

import (
	"time"

	"github.com/ugparu/mediaindex"
)

// timeline keeps the timestamps of a file monotonic across loops and reopens.
// Every pass is shifted to start where the previous one ended, and packets
// delivered before a reopen are not delivered again.
type timeline struct {
	shift  time.Duration
	end    time.Duration
	resume time.Duration           // decode time of the last packet of this pass
	last   map[uint8]time.Duration // decode time of the last packet per stream
	skip   map[uint8]time.Duration // per stream, drop packets up to this decode time
}

func newTimeline() *timeline {
	return &timeline{
		last: make(map[uint8]time.Duration),
		skip: make(map[uint8]time.Duration),
	}
}

// apply shifts pkt onto the output timeline. It returns false for a packet
// that was already delivered.
func (tl *timeline) apply(pkt mediaindex.Packet) (mediaindex.Packet, bool) {
	idx := pkt.StreamIndex()
	if d, ok := tl.skip[idx]; ok {
		if pkt.DecodeTimestamp() <= d {
			return nil, false
		}
		delete(tl.skip, idx)
	}

	tl.resume = pkt.DecodeTimestamp()
	tl.last[idx] = pkt.DecodeTimestamp()
	if end := pkt.DecodeTimestamp() + tl.shift + pkt.Duration(); end > tl.end {
		tl.end = end
	}
	if tl.shift == 0 {
		return pkt, true
	}
	return &shiftedPacket{Packet: pkt, shift: tl.shift}, true
}

// rewind starts a new pass after the end of the current one.
func (tl *timeline) rewind() {
	tl.shift = tl.end
	tl.resume = 0
	clear(tl.last)
	clear(tl.skip)
}

// reopened returns the time to seek to after the file was opened again, and
// arms the filter against packets already delivered.
func (tl *timeline) reopened() time.Duration {
	for idx, d := range tl.last {
		tl.skip[idx] = d
	}
	return tl.resume
}

type shiftedPacket struct {
	mediaindex.Packet
	shift time.Duration
}

func (pkt *shiftedPacket) Timestamp() time.Duration {
	return pkt.Packet.Timestamp() + pkt.shift
}

func (pkt *shiftedPacket) DecodeTimestamp() time.Duration {
	return pkt.Packet.DecodeTimestamp() + pkt.shift
}
