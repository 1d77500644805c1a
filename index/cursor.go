package index

import (
	"sort"
	"time"

	"github.com/ugparu/mediaindex"
)

type cursorState uint8

const (
	stateReady cursorState = iota
	stateExhausted
)

// Transition reports what changed while moving a cursor.
type Transition struct {
	// ChunkChanged is set when the cursor entered another chunk.
	ChunkChanged bool
	// DescriptionChanged is set when the new chunk uses another sample
	// description; the consumer must reconfigure before the next sample.
	DescriptionChanged bool
	DescriptionIndex   uint32
	// Spliced is set when an edit segment made the cursor skip media.
	Spliced bool
}

func (t *Transition) merge(o Transition) {
	t.ChunkChanged = t.ChunkChanged || o.ChunkChanged
	t.Spliced = t.Spliced || o.Spliced
	if o.DescriptionChanged {
		t.DescriptionChanged = true
		t.DescriptionIndex = o.DescriptionIndex
	}
}

// Cursor iterates an index in decode order. It is either Ready on a sample or
// Exhausted. A cursor is not safe for concurrent use.
type Cursor struct {
	idx   *Index
	state cursorState

	chunk   int
	sample  uint64
	inChunk uint32
	byteOff uint64
	dts     uint64

	dtsRun, ctsRun   int
	dtsUsed, ctsUsed uint32

	syncPos  int
	lastDesc uint32
	edit     editState
}

// Exhausted reports whether the cursor ran past the last sample or failed to
// seek.
func (c *Cursor) Exhausted() bool {
	return c.state == stateExhausted
}

// Position returns the current position; it is meaningless once exhausted.
func (c *Cursor) Position() Position {
	return Position{Chunk: c.chunk, Sample: c.sample}
}

// Reset moves the cursor back to the first sample. With an edit list whose
// first segment starts later in the media, the cursor starts there instead.
func (c *Cursor) Reset() {
	c.state = stateExhausted
	first := c.firstChunk(0)
	if first < 0 {
		return
	}
	c.lastDesc = c.idx.chunks[first].DescriptionIndex
	c.enter(Position{Chunk: first, Sample: c.idx.chunks[first].FirstSample})

	el := c.idx.edits
	if el == nil {
		return
	}
	c.edit = el.selectAt(0)
	if shift := mediaShift(el.segments[c.edit.seg]); shift > 0 {
		if pos, err := c.idx.Locate(shift); err == nil {
			c.enter(pos)
			c.lastDesc = c.idx.chunks[pos.Chunk].DescriptionIndex
		}
	}
}

// firstChunk returns the first chunk at or after i holding samples, or -1.
func (c *Cursor) firstChunk(i int) int {
	for ; i < len(c.idx.chunks); i++ {
		if c.idx.chunks[i].SampleCount > 0 {
			return i
		}
	}
	return -1
}

// enter positions the cursor on a sample, rebuilding every cache.
func (c *Cursor) enter(pos Position) {
	ck := &c.idx.chunks[pos.Chunk]
	c.state = stateReady
	c.chunk = pos.Chunk
	c.sample = pos.Sample
	c.inChunk = uint32(pos.Sample - ck.FirstSample) //nolint:gosec
	c.byteOff = c.idx.sizes.offsetIn(ck.FirstSample, c.inChunk)

	c.dts = ck.FirstDTS
	c.dtsRun, c.dtsUsed = 0, 0
	for k := c.inChunk; k > 0 && c.dtsRun < len(ck.DTS); {
		run := ck.DTS[c.dtsRun]
		n := min(k, run.Count)
		c.dts += uint64(n) * uint64(run.Delta)
		k -= n
		if n == run.Count {
			c.dtsRun++
		} else {
			c.dtsUsed = n
		}
	}

	c.ctsRun, c.ctsUsed = 0, 0
	for k := c.inChunk; k > 0 && c.ctsRun < len(ck.CTS); {
		run := ck.CTS[c.ctsRun]
		n := min(k, run.Count)
		k -= n
		if n == run.Count {
			c.ctsRun++
		} else {
			c.ctsUsed = n
		}
	}

	c.syncPos = sort.Search(len(c.idx.sync), func(j int) bool { return c.idx.sync[j] >= c.sample })
}

// Current describes the sample under the cursor. For packetized tracks it
// describes the packet holding it, as Span(1) does.
func (c *Cursor) Current() (mediaindex.SampleDescriptor, error) {
	return c.Span(1)
}

// Span describes up to limit samples starting at the cursor that can be read
// in one go: they are contiguous in the same chunk. Packetized spans are
// aligned to whole packets.
func (c *Cursor) Span(limit uint32) (mediaindex.SampleDescriptor, error) {
	if c.state == stateExhausted {
		return mediaindex.SampleDescriptor{}, &ExhaustedError{}
	}
	ck := &c.idx.chunks[c.chunk]
	n, size := c.idx.sizes.span(ck.FirstSample, c.inChunk, ck.SampleCount, limit)

	decode := int64(c.dts) //nolint:gosec
	present := decode
	if c.ctsRun < len(ck.CTS) {
		present += int64(ck.CTS[c.ctsRun].Offset)
	}
	if el := c.idx.edits; el != nil {
		decode = el.presentation(decode, c.edit)
		present = el.presentation(present, c.edit)
	}

	return mediaindex.SampleDescriptor{
		Offset:           ck.Offset + c.byteOff,
		Size:             size,
		Samples:          n,
		DTS:              ticksToDuration(decode, c.idx.timescale),
		PTS:              ticksToDuration(present, c.idx.timescale),
		DecodeTicks:      decode,
		PresentTicks:     present,
		Sync:             c.sync(),
		DescriptionIndex: ck.DescriptionIndex,
	}, nil
}

func (c *Cursor) sync() bool {
	if c.idx.sync == nil {
		return true
	}
	return c.syncPos < len(c.idx.sync) && c.idx.sync[c.syncPos] == c.sample
}

// Advance moves to the next sample. Past the last sample the cursor becomes
// exhausted and ExhaustedError is returned.
func (c *Cursor) Advance() (Transition, error) {
	var tr Transition
	if c.state == stateExhausted {
		return tr, &ExhaustedError{}
	}

	ck := &c.idx.chunks[c.chunk]
	c.byteOff += uint64(c.idx.sizes.sizeAt(c.sample, c.inChunk, ck.SampleCount))
	if c.dtsRun < len(ck.DTS) {
		run := ck.DTS[c.dtsRun]
		c.dts += uint64(run.Delta)
		if c.dtsUsed++; c.dtsUsed == run.Count {
			c.dtsRun, c.dtsUsed = c.dtsRun+1, 0
		}
	}
	if c.ctsRun < len(ck.CTS) {
		if c.ctsUsed++; c.ctsUsed == ck.CTS[c.ctsRun].Count {
			c.ctsRun, c.ctsUsed = c.ctsRun+1, 0
		}
	}
	c.sample++
	c.inChunk++

	if c.inChunk >= ck.SampleCount {
		next := c.firstChunk(c.chunk + 1)
		if next < 0 {
			c.state = stateExhausted
			return tr, &ExhaustedError{}
		}
		c.chunk = next
		c.inChunk, c.byteOff = 0, 0
		c.dts = c.idx.chunks[next].FirstDTS
		c.dtsRun, c.dtsUsed, c.ctsRun, c.ctsUsed = 0, 0, 0, 0
		tr.ChunkChanged = true
		tr.merge(c.describe())
	}

	for c.syncPos < len(c.idx.sync) && c.idx.sync[c.syncPos] < c.sample {
		c.syncPos++
	}
	step, err := c.followEdits()
	tr.merge(step)
	return tr, err
}

// AdvanceBy moves n samples forward, typically by the Samples of a span.
func (c *Cursor) AdvanceBy(n uint32) (Transition, error) {
	var tr Transition
	for range n {
		step, err := c.Advance()
		tr.merge(step)
		if err != nil {
			return tr, err
		}
	}
	return tr, nil
}

// describe reports a description change against the last one seen.
func (c *Cursor) describe() Transition {
	desc := c.idx.chunks[c.chunk].DescriptionIndex
	if desc == c.lastDesc {
		return Transition{}
	}
	c.lastDesc = desc
	return Transition{DescriptionChanged: true, DescriptionIndex: desc}
}

// followEdits moves on to the next edit segment once the presentation time of
// the current sample reaches the end of the current one. A segment starting
// later in the media makes the cursor skip ahead.
func (c *Cursor) followEdits() (Transition, error) {
	var tr Transition
	el := c.idx.edits
	if el == nil {
		return tr, nil
	}
	for c.edit.seg < len(el.segments)-1 {
		end := el.segmentEnd(c.edit)
		if el.toMovie(el.presentation(int64(c.dts), c.edit)) < end { //nolint:gosec
			break
		}
		next := el.selectAt(end)
		if next.seg <= c.edit.seg {
			break
		}
		c.edit = next
		shift := mediaShift(el.segments[next.seg])
		if shift <= int64(c.dts) { //nolint:gosec
			continue
		}
		pos, err := c.idx.Locate(shift)
		if err != nil {
			c.state = stateExhausted
			return tr, &ExhaustedError{}
		}
		prev := c.chunk
		c.enter(pos)
		tr.Spliced = true
		if pos.Chunk != prev {
			tr.ChunkChanged = true
			tr.merge(c.describe())
		}
	}
	return tr, nil
}

// SeekTo moves the cursor to the sample Locate picks for a track time. On
// failure the cursor is exhausted.
func (c *Cursor) SeekTo(t int64) (Transition, error) {
	pos, err := c.idx.Locate(t)
	if err != nil {
		c.state = stateExhausted
		return Transition{}, err
	}
	tr := c.jump(pos)
	if el := c.idx.edits; el != nil {
		c.edit = el.stateForTrack(int64(c.dts)) //nolint:gosec
	}
	return tr, nil
}

// SeekToTime moves the cursor to the sample presented at d, going through the
// edit list. On failure the cursor is exhausted.
func (c *Cursor) SeekToTime(d time.Duration) (Transition, error) {
	pos, st, err := c.idx.locateMovie(d)
	if err != nil {
		c.state = stateExhausted
		return Transition{}, err
	}
	tr := c.jump(pos)
	if c.idx.edits != nil {
		c.edit = st
	}
	return tr, nil
}

func (c *Cursor) jump(pos Position) Transition {
	prev := c.chunk
	wasReady := c.state == stateReady
	c.enter(pos)
	tr := c.describe()
	tr.ChunkChanged = !wasReady || pos.Chunk != prev
	return tr
}
