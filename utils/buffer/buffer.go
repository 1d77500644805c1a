package buffer

import (
	"sync"
)

// Capacity classes: audio frames fit the first, most video samples the second,
// key frames of high bitrate video the last. Larger reads are left to the GC.
var classes = [...]int{4 << 10, 64 << 10, 1 << 20}

const maxBufSize = 4 << 20

var pools [len(classes)]sync.Pool

func init() {
	for i, size := range classes {
		pools[i].New = func() any {
			return &memBuffer{buf: make([]byte, 0, size), class: i}
		}
	}
}

func classOf(size int) int {
	for i, c := range classes {
		if size <= c {
			return i
		}
	}
	return len(classes) - 1
}

// Get returns a buffer of the given length. Its contents are undefined.
func Get(size int) PooledBuffer {
	class := classOf(size)
	b, _ := pools[class].Get().(*memBuffer)
	if cap(b.buf) < size {
		b.buf = make([]byte, size)
	}
	b.buf = b.buf[:size]
	return b
}

type memBuffer struct {
	buf   []byte
	class int
}

func (b *memBuffer) Data() []byte {
	return b.buf
}

func (b *memBuffer) Len() int {
	return len(b.buf)
}

func (b *memBuffer) Release() {
	if cap(b.buf) > maxBufSize {
		return
	}
	b.buf = b.buf[:0]
	pools[b.class].Put(b)
}
