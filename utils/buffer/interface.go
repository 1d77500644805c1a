// Package buffer pools the byte slices sample data is read into.
package buffer

// PooledBuffer holds the bytes of one read.
type PooledBuffer interface {
	Data() []byte
	Len() int

	// Release returns the buffer to its pool. The buffer must not be used
	// afterwards.
	Release()
}
