// Package reader delivers the packets of media files asynchronously.
package reader

import (
	"errors"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ugparu/mediaindex"
	"github.com/ugparu/mediaindex/utils/lifecycle"
	"github.com/ugparu/mediaindex/utils/logger"
)

// Constants for configuring the reader.
const (
	minRetryInterval = 250 * time.Millisecond
	maxRetryInterval = 8 * time.Second
)

// Option configures a reader.
type Option func(*reader)

// WithLoop makes the reader start over at the end of every file. Timestamps
// keep growing across passes.
func WithLoop() Option {
	return func(rdr *reader) {
		rdr.loop = true
	}
}

// WithParams passes input parameters to every demuxer.
func WithParams(params ...mediaindex.InputParameter) Option {
	return func(rdr *reader) {
		rdr.params = params
	}
}

// reader is an internal structure implementing the mediaindex.Reader interface.
type reader struct {
	lifecycle.Manager[*reader]
	newDmx      func(string, ...mediaindex.InputParameter) (mediaindex.Demuxer, error)
	params      []mediaindex.InputParameter
	loop        bool
	packets     chan mediaindex.Packet
	addURLCh    chan string
	removeURLCh chan string
	stoppers    map[string]chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
}

// New creates a reader of local files. Files are read concurrently and their
// packets share one channel of the given size. A file that cannot be opened or
// read is retried with a growing interval until it is removed; the interval
// drops back to the minimum once a packet is delivered.
func New(chanSize int, opts ...Option) mediaindex.Reader {
	rdr := &reader{
		newDmx:      NewDemuxer,
		packets:     make(chan mediaindex.Packet, chanSize),
		addURLCh:    make(chan string, chanSize),
		removeURLCh: make(chan string, chanSize),
		stoppers:    make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(rdr)
	}
	rdr.Manager = lifecycle.NewFailSafeAsyncManager(rdr)
	return rdr
}

func (rdr *reader) readFile(src string, stopCh <-chan struct{}) {
	defer rdr.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(rdr, "Panic while reading %s: %v", src, r)
			logger.Errorf(rdr, "%s", debug.Stack())
		}
	}()

	tl := newTimeline()
	interval := minRetryInterval
	var dmx mediaindex.Demuxer
	defer func() {
		if dmx != nil {
			dmx.Close()
		}
	}()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if dmx == nil {
			var err error
			if dmx, err = rdr.open(src, tl); err != nil {
				if interval < maxRetryInterval {
					logger.Warningf(rdr, "Failed to open %s: %s", src, err.Error())
					logger.Infof(rdr, "Retrying with %v interval", interval)
				}
				select {
				case <-time.After(interval):
				case <-stopCh:
					return
				}
				interval = rdr.nextInterval(interval)
				continue
			}
		}

		pkt, err := dmx.ReadPacket()
		switch {
		case errors.Is(err, io.EOF):
			if !rdr.loop {
				logger.Infof(rdr, "Finished reading %s", src)
				rdr.forget(src, stopCh)
				return
			}
			logger.Debugf(rdr, "Starting %s over", src)
			tl.rewind()
			if err = dmx.SeekTo(0); err != nil {
				logger.Warningf(rdr, "Failed to rewind %s: %s", src, err.Error())
				dmx.Close()
				dmx = nil
			}
			continue
		case err != nil:
			logger.Warningf(rdr, "Packet read error in %s: %s", src, err.Error())
			dmx.Close()
			dmx = nil
			select {
			case <-time.After(interval):
			case <-stopCh:
				return
			}
			interval = rdr.nextInterval(interval)
			continue
		}

		logger.Tracef(rdr, "Read new packet %v", pkt)
		out, ok := tl.apply(pkt)
		if !ok {
			pkt.Release()
			continue
		}
		select {
		case rdr.packets <- out:
			interval = minRetryInterval
		case <-stopCh:
			pkt.Release()
			return
		}
	}
}

// open starts a demuxer for src and, after a failure, resumes where the
// previous one stopped.
func (rdr *reader) open(src string, tl *timeline) (mediaindex.Demuxer, error) {
	dmx, err := rdr.newDmx(src, rdr.params...)
	if err != nil {
		return nil, err
	}
	infos, err := dmx.Demux()
	if err != nil {
		dmx.Close()
		return nil, err
	}
	logger.Infof(rdr, "Demuxer started for %s with %d tracks", src, len(infos))

	if at := tl.reopened(); at > 0 {
		if err = dmx.SeekTo(at); err != nil {
			logger.Warningf(rdr, "Failed to resume %s at %v: %s", src, at, err.Error())
		}
	}
	return dmx, nil
}

// nextInterval doubles the retry interval up to the maximum.
func (rdr *reader) nextInterval(current time.Duration) time.Duration {
	if current >= maxRetryInterval {
		return current
	}
	const scaleFactor = 2
	next := current * scaleFactor
	if next >= maxRetryInterval {
		next = maxRetryInterval
		logger.Infof(rdr, "Max retry interval reached. Further attempts will be silent")
	}
	return next
}

// forget drops a finished file unless it was removed or replaced meanwhile.
func (rdr *reader) forget(src string, stopCh <-chan struct{}) {
	rdr.mu.Lock()
	defer rdr.mu.Unlock()
	if ch, ok := rdr.stoppers[src]; ok && (<-chan struct{})(ch) == stopCh {
		delete(rdr.stoppers, src)
	}
}

// Step handles one request to add or remove a file.
func (rdr *reader) Step(stopCh <-chan struct{}) error {
	logger.Trace(rdr, "Running reader step")
	select {
	case <-stopCh:
		return &lifecycle.BreakError{}
	case src := <-rdr.addURLCh:
		rdr.mu.Lock()
		defer rdr.mu.Unlock()
		if _, ok := rdr.stoppers[src]; ok {
			logger.Warningf(rdr, "File %s is already being read", src)
			return nil
		}
		logger.Infof(rdr, "Adding file %s", src)
		fileStopCh := make(chan struct{})
		rdr.stoppers[src] = fileStopCh
		rdr.wg.Add(1)
		go rdr.readFile(src, fileStopCh)
	case src := <-rdr.removeURLCh:
		logger.Infof(rdr, "Removing file %s", src)
		rdr.mu.Lock()
		defer rdr.mu.Unlock()
		if ch, ok := rdr.stoppers[src]; ok {
			close(ch)
			delete(rdr.stoppers, src)
		}
	}
	return nil
}

// Read starts the reader loop.
func (rdr *reader) Read() {
	_ = rdr.Start(func(*reader) error { return nil })
}

// Cleanup stops every file, waits for them and closes the packets channel.
func (rdr *reader) Cleanup() {
	logger.Infof(rdr, "Closing reader")
	rdr.mu.Lock()
	for src, ch := range rdr.stoppers {
		close(ch)
		delete(rdr.stoppers, src)
	}
	rdr.mu.Unlock()
	rdr.wg.Wait()
	close(rdr.packets)
}

// Packets returns the channel for receiving media packets. It is closed once
// the reader is closed.
func (rdr *reader) Packets() <-chan mediaindex.Packet {
	return rdr.packets
}

func (rdr *reader) String() string {
	return "READER"
}

func (rdr *reader) AddURL() chan<- string {
	return rdr.addURLCh
}

func (rdr *reader) RemoveURL() chan<- string {
	return rdr.removeURLCh
}
