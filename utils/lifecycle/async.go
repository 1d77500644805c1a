package lifecycle

import (
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ugparu/mediaindex/utils/logger"
)

// failurePause is the delay between two steps of a fail-safe loop after a
// step failed.
const failurePause = 100 * time.Millisecond

type asyncManager[T Instance] struct {
	instance             T
	failSafe             bool
	stopChan, doneChan   chan struct{}
	startOnce, closeOnce sync.Once
}

// NewAsyncManager returns a manager whose loop ends at the first step error
// or panic. A failing start function is reported and no loop is run.
func NewAsyncManager[T Instance](instance T) Manager[T] {
	return newManager(instance, false)
}

// NewFailSafeAsyncManager returns a manager whose loop survives step errors
// and panics; only a BreakError or Close ends it. A failing start function is
// logged and the loop runs anyway.
func NewFailSafeAsyncManager[T Instance](instance T) Manager[T] {
	return newManager(instance, true)
}

func newManager[T Instance](instance T, failSafe bool) *asyncManager[T] {
	return &asyncManager[T]{
		instance: instance,
		failSafe: failSafe,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (m *asyncManager[T]) Start(startFunc func(T) error) (err error) {
	select {
	case <-m.stopChan:
		if m.failSafe {
			return nil
		}
		return &StartedAfterCloseError{}
	default:
	}
	if !m.failSafe {
		err = &StartedAlreadyError{}
	}

	m.startOnce.Do(func() {
		logger.Debugf(m.instance, "Starting async loop (failsafe=%t)", m.failSafe)
		err = startFunc(m.instance)
		if err != nil {
			if !m.failSafe {
				close(m.doneChan)
				return
			}
			logger.Warningf(m.instance, "Detected error on start: %s", err.Error())
			err = nil
		}
		go m.process()
	})
	return err
}

func (m *asyncManager[T]) process() {
	logger.Debug(m.instance, "Entering main loop")
	defer close(m.doneChan)

	for {
		failed, stop := m.step()
		if stop {
			return
		}
		if failed {
			if !m.failSafe {
				return
			}
			select {
			case <-m.stopChan:
				return
			case <-time.After(failurePause):
			}
		}
	}
}

// step runs one Step of the instance, recovering from panics.
func (m *asyncManager[T]) step() (failed, stop bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(m.instance, "Panic detected! Recovering from: %v", r)
			logger.Errorf(m.instance, "%s", debug.Stack())
			failed = true
		}
	}()

	err := m.instance.Step(m.stopChan)
	if err == nil {
		return false, false
	}
	var brk *BreakError
	if errors.As(err, &brk) {
		return false, true
	}
	logger.Warningf(m.instance, "Detected error: %s", err.Error())
	return true, false
}

// Close stops the loop, waits for it to end and cleans the instance up.
func (m *asyncManager[T]) Close() {
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.startOnce.Do(func() {
			close(m.doneChan)
		})
		<-m.doneChan
		m.instance.Cleanup()
	})
}

func (m *asyncManager[T]) Done() <-chan struct{} {
	return m.doneChan
}
