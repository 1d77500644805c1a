// Package lifecycle runs long-lived components on their own goroutine and
// shuts them down once.
package lifecycle

// Instance is a component driven by a Manager.
type Instance interface {
	// Step performs one unit of work. It returns a BreakError to stop the
	// loop; any other error is logged.
	Step(stopCh <-chan struct{}) error
	// Cleanup releases the resources of the instance after its loop ended.
	Cleanup()
	String() string
}

// Manager starts an Instance loop once and stops it once.
type Manager[T Instance] interface {
	Start(func(T) error) error
	Close()
	Done() <-chan struct{}
}

type BreakError struct{}

func (*BreakError) Error() string {
	return "break"
}

type StartedAlreadyError struct{}

func (*StartedAlreadyError) Error() string {
	return "started already"
}

type StartedAfterCloseError struct{}

func (*StartedAfterCloseError) Error() string {
	return "start after close"
}
