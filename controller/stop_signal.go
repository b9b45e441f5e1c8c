package controller

import (
	"sync"
	"sync/atomic"
)

// StopSignal is the external "end the session" flag. Any goroutine may
// trigger it; the capture loop checks it once per frame.
type StopSignal struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
	reason  atomic.Value // string
}

// NewStopSignal returns an untriggered signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Trigger sets the flag. Only the first reason is kept.
func (s *StopSignal) Trigger(reason string) {
	s.once.Do(func() {
		s.reason.Store(reason)
		s.stopped.Store(true)
		close(s.done)
	})
}

// Stopped reports whether Trigger has been called.
func (s *StopSignal) Stopped() bool { return s.stopped.Load() }

// Done is closed on the first Trigger.
func (s *StopSignal) Done() <-chan struct{} { return s.done }

// Reason returns what triggered the stop, or "" if still running.
func (s *StopSignal) Reason() string {
	r, _ := s.reason.Load().(string)
	return r
}
