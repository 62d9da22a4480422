package abort

import (
	"sync"
	"time"

	"github.com/wagiedev/claudewire/internal/errors"
)

// Callback is invoked once with the recorded reason when a Signal aborts.
type Callback func(reason string)

// Signal is a shared, one-way abort flag.
//
// The first call to Abort records the reason, closes the Done channel and
// fires every registered callback synchronously on the aborting goroutine.
// Later calls are no-ops. A Signal is safe for concurrent use and may be
// shared by every component of a session.
type Signal struct {
	mu        sync.Mutex
	aborted   bool
	reason    string
	callbacks []Callback
	done      chan struct{}
}

// New creates a signal that has not been aborted.
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Abort flips the signal. Only the first call records reason and fires callbacks.
func (s *Signal) Abort(reason string) {
	s.mu.Lock()

	if s.aborted {
		s.mu.Unlock()

		return
	}

	s.aborted = true
	s.reason = reason
	callbacks := s.callbacks
	s.callbacks = nil

	close(s.done)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(reason)
	}
}

// Aborted reports whether Abort has been called.
func (s *Signal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.aborted
}

// Reason returns the reason recorded by the first Abort call.
func (s *Signal) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reason
}

// OnAbort registers cb. If the signal is already aborted, cb runs immediately
// on the calling goroutine.
func (s *Signal) OnAbort(cb Callback) {
	s.mu.Lock()

	if s.aborted {
		reason := s.reason
		s.mu.Unlock()

		cb(reason)

		return
	}

	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()
}

// Wait blocks until the signal aborts or timeout elapses and reports whether
// it aborted. A non-positive timeout waits indefinitely.
func (s *Signal) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.done

		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return true
	case <-timer.C:
		return s.Aborted()
	}
}

// Check returns an *errors.AbortError carrying the recorded reason once the
// signal has aborted, and nil before that.
func (s *Signal) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.aborted {
		return nil
	}

	return &errors.AbortError{Reason: s.reason}
}

// Done returns a channel that is closed when the signal aborts.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
