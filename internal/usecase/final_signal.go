package usecase

import (
	"context"
	"sync"
	"time"
)

// finalSignal is a resettable one-shot event with wait-with-timeout.
type finalSignal struct {
	mu    sync.Mutex
	ch    chan struct{}
	fired bool
}

func newFinalSignal() *finalSignal {
	return &finalSignal{ch: make(chan struct{})}
}

// Fire releases current and future waiters until Reset. Safe to call repeatedly.
func (s *finalSignal) Fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return
	}
	s.fired = true
	close(s.ch)
}

// Reset re-arms the signal.
func (s *finalSignal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fired {
		return
	}
	s.fired = false
	s.ch = make(chan struct{})
}

func (s *finalSignal) Fired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// waitOutcome says why Wait returned.
type waitOutcome int

const (
	waitFired waitOutcome = iota
	waitTimedOut
	waitAborted
)

// Wait blocks until the signal fires, timeout elapses, ctx is done or abort is
// closed. A nil abort channel never aborts.
func (s *finalSignal) Wait(ctx context.Context, timeout time.Duration, abort <-chan struct{}) waitOutcome {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return waitFired
	case <-timer.C:
		return waitTimedOut
	case <-ctx.Done():
		return waitAborted
	case <-abort:
		// The connection may close right after delivering the terminal frame.
		select {
		case <-ch:
			return waitFired
		default:
		}
		return waitAborted
	}
}
