// Package scheduler decides when a queue may send. A Scheduler guarantees that at most one
// bundle per queue is outstanding: it is either Idle, waiting on an armed delay (Scheduled),
// or waiting on a delivery (Sending), never two of those at once.
package scheduler

import (
	"sync"
	"time"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/clock"
)

type State int

const (
	Idle State = iota
	Scheduled
	Sending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Sending:
		return "sending"
	default:
		return "unknown"
	}
}

type Scheduler struct {
	clock clock.Clock
	// guard reports whether a send may start (queue non-empty, client ready).
	guard func() bool
	// dispatch starts a send. It is called without the scheduler lock held and must
	// eventually be followed by Done.
	dispatch func()

	mu    sync.Mutex
	state State
	timer clock.Timer
	delay time.Duration
	// gen invalidates timer callbacks that lost the race against Cancel/Force.
	gen uint64
}

func New(c clock.Clock, guard func() bool, dispatch func()) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	return &Scheduler{
		clock:    c,
		guard:    guard,
		dispatch: dispatch,
	}
}

// Schedule arms a send attempt after delay. It does nothing unless the scheduler is Idle.
func (s *Scheduler) Schedule(delay time.Duration) bool {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return false
	}
	s.armLocked(delay)
	return true
}

func (s *Scheduler) armLocked(delay time.Duration) {
	s.gen++
	gen := s.gen
	s.state = Scheduled
	s.delay = delay
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.state != Scheduled || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if !s.guard() {
		s.state = Idle
		s.mu.Unlock()
		return
	}
	s.state = Sending
	s.mu.Unlock()

	s.dispatch()
}

// Force skips any armed delay and sends now. It returns false when a send is already
// outstanding or the guard refuses.
func (s *Scheduler) Force() bool {
	s.mu.Lock()
	if s.state == Sending {
		s.mu.Unlock()
		return false
	}
	s.cancelLocked()
	if !s.guard() {
		s.mu.Unlock()
		return false
	}
	s.state = Sending
	s.mu.Unlock()

	s.dispatch()
	return true
}

// Cancel disarms a pending delay. An outstanding send is not affected.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Done marks the outstanding send as finished and, when the guard holds, arms the next
// attempt after next. Both happen under one lock, so a concurrent Schedule cannot slip a
// shorter delay in between. It reports whether an attempt was armed.
func (s *Scheduler) Done(next time.Duration) bool {
	if next < 0 {
		next = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Sending {
		return false
	}
	s.state = Idle
	if !s.guard() {
		return false
	}
	s.armLocked(next)
	return true
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Delay is the delay of the most recently armed attempt.
func (s *Scheduler) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

func (s *Scheduler) cancelLocked() {
	if s.state != Scheduled {
		return
	}
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = Idle
}
