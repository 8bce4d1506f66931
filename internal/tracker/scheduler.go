package tracker

import (
	"sync"
	"time"
)

// DetectorKind keys the timer-based detectors. At most one live timer
// exists per kind; scheduling a new one always invalidates the prior.
type DetectorKind int

const (
	// KindHesitation is the product-page hesitation timer.
	KindHesitation DetectorKind = iota
	// KindPostAtc is the post-add-to-cart idle timer.
	KindPostAtc
	// KindCartInactivity is the open-drawer inactivity timer.
	KindCartInactivity
)

// Scheduler schedules cancellable delayed detector firings. Implementations
// must guarantee that Schedule and Cancel invalidate any previously
// scheduled firing of the same kind, even one whose timer has already
// expired but whose callback has not yet run.
type Scheduler interface {
	// Schedule arranges for fn to run after delay, replacing any pending
	// firing of the same kind.
	Schedule(kind DetectorKind, delay time.Duration, fn func())

	// Cancel invalidates any pending firing of the given kind.
	Cancel(kind DetectorKind)

	// Stop cancels everything. The scheduler is unusable afterwards.
	Stop()
}

// timerScheduler implements Scheduler on time.AfterFunc. A per-kind
// generation counter closes the race where a timer pops between the
// expiry and the Stop call: a firing only runs if its generation is still
// current.
type timerScheduler struct {
	mu      sync.Mutex
	timers  map[DetectorKind]*time.Timer
	gen     map[DetectorKind]uint64
	stopped bool
}

// NewScheduler creates the wall-clock scheduler.
func NewScheduler() Scheduler {
	return &timerScheduler{
		timers: make(map[DetectorKind]*time.Timer),
		gen:    make(map[DetectorKind]uint64),
	}
}

func (s *timerScheduler) Schedule(kind DetectorKind, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t := s.timers[kind]; t != nil {
		t.Stop()
	}
	s.gen[kind]++
	g := s.gen[kind]

	s.timers[kind] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		live := !s.stopped && s.gen[kind] == g
		s.mu.Unlock()
		if live {
			fn()
		}
	})
}

func (s *timerScheduler) Cancel(kind DetectorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen[kind]++
	if t := s.timers[kind]; t != nil {
		t.Stop()
		delete(s.timers, kind)
	}
}

func (s *timerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for kind, t := range s.timers {
		t.Stop()
		delete(s.timers, kind)
	}
}
