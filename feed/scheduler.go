package feed

import (
	"sync"
	"time"
)

// Named timer handles owned by a feed client instance.
const (
	timerHeartbeat = "heartbeat"
	timerLiveness  = "liveness"
	timerActivity  = "activity"
)

// Timer is an armed callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock creates timers. The real clock delegates to time.AfterFunc; tests
// substitute a fake clock to drive timer interaction deterministically.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

type realTimer struct {
	t *time.Timer
}

func (t realTimer) Stop() bool {
	return t.t.Stop()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

// Scheduler holds the named timers of one feed client. Arming an already
// armed handle is cancel-then-set, never additive, so callbacks cannot stack
// across reconnects. Callbacks still in flight after a disarm must be
// idempotent.
type Scheduler struct {
	clock  Clock
	mu     sync.Mutex
	timers map[string]Timer
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]Timer),
	}
}

// Arm schedules fn to run after d, cancelling any timer already armed under
// the same name.
func (s *Scheduler) Arm(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[name]; ok {
		t.Stop()
	}
	s.timers[name] = s.clock.AfterFunc(d, fn)
}

// Disarm cancels the named timer if armed.
func (s *Scheduler) Disarm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// DisarmAll cancels every armed timer. Used on connection teardown so timers
// never leak across reconnects.
func (s *Scheduler) DisarmAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}

// Armed reports whether the named timer is currently armed.
func (s *Scheduler) Armed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[name]
	return ok
}
