package feed

import "sync"

// StateSignal broadcasts the connection state with latest-value semantics:
// a new subscriber immediately observes the current value, and a slow
// subscriber only ever sees the most recent one.
type StateSignal struct {
	mu    sync.Mutex
	value bool
	subs  []chan bool
}

func NewStateSignal(initial bool) *StateSignal {
	return &StateSignal{value: initial}
}

// Current returns the most recently published value.
func (s *StateSignal) Current() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe registers a new observer. The returned channel carries the
// current value right away.
func (s *StateSignal) Subscribe() <-chan bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan bool, 1)
	ch <- s.value
	s.subs = append(s.subs, ch)
	return ch
}

func (s *StateSignal) publish(value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	for _, ch := range s.subs {
		sendLatestBool(ch, value)
	}
}

// sendLatestBool replaces a pending value instead of queueing behind it.
func sendLatestBool(ch chan bool, value bool) {
	for {
		select {
		case ch <- value:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// TickSignal broadcasts decoded ticker events fire-and-forget. Intermediate
// ticks are replaced for subscribers that fall behind, never buffered.
type TickSignal struct {
	mu   sync.Mutex
	subs []chan Ticker
}

func NewTickSignal() *TickSignal {
	return &TickSignal{}
}

// Subscribe registers a new observer for ticker events.
func (s *TickSignal) Subscribe() <-chan Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Ticker, 1)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *TickSignal) publish(tick Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		sendLatestTick(ch, tick)
	}
}

func sendLatestTick(ch chan Ticker, tick Ticker) {
	for {
		select {
		case ch <- tick:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
