// Package scan runs cooperative decode sessions over a capture device. A
// session advances through a fixed set of states and reports at most one
// successful read.
package scan

import (
	"sync"
	"time"
)

// State is a scan session lifecycle state.
type State string

const (
	// StateIdle is a created session whose loop has not started.
	StateIdle State = "idle"
	// StateInitializing covers device acquisition.
	StateInitializing State = "initializing"
	// StateScanning is the active decode loop.
	StateScanning State = "scanning"
	// StateSuccess is a terminal state: one code was read and resolved.
	StateSuccess State = "success"
	// StateFatal is a terminal state: the session failed and will not
	// produce a result.
	StateFatal State = "fatal"
	// StateClosed is a terminal state: the session was canceled or timed
	// out before producing a result.
	StateClosed State = "closed"
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFatal, StateClosed:
		return true
	}
	return false
}

// EventKind classifies a session event.
type EventKind string

const (
	// EventState announces a state transition.
	EventState EventKind = "state"
	// EventInvalid reports a frame whose payload did not resolve to a
	// known code. The session keeps scanning.
	EventInvalid EventKind = "invalid"
	// EventSuccess carries the single successful read.
	EventSuccess EventKind = "success"
	// EventFatal carries the terminal failure.
	EventFatal EventKind = "fatal"
)

// Event is a single scan session signal.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	State     State     `json:"state,omitempty"`
	Code      string    `json:"code,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
	Frames    uint64    `json:"frames"`
	Time      time.Time `json:"time"`
}

// broadcaster fans session events out to subscribers. Slow subscribers drop
// events rather than stalling the decode loop.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new event channel. The returned cancel function
// removes and closes it.
func (b *broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
