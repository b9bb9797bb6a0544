package monitor

import (
	"fmt"
	"sync"

	"github.com/dhwoox/Final-RAG/pkg/device"
)

// State is the lifecycle state of a monitor.
type State int

const (
	// StateCreated means the subscription is open but not yet consumed.
	StateCreated State = iota
	// StateArmed means the consumer is reading the stream.
	StateArmed
	// StateResolved means a matching event was captured.
	StateResolved
	// StateTimedOut means a wait elapsed without a match. Events arriving in
	// this state are discarded until the monitor is verified again.
	StateTimedOut
	// StateStopped means the subscription was released.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateArmed:
		return "armed"
	case StateResolved:
		return "resolved"
	case StateTimedOut:
		return "timed_out"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Filter selects the event a monitor waits for.
type Filter struct {
	EventCode uint32
	DeviceID  uint32
	// UserID restricts matches to one user when set.
	UserID string
}

// Matches reports whether ev satisfies the filter.
func (f Filter) Matches(ev device.Event) bool {
	if ev.DeviceID != f.DeviceID || ev.Code() != f.EventCode {
		return false
	}
	return f.UserID == "" || ev.UserID == f.UserID
}

// Handle is one running monitor.
type Handle struct {
	name   string
	filter Filter
	sub    device.Subscription

	mu      sync.Mutex
	state   State
	event   *device.Event
	matched chan struct{}

	stopOnce sync.Once
	stopErr  error
	stopped  chan struct{}
	done     chan struct{}
}

func newHandle(name string, filter Filter, sub device.Subscription) *Handle {
	return &Handle{
		name:    name,
		filter:  filter,
		sub:     sub,
		state:   StateCreated,
		matched: make(chan struct{}),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns the monitor name.
func (h *Handle) Name() string {
	return h.name
}

// Filter returns the monitor's event filter.
func (h *Handle) Filter() Filter {
	return h.filter
}

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Event returns the captured event, if any.
func (h *Handle) Event() (device.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.event == nil {
		return device.Event{}, false
	}
	return *h.event, true
}

// consume drains the subscription until it ends or the handle is stopped.
// The first matching event is stored once and signalled by closing matched.
func (h *Handle) consume() {
	defer close(h.done)

	h.mu.Lock()
	if h.state == StateCreated {
		h.state = StateArmed
	}
	h.mu.Unlock()

	events := h.sub.Events()
	for {
		select {
		case <-h.stopped:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if h.filter.Matches(ev) {
				h.capture(ev)
			}
		}
	}
}

func (h *Handle) capture(ev device.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateCreated && h.state != StateArmed {
		return
	}
	h.event = &ev
	h.state = StateResolved
	close(h.matched)
}

// rearm moves a timed out monitor back to armed and reports the state it
// was in.
func (h *Handle) rearm() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.state
	if h.state == StateTimedOut {
		h.state = StateArmed
	}
	return prev
}

// timeout records an elapsed wait unless the monitor resolved meanwhile.
func (h *Handle) timeout() (device.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.event != nil {
		return *h.event, true
	}
	if h.state != StateStopped {
		h.state = StateTimedOut
	}
	return device.Event{}, false
}

// Stop releases the subscription and waits for the consumer to exit. It is
// safe to call more than once; later calls return the first result.
func (h *Handle) Stop() error {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.state = StateStopped
		h.mu.Unlock()

		close(h.stopped)
		h.stopErr = h.sub.Close()
		<-h.done
	})
	return h.stopErr
}
