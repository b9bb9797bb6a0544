// Package monitor waits for device events on behalf of the executor. A
// monitor opens an event subscription, consumes it in the background and
// captures the first event matching its filter; Verify blocks until that
// happens or a timeout elapses.
package monitor

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

const (
	defaultSubscribeAttempts = 3
	defaultSubscribeDelay    = 200 * time.Millisecond
)

// Adapter manages the named monitors of one execution run.
type Adapter struct {
	svc      device.Service
	attempts uint
	delay    time.Duration

	mu       sync.Mutex
	handles  map[string]*Handle
	started  []string
	observed map[string]device.Event
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSubscribeRetry sets how often opening a subscription is attempted and
// the delay between attempts.
func WithSubscribeRetry(attempts uint, delay time.Duration) Option {
	return func(a *Adapter) {
		if attempts > 0 {
			a.attempts = attempts
		}
		if delay >= 0 {
			a.delay = delay
		}
	}
}

// NewAdapter creates an adapter subscribing through svc.
func NewAdapter(svc device.Service, opts ...Option) *Adapter {
	a := &Adapter{
		svc:      svc,
		attempts: defaultSubscribeAttempts,
		delay:    defaultSubscribeDelay,
		handles:  make(map[string]*Handle),
		observed: make(map[string]device.Event),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start opens a subscription for filter.DeviceID and begins consuming it in
// the background. The name must not belong to an active monitor.
func (a *Adapter) Start(ctx context.Context, name string, filter Filter) (*Handle, error) {
	a.mu.Lock()
	if _, exists := a.handles[name]; exists {
		a.mu.Unlock()
		return nil, skills.NewError(skills.KindDuplicateMonitor, "monitor %q is already active", name)
	}
	a.mu.Unlock()

	log := logger.G(ctx).WithField("monitor", name).
		WithField("event_code", filter.EventCode).
		WithField("device_id", filter.DeviceID)

	var sub device.Subscription
	err := retry.Do(
		func() error {
			s, err := a.svc.SubscribeEvents(ctx, filter.DeviceID)
			if err != nil {
				return err
			}
			sub = s
			return nil
		},
		retry.Attempts(a.attempts),
		retry.Delay(a.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Warn("retrying event subscription")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to events of device %d", filter.DeviceID)
	}

	h := newHandle(name, filter, sub)

	a.mu.Lock()
	if _, exists := a.handles[name]; exists {
		a.mu.Unlock()
		_ = sub.Close()
		return nil, skills.NewError(skills.KindDuplicateMonitor, "monitor %q is already active", name)
	}
	a.handles[name] = h
	if !slices.Contains(a.started, name) {
		a.started = append(a.started, name)
	}
	a.mu.Unlock()

	go h.consume()
	log.Debug("monitor started")
	return h, nil
}

// Verify waits up to timeout for the named monitor to capture its event.
// The captured event is recorded and returned. A timeout fails with
// EventNotObserved and leaves the monitor running; events arriving before
// the next Verify are discarded.
func (a *Adapter) Verify(ctx context.Context, name string, timeout time.Duration) (device.Event, error) {
	h, err := a.handle(name)
	if err != nil {
		return device.Event{}, err
	}

	if prev := h.rearm(); prev == StateStopped {
		return device.Event{}, skills.NewError(skills.KindEventNotObserved, "monitor %q is stopped", name)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.matched:
		ev, _ := h.Event()
		a.record(name, ev)
		logger.G(ctx).WithField("monitor", name).WithField("event_code", ev.Code()).Debug("monitor resolved")
		return ev, nil
	case <-timer.C:
	case <-h.done:
	case <-ctx.Done():
		return device.Event{}, errors.Wrapf(ctx.Err(), "waiting for monitor %q", name)
	}

	if ev, ok := h.timeout(); ok {
		a.record(name, ev)
		return ev, nil
	}
	return device.Event{}, skills.NewError(skills.KindEventNotObserved,
		"event 0x%04x not observed by monitor %q within %s", h.filter.EventCode, name, timeout)
}

// Observed returns the event recorded for name by a successful Verify.
func (a *Adapter) Observed(name string) (device.Event, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev, ok := a.observed[name]
	return ev, ok
}

// Names returns every monitor started during the run, in start order,
// including monitors already stopped.
func (a *Adapter) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.started...)
}

// Active reports whether name is a running monitor.
func (a *Adapter) Active(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.handles[name]
	return ok
}

// StopAll stops and removes every active monitor. Every handle is stopped
// even when some fail; the failures are returned together.
func (a *Adapter) StopAll(ctx context.Context) error {
	a.mu.Lock()
	handles := make([]*Handle, 0, len(a.handles))
	for _, name := range a.started {
		if h, ok := a.handles[name]; ok {
			handles = append(handles, h)
			delete(a.handles, name)
		}
	}
	a.mu.Unlock()

	var result *multierror.Error
	for _, h := range handles {
		if err := h.Stop(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to stop monitor %q", h.name))
			continue
		}
		logger.G(ctx).WithField("monitor", h.name).Debug("monitor stopped")
	}
	return result.ErrorOrNil()
}

func (a *Adapter) handle(name string) (*Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.handles[name]
	if !ok {
		return nil, skills.NewError(skills.KindUnknownMonitor, "monitor %q is not active", name)
	}
	return h, nil
}

func (a *Adapter) record(name string, ev device.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observed[name] = ev
}
