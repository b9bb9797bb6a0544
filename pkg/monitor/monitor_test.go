package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/device/simulator"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

const testDevice uint32 = 100

func newSimulator(opts ...simulator.Option) *simulator.Simulator {
	return simulator.New(device.SimulatorConfig{Devices: []device.SimulatedDevice{{ID: testDevice}}}, nil, opts...)
}

func successEvent(userID string) device.Event {
	return device.Event{DeviceID: testDevice, EventCode: 0x1300, SubCode: 0x01, UserID: userID}
}

func TestFilter_Matches(t *testing.T) {
	f := Filter{EventCode: 0x1301, DeviceID: testDevice}
	assert.True(t, f.Matches(successEvent("anyone")))
	assert.False(t, f.Matches(device.Event{DeviceID: testDevice, EventCode: 0x1900}))
	assert.False(t, f.Matches(device.Event{DeviceID: testDevice + 1, EventCode: 0x1300, SubCode: 1}))

	f.UserID = "u1"
	assert.True(t, f.Matches(successEvent("u1")))
	assert.False(t, f.Matches(successEvent("u2")))
}

func TestAdapter_StartVerify(t *testing.T) {
	ctx := context.Background()
	sim := newSimulator()
	a := NewAdapter(sim)

	h, err := a.Start(ctx, "m1", Filter{EventCode: 0x1301, DeviceID: testDevice, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "m1", h.Name())

	sim.Emit(successEvent("u2"))
	sim.Emit(successEvent("u1"))

	ev, err := a.Verify(ctx, "m1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1301), ev.Code())
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, StateResolved, h.State())

	observed, ok := a.Observed("m1")
	require.True(t, ok)
	assert.Equal(t, ev, observed)

	again, err := a.Verify(ctx, "m1", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, ev, again)

	require.NoError(t, a.StopAll(ctx))
	assert.Equal(t, StateStopped, h.State())
	assert.Equal(t, 0, sim.Subscribers(testDevice))
}

func TestAdapter_EventBeforeConsumerStarts(t *testing.T) {
	ctx := context.Background()
	sim := newSimulator()
	a := NewAdapter(sim)

	_, err := a.Start(ctx, "m1", Filter{EventCode: 0x1301, DeviceID: testDevice})
	require.NoError(t, err)
	sim.Emit(successEvent(""))

	_, err = a.Verify(ctx, "m1", time.Second)
	require.NoError(t, err)
	require.NoError(t, a.StopAll(ctx))
}

func TestAdapter_Duplicate(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(newSimulator())

	_, err := a.Start(ctx, "m1", Filter{EventCode: 0x1301, DeviceID: testDevice})
	require.NoError(t, err)

	_, err = a.Start(ctx, "m1", Filter{EventCode: 0x1302, DeviceID: testDevice})
	require.Error(t, err)
	assert.True(t, skills.IsKind(err, skills.KindDuplicateMonitor))

	require.NoError(t, a.StopAll(ctx))

	_, err = a.Start(ctx, "m1", Filter{EventCode: 0x1301, DeviceID: testDevice})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, a.Names())
	require.NoError(t, a.StopAll(ctx))
}

func TestAdapter_TimeoutDiscardsLateEvents(t *testing.T) {
	ctx := context.Background()
	sim := newSimulator()
	a := NewAdapter(sim)

	h, err := a.Start(ctx, "m1", Filter{EventCode: 0x1301, DeviceID: testDevice})
	require.NoError(t, err)

	_, err = a.Verify(ctx, "m1", 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, skills.IsKind(err, skills.KindEventNotObserved))
	assert.Contains(t, err.Error(), `"m1"`)
	assert.Equal(t, StateTimedOut, h.State())

	sim.Emit(successEvent(""))
	assert.Equal(t, 1, sim.Subscribers(testDevice))
	time.Sleep(20 * time.Millisecond)
	_, captured := h.Event()
	assert.False(t, captured, "event arriving after a timeout is discarded")

	_, ok := a.Observed("m1")
	assert.False(t, ok)

	done := make(chan error, 1)
	go func() {
		_, err := a.Verify(ctx, "m1", time.Second)
		done <- err
	}()
	assert.Eventually(t, func() bool { return h.State() == StateArmed }, time.Second, time.Millisecond)
	sim.Emit(successEvent(""))
	require.NoError(t, <-done)

	require.NoError(t, a.StopAll(ctx))
}

func TestAdapter_UnknownMonitor(t *testing.T) {
	a := NewAdapter(newSimulator())

	_, err := a.Verify(context.Background(), "nope", time.Millisecond)
	require.Error(t, err)
	assert.True(t, skills.IsKind(err, skills.KindUnknownMonitor))
}

func TestAdapter_ContextCancelled(t *testing.T) {
	a := NewAdapter(newSimulator())
	ctx, cancel := context.WithCancel(context.Background())

	_, err := a.Start(context.Background(), "m1", Filter{EventCode: 0x1301, DeviceID: testDevice})
	require.NoError(t, err)

	cancel()
	_, err = a.Verify(ctx, "m1", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, a.StopAll(context.Background()))
}

func TestAdapter_SubscribeRetry(t *testing.T) {
	ctx := context.Background()

	a := NewAdapter(newSimulator(simulator.WithSubscribeFailures(2)), WithSubscribeRetry(3, time.Millisecond))
	_, err := a.Start(ctx, "m1", Filter{EventCode: 0x1301, DeviceID: testDevice})
	require.NoError(t, err)
	require.NoError(t, a.StopAll(ctx))

	a = NewAdapter(newSimulator(simulator.WithSubscribeFailures(5)), WithSubscribeRetry(2, time.Millisecond))
	_, err = a.Start(ctx, "m1", Filter{EventCode: 0x1301, DeviceID: testDevice})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to subscribe")
	assert.Empty(t, a.Names())
}

type fakeSubscription struct {
	events   chan device.Event
	closeErr error
	closes   atomic.Int32
}

func (f *fakeSubscription) Events() <-chan device.Event { return f.events }

func (f *fakeSubscription) Close() error {
	f.closes.Add(1)
	return f.closeErr
}

type fakeService struct {
	device.Service
	subs []*fakeSubscription
	next int
}

func (f *fakeService) SubscribeEvents(context.Context, uint32) (device.Subscription, error) {
	sub := f.subs[f.next]
	f.next++
	return sub, nil
}

func TestAdapter_StopAllCollectsFailures(t *testing.T) {
	ctx := context.Background()
	failing := &fakeSubscription{events: make(chan device.Event), closeErr: errors.New("stream broken")}
	healthy := &fakeSubscription{events: make(chan device.Event)}
	a := NewAdapter(&fakeService{subs: []*fakeSubscription{failing, healthy}})

	h1, err := a.Start(ctx, "first", Filter{DeviceID: testDevice})
	require.NoError(t, err)
	h2, err := a.Start(ctx, "second", Filter{DeviceID: testDevice})
	require.NoError(t, err)

	err = a.StopAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream broken")
	assert.Contains(t, err.Error(), `"first"`)

	assert.Equal(t, int32(1), failing.closes.Load())
	assert.Equal(t, int32(1), healthy.closes.Load())
	assert.Equal(t, StateStopped, h1.State())
	assert.Equal(t, StateStopped, h2.State())
	assert.False(t, a.Active("first"))

	require.NoError(t, a.StopAll(ctx))
	assert.Error(t, h1.Stop(), "repeated stops return the first result")
	assert.Equal(t, int32(1), failing.closes.Load())
	assert.Equal(t, []string{"first", "second"}, a.Names())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "armed", StateArmed.String())
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.Equal(t, "state(9)", State(9).String())
}
