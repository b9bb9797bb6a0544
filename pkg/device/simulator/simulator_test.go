package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhwoox/Final-RAG/pkg/device"
)

const testDevice uint32 = 541530887

func newTestSimulator(t *testing.T, opts ...Option) *Simulator {
	t.Helper()
	return New(device.SimulatorConfig{}, &device.Inventory{
		Devices: []device.InventoryDevice{{ID: testDevice, IP: "10.0.0.1"}},
	}, opts...)
}

func nextEvent(t *testing.T, sub device.Subscription) device.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return device.Event{}
	}
}

func TestNew_FromInventory(t *testing.T) {
	sim := newTestSimulator(t)

	devices, err := sim.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, testDevice, devices[0].DeviceID)
	assert.True(t, devices[0].Connected)

	caps, err := sim.GetCapability(context.Background(), testDevice)
	require.NoError(t, err)
	v, ok := caps.Lookup("fingerprintInputSupported")
	assert.True(t, ok)
	assert.True(t, v)
}

func TestNew_ConfiguredCapabilities(t *testing.T) {
	sim := New(device.SimulatorConfig{Devices: []device.SimulatedDevice{
		{ID: 1, Capabilities: map[string]bool{"fingerprintinputsupported": false}},
		{ID: 2, Disconnected: true},
	}}, nil)

	caps, err := sim.GetCapability(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, caps["fingerprintInputSupported"])

	_, err = sim.GetCapability(context.Background(), 2)
	assert.ErrorContains(t, err, "not connected")

	_, err = sim.GetCapability(context.Background(), 3)
	assert.ErrorContains(t, err, "not found")
}

func TestUsers_EnrollRemove(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	users, err := sim.GetUsers(ctx, testDevice)
	require.NoError(t, err)
	assert.Nil(t, users)

	a, b := &device.User{ID: "a"}, &device.User{ID: "b"}
	require.NoError(t, sim.EnrollUsers(ctx, testDevice, []*device.User{a, b}))

	a.Name = "mutated"
	users, err = sim.GetUsers(ctx, testDevice)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "", users[0].Name)

	require.NoError(t, sim.RemoveUsers(ctx, testDevice, []string{"a", "missing"}))
	users, err = sim.GetUsers(ctx, testDevice)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "b", users[0].ID)

	require.NoError(t, sim.RemoveUsers(ctx, testDevice, nil))
	users, err = sim.GetUsers(ctx, testDevice)
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.Error(t, sim.EnrollUsers(ctx, testDevice, []*device.User{{}}))
}

func TestAuthConfig_RoundTrip(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	cfg, err := sim.GetAuthConfig(ctx, testDevice)
	require.NoError(t, err)
	assert.Equal(t, device.AuthModeBiometricPIN, cfg.Schedules[0].Mode)

	cfg.Schedules[0].Mode = device.AuthExtModeFingerprintOnly
	fresh, err := sim.GetAuthConfig(ctx, testDevice)
	require.NoError(t, err)
	assert.Equal(t, device.AuthModeBiometricPIN, fresh.Schedules[0].Mode)

	require.NoError(t, sim.SetAuthConfig(ctx, testDevice, cfg))
	fresh, err = sim.GetAuthConfig(ctx, testDevice)
	require.NoError(t, err)
	assert.Equal(t, device.AuthExtModeFingerprintOnly, fresh.Schedules[0].Mode)

	assert.Error(t, sim.SetAuthConfig(ctx, testDevice, nil))
}

func TestHashPIN(t *testing.T) {
	sim := newTestSimulator(t)

	hashed, err := sim.HashPIN(context.Background(), "123456")
	require.NoError(t, err)
	assert.Len(t, hashed, 32)

	hashed, err = sim.HashPIN(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, hashed)
}

func TestDetectFingerprint_Events(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	sub, err := sim.SubscribeEvents(ctx, testDevice)
	require.NoError(t, err)
	defer sub.Close()

	user := device.NewRandomUser()
	require.NoError(t, sim.EnrollUsers(ctx, testDevice, []*device.User{user}))
	assert.Equal(t, device.EventUserEnrollSuccess, nextEvent(t, sub).Code())

	require.NoError(t, sim.DetectFingerprint(ctx, testDevice, user.Fingers[0]))
	ev := nextEvent(t, sub)
	assert.Equal(t, device.EventAccessDenied, ev.Code())
	assert.Equal(t, user.ID, ev.UserID)

	require.NoError(t, sim.SetAuthConfig(ctx, testDevice, &device.AuthConfig{
		Schedules: []device.AuthSchedule{{ScheduleID: 1, Mode: device.AuthExtModeFingerprintOnly}},
	}))
	require.NoError(t, sim.DetectFingerprint(ctx, testDevice, user.Fingers[0]))
	ev = nextEvent(t, sub)
	assert.Equal(t, device.EventVerifySuccessFinger, ev.Code())
	assert.Equal(t, uint32(0x1300), ev.EventCode)
	assert.Equal(t, uint32(0x01), ev.SubCode)

	require.NoError(t, sim.DetectFingerprint(ctx, testDevice, device.FingerprintTemplate{Templates: [][]byte{[]byte("other")}}))
	assert.Equal(t, device.EventVerifyFail, nextEvent(t, sub).Code())

	assert.Error(t, sim.DetectFingerprint(ctx, testDevice, device.FingerprintTemplate{}))
}

func TestSubscribeEvents_CloseAndContext(t *testing.T) {
	sim := newTestSimulator(t)

	sub, err := sim.SubscribeEvents(context.Background(), testDevice)
	require.NoError(t, err)
	assert.Equal(t, 1, sim.Subscribers(testDevice))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, sim.Subscribers(testDevice))
	_, ok := <-sub.Events()
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = sim.SubscribeEvents(ctx, testDevice)
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return sim.Subscribers(testDevice) == 0 }, time.Second, 10*time.Millisecond)
}

func TestSubscribeEvents_Failures(t *testing.T) {
	sim := newTestSimulator(t, WithSubscribeFailures(1))

	_, err := sim.SubscribeEvents(context.Background(), testDevice)
	assert.Error(t, err)

	sub, err := sim.SubscribeEvents(context.Background(), testDevice)
	require.NoError(t, err)
	sub.Close()
}

func TestEmit(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sim := newTestSimulator(t, WithClock(func() time.Time { return fixed }))

	sub, err := sim.SubscribeEvents(context.Background(), testDevice)
	require.NoError(t, err)
	defer sub.Close()

	sim.Emit(device.Event{DeviceID: testDevice, EventCode: 0x1300, SubCode: 0x02, UserID: "u"})
	sim.Emit(device.Event{DeviceID: testDevice + 1, EventCode: 0x1300})

	ev := nextEvent(t, sub)
	assert.Equal(t, device.EventVerifySuccessFingerPIN, ev.Code())
	assert.Equal(t, fixed, ev.Timestamp)
	assert.NotZero(t, ev.ID)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}
