package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/monitor"
)

type testContext struct {
	base     string
	settings *config.Settings
	inv      *device.Inventory
	svc      device.Service
}

func (c *testContext) BasePath() string                                { return c.base }
func (c *testContext) Settings() *config.Settings                      { return c.settings }
func (c *testContext) Inventory() (*device.Inventory, error)           { return c.inv, nil }
func (c *testContext) Service(context.Context) (device.Service, error) { return c.svc, nil }

type mockService struct {
	mock.Mock
}

var _ device.Service = (*mockService)(nil)

func (m *mockService) ListDevices(ctx context.Context) ([]device.DeviceInfo, error) {
	args := m.Called(ctx)
	devices, _ := args.Get(0).([]device.DeviceInfo)
	return devices, args.Error(1)
}

func (m *mockService) GetCapability(ctx context.Context, deviceID uint32) (device.Capabilities, error) {
	args := m.Called(ctx, deviceID)
	caps, _ := args.Get(0).(device.Capabilities)
	return caps, args.Error(1)
}

func (m *mockService) GetAuthConfig(ctx context.Context, deviceID uint32) (*device.AuthConfig, error) {
	args := m.Called(ctx, deviceID)
	cfg, _ := args.Get(0).(*device.AuthConfig)
	return cfg, args.Error(1)
}

func (m *mockService) SetAuthConfig(ctx context.Context, deviceID uint32, cfg *device.AuthConfig) error {
	return m.Called(ctx, deviceID, cfg).Error(0)
}

func (m *mockService) GetUsers(ctx context.Context, deviceID uint32) ([]*device.User, error) {
	args := m.Called(ctx, deviceID)
	users, _ := args.Get(0).([]*device.User)
	return users, args.Error(1)
}

func (m *mockService) EnrollUsers(ctx context.Context, deviceID uint32, users []*device.User) error {
	return m.Called(ctx, deviceID, users).Error(0)
}

func (m *mockService) RemoveUsers(ctx context.Context, deviceID uint32, userIDs []string) error {
	return m.Called(ctx, deviceID, userIDs).Error(0)
}

func (m *mockService) HashPIN(ctx context.Context, pin string) ([]byte, error) {
	args := m.Called(ctx, pin)
	hashed, _ := args.Get(0).([]byte)
	return hashed, args.Error(1)
}

func (m *mockService) DetectFingerprint(ctx context.Context, deviceID uint32, template device.FingerprintTemplate) error {
	return m.Called(ctx, deviceID, template).Error(0)
}

func (m *mockService) EventDescription(ctx context.Context, code uint32) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *mockService) SubscribeEvents(ctx context.Context, deviceID uint32) (device.Subscription, error) {
	args := m.Called(ctx, deviceID)
	sub, _ := args.Get(0).(device.Subscription)
	return sub, args.Error(1)
}

// stubMonitors resolves every verified monitor with a fixed event.
type stubMonitors struct {
	mu        sync.Mutex
	event     device.Event
	verifyErr error
	started   []monitor.Filter
	stops     atomic.Int32
}

func (s *stubMonitors) Start(_ context.Context, _ string, filter monitor.Filter) (*monitor.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, filter)
	return nil, nil
}

func (s *stubMonitors) Verify(context.Context, string, time.Duration) (device.Event, error) {
	if s.verifyErr != nil {
		return device.Event{}, s.verifyErr
	}
	return s.event, nil
}

func (s *stubMonitors) StopAll(context.Context) error {
	s.stops.Add(1)
	return nil
}

// countingService counts how often each subscription is closed.
type countingService struct {
	device.Service
	mu   sync.Mutex
	subs []*countingSubscription
}

type countingSubscription struct {
	device.Subscription
	closes atomic.Int32
}

func (c *countingSubscription) Close() error {
	c.closes.Add(1)
	return c.Subscription.Close()
}

func (c *countingService) SubscribeEvents(ctx context.Context, deviceID uint32) (device.Subscription, error) {
	sub, err := c.Service.SubscribeEvents(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	counted := &countingSubscription{Subscription: sub}
	c.mu.Lock()
	c.subs = append(c.subs, counted)
	c.mu.Unlock()
	return counted, nil
}
