// Package simulator provides an in-memory device.Service. It keeps users and
// authentication configuration per device and publishes the events a real
// device would raise to every open subscription.
package simulator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/device"
)

const subscriptionBuffer = 64

// DefaultCapabilities are reported for every simulated device unless its
// configuration overrides them.
func DefaultCapabilities() device.Capabilities {
	return device.Capabilities{
		"fingerprintInputSupported":        true,
		"pinInputSupported":                true,
		"cardInputSupported":               false,
		"faceInputSupported":               false,
		"extendedAuthSupported":            true,
		"extendedFingerprintOnlySupported": true,
	}
}

type deviceState struct {
	info      device.DeviceInfo
	caps      device.Capabilities
	auth      *device.AuthConfig
	users     map[string]*device.User
	userOrder []string
}

// Simulator is an in-memory device.Service.
type Simulator struct {
	mu          sync.Mutex
	devices     map[uint32]*deviceState
	order       []uint32
	subs        map[uint32]map[*subscription]struct{}
	nextEventID uint32

	subscribeFailures int
	now               func() time.Time
}

var _ device.Service = (*Simulator)(nil)

// Option configures a Simulator.
type Option func(*Simulator)

// WithSubscribeFailures makes the next n SubscribeEvents calls fail.
func WithSubscribeFailures(n int) Option {
	return func(s *Simulator) {
		s.subscribeFailures = n
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// New creates a simulator with the configured devices. When the config lists
// no devices, the inventory devices are simulated with default capabilities.
func New(cfg device.SimulatorConfig, inv *device.Inventory, opts ...Option) *Simulator {
	s := &Simulator{
		devices: make(map[uint32]*deviceState),
		subs:    make(map[uint32]map[*subscription]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	simulated := cfg.Devices
	if len(simulated) == 0 && inv != nil {
		for _, d := range inv.Devices {
			simulated = append(simulated, device.SimulatedDevice{ID: d.ID, Name: d.Name, IP: d.IP})
		}
	}
	for _, d := range simulated {
		s.AddDevice(d)
	}
	return s
}

// AddDevice adds or replaces a simulated device.
func (s *Simulator) AddDevice(d device.SimulatedDevice) {
	caps := DefaultCapabilities()
	for name, v := range d.Capabilities {
		caps[canonicalCapability(name)] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[d.ID]; !ok {
		s.order = append(s.order, d.ID)
	}
	s.devices[d.ID] = &deviceState{
		info: device.DeviceInfo{
			DeviceID:  d.ID,
			IPAddr:    d.IP,
			Connected: !d.Disconnected,
			Name:      d.Name,
		},
		caps: caps,
		auth: &device.AuthConfig{
			Schedules:    []device.AuthSchedule{{ScheduleID: 1, Mode: device.AuthModeBiometricPIN}},
			MatchTimeout: 5,
		},
		users: make(map[string]*device.User),
	}
}

// canonicalCapability restores the camel-cased spelling of a known
// capability whose key was lower-cased by a config loader.
func canonicalCapability(name string) string {
	for known := range DefaultCapabilities() {
		if strings.EqualFold(known, name) {
			return known
		}
	}
	return name
}

func (s *Simulator) lookup(deviceID uint32) (*deviceState, error) {
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, errors.Errorf("device %d not found", deviceID)
	}
	if !d.info.Connected {
		return nil, errors.Errorf("device %d is not connected", deviceID)
	}
	return d, nil
}

// ListDevices returns every simulated device in configuration order.
func (s *Simulator) ListDevices(_ context.Context) ([]device.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]device.DeviceInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.devices[id].info)
	}
	return out, nil
}

func (s *Simulator) GetCapability(_ context.Context, deviceID uint32) (device.Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(deviceID)
	if err != nil {
		return nil, err
	}
	out := make(device.Capabilities, len(d.caps))
	for k, v := range d.caps {
		out[k] = v
	}
	return out, nil
}

func (s *Simulator) GetAuthConfig(_ context.Context, deviceID uint32) (*device.AuthConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(deviceID)
	if err != nil {
		return nil, err
	}
	return d.auth.Clone(), nil
}

func (s *Simulator) SetAuthConfig(_ context.Context, deviceID uint32, config *device.AuthConfig) error {
	if config == nil {
		return errors.New("auth config is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(deviceID)
	if err != nil {
		return err
	}
	d.auth = config.Clone()
	return nil
}

func (s *Simulator) GetUsers(_ context.Context, deviceID uint32) ([]*device.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(deviceID)
	if err != nil {
		return nil, err
	}
	if len(d.userOrder) == 0 {
		return nil, nil
	}
	out := make([]*device.User, 0, len(d.userOrder))
	for _, id := range d.userOrder {
		out = append(out, d.users[id].Clone())
	}
	return out, nil
}

func (s *Simulator) EnrollUsers(_ context.Context, deviceID uint32, users []*device.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(deviceID)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u == nil || u.ID == "" {
			return errors.New("cannot enroll a user without an ID")
		}
	}
	for _, u := range users {
		if _, exists := d.users[u.ID]; !exists {
			d.userOrder = append(d.userOrder, u.ID)
		}
		d.users[u.ID] = u.Clone()
		s.publishLocked(deviceID, u.ID, device.EventUserEnrollSuccess)
	}
	return nil
}

func (s *Simulator) RemoveUsers(_ context.Context, deviceID uint32, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(deviceID)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		d.users = make(map[string]*device.User)
		d.userOrder = nil
		s.publishLocked(deviceID, "", device.EventUserDeleteAllSuccess)
		return nil
	}

	remove := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if _, ok := d.users[id]; !ok {
			continue
		}
		remove[id] = true
		delete(d.users, id)
		s.publishLocked(deviceID, id, device.EventUserDeleteSuccess)
	}
	kept := d.userOrder[:0]
	for _, id := range d.userOrder {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	d.userOrder = kept
	return nil
}

// HashPIN returns the SHA-256 digest of pin. An empty PIN hashes to nothing.
func (s *Simulator) HashPIN(_ context.Context, pin string) ([]byte, error) {
	if pin == "" {
		return nil, nil
	}
	sum := sha256.Sum256([]byte(pin))
	return sum[:], nil
}

// DetectFingerprint simulates a finger placed on the sensor. A template
// enrolled for some user raises a fingerprint verify success when the device
// is in a fingerprint-only mode and access denied otherwise. An unknown
// template raises a verify failure.
func (s *Simulator) DetectFingerprint(_ context.Context, deviceID uint32, template device.FingerprintTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(deviceID)
	if err != nil {
		return err
	}
	if len(template.Templates) == 0 || len(template.Templates[0]) == 0 {
		return errors.New("fingerprint template is empty")
	}

	userID := d.matchTemplate(template.Templates[0])
	switch {
	case userID == "":
		s.publishLocked(deviceID, "", device.EventVerifyFail)
	case d.fingerprintOnly():
		s.publishLocked(deviceID, userID, device.EventVerifySuccessFinger)
	default:
		s.publishLocked(deviceID, userID, device.EventAccessDenied)
	}
	return nil
}

func (d *deviceState) matchTemplate(scan []byte) string {
	for _, id := range d.userOrder {
		for _, finger := range d.users[id].Fingers {
			for _, t := range finger.Templates {
				if bytes.Equal(t, scan) {
					return id
				}
			}
		}
	}
	return ""
}

func (d *deviceState) fingerprintOnly() bool {
	if d.auth == nil || len(d.auth.Schedules) == 0 {
		return false
	}
	for _, sched := range d.auth.Schedules {
		if !sched.Mode.FingerprintOnly() {
			return false
		}
	}
	return true
}

func (s *Simulator) EventDescription(_ context.Context, code uint32) (string, error) {
	return device.DescribeEvent(code), nil
}

// Emit publishes an arbitrary event to the subscribers of ev.DeviceID.
func (s *Simulator) Emit(ev device.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	s.sendLocked(ev)
}

func (s *Simulator) publishLocked(deviceID uint32, userID string, code uint32) {
	s.nextEventID++
	s.sendLocked(device.Event{
		ID:        s.nextEventID,
		DeviceID:  deviceID,
		UserID:    userID,
		EventCode: code &^ 0xff,
		SubCode:   code & 0xff,
		Timestamp: s.now(),
	})
}

func (s *Simulator) sendLocked(ev device.Event) {
	for sub := range s.subs[ev.DeviceID] {
		select {
		case sub.events <- ev:
		default:
			// Slow subscriber; the event is dropped for it only.
		}
	}
}

// SubscribeEvents opens an event stream for deviceID. The stream is closed
// by Close or when ctx is done.
func (s *Simulator) SubscribeEvents(ctx context.Context, deviceID uint32) (device.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribeFailures > 0 {
		s.subscribeFailures--
		return nil, errors.Errorf("event stream for device %d unavailable", deviceID)
	}
	if _, err := s.lookup(deviceID); err != nil {
		return nil, err
	}

	sub := &subscription{
		sim:      s,
		deviceID: deviceID,
		events:   make(chan device.Event, subscriptionBuffer),
		done:     make(chan struct{}),
	}
	if s.subs[deviceID] == nil {
		s.subs[deviceID] = make(map[*subscription]struct{})
	}
	s.subs[deviceID][sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of open subscriptions for deviceID.
func (s *Simulator) Subscribers(deviceID uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[deviceID])
}

type subscription struct {
	sim      *Simulator
	deviceID uint32
	events   chan device.Event
	done     chan struct{}
	once     sync.Once
}

func (s *subscription) Events() <-chan device.Event {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.sim.mu.Lock()
		delete(s.sim.subs[s.deviceID], s)
		close(s.events)
		s.sim.mu.Unlock()
		close(s.done)
	})
	return nil
}
