// Package device defines the device-control service consumed by skills and
// manifests, together with the value types exchanged with it: capabilities,
// authentication configuration, users, fingerprint templates and events.
//
// The concrete gateway client lives outside this repository; pkg/device/simulator
// provides an in-memory implementation of Service.
package device

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service is the device-control surface used by the executor, the monitor
// adapter and the built-in skills.
type Service interface {
	ListDevices(ctx context.Context) ([]DeviceInfo, error)
	GetCapability(ctx context.Context, deviceID uint32) (Capabilities, error)

	GetAuthConfig(ctx context.Context, deviceID uint32) (*AuthConfig, error)
	SetAuthConfig(ctx context.Context, deviceID uint32, config *AuthConfig) error

	GetUsers(ctx context.Context, deviceID uint32) ([]*User, error)
	EnrollUsers(ctx context.Context, deviceID uint32, users []*User) error
	// RemoveUsers deletes the given users. An empty userIDs removes every user.
	RemoveUsers(ctx context.Context, deviceID uint32, userIDs []string) error

	HashPIN(ctx context.Context, pin string) ([]byte, error)
	DetectFingerprint(ctx context.Context, deviceID uint32, template FingerprintTemplate) error

	EventDescription(ctx context.Context, code uint32) (string, error)
	// SubscribeEvents opens a live event stream for one device.
	SubscribeEvents(ctx context.Context, deviceID uint32) (Subscription, error)
}

// Subscription is an open event stream. Events is closed once the
// subscription is closed or the underlying stream ends.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// DeviceInfo is one entry of the service's device list.
type DeviceInfo struct {
	DeviceID  uint32 `json:"device_id" yaml:"device_id"`
	IPAddr    string `json:"ip" yaml:"ip"`
	Type      int    `json:"type" yaml:"type"`
	Connected bool   `json:"connected" yaml:"connected"`
	Name      string `json:"name" yaml:"name"`
}

// Capabilities maps capability attribute names (for example
// "fingerprintInputSupported") to their values.
type Capabilities map[string]bool

// Lookup returns the value of attr and whether the device reported it at all.
// Names are matched case-insensitively when there is no exact match, since
// config loaders lower-case map keys.
func (c Capabilities) Lookup(attr string) (bool, bool) {
	if v, ok := c[attr]; ok {
		return v, true
	}
	for name, v := range c {
		if strings.EqualFold(name, attr) {
			return v, true
		}
	}
	return false, false
}

// AuthMode is the authentication mode of one schedule entry.
type AuthMode int

// Authentication modes. The extended modes are only honoured by devices that
// report extendedAuthSupported.
const (
	AuthModeBiometricOnly      AuthMode = 0
	AuthModeBiometricPIN       AuthMode = 1
	AuthModeCardOnly           AuthMode = 2
	AuthModeCardBiometric      AuthMode = 3
	AuthModeIDBiometric        AuthMode = 4
	AuthModeIDPIN              AuthMode = 5
	AuthExtModeFaceOnly        AuthMode = 11
	AuthExtModeFingerprintOnly AuthMode = 12
	AuthExtModeFingerprintPIN  AuthMode = 13
)

var authModeNames = map[AuthMode]string{
	AuthModeBiometricOnly:      "biometric_only",
	AuthModeBiometricPIN:       "biometric_pin",
	AuthModeCardOnly:           "card_only",
	AuthModeCardBiometric:      "card_biometric",
	AuthModeIDBiometric:        "id_biometric",
	AuthModeIDPIN:              "id_pin",
	AuthExtModeFaceOnly:        "ext_face_only",
	AuthExtModeFingerprintOnly: "ext_fingerprint_only",
	AuthExtModeFingerprintPIN:  "ext_fingerprint_pin",
}

func (m AuthMode) String() string {
	if name, ok := authModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("auth_mode(%d)", int(m))
}

// FingerprintOnly reports whether the mode accepts a fingerprint alone.
func (m AuthMode) FingerprintOnly() bool {
	return m == AuthModeBiometricOnly || m == AuthExtModeFingerprintOnly
}

// AuthSchedule binds an authentication mode to a schedule.
type AuthSchedule struct {
	ScheduleID uint32   `json:"schedule_id" yaml:"schedule_id"`
	Mode       AuthMode `json:"mode" yaml:"mode"`
}

// AuthConfig is the device-wide authentication configuration.
type AuthConfig struct {
	Schedules    []AuthSchedule `json:"schedules" yaml:"schedules"`
	UseGlobalAPB bool           `json:"use_global_apb" yaml:"use_global_apb"`
	MatchTimeout int            `json:"match_timeout" yaml:"match_timeout"`
}

// Clone returns a deep copy so backups are not aliased by later edits.
func (c *AuthConfig) Clone() *AuthConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Schedules = append([]AuthSchedule(nil), c.Schedules...)
	return &out
}

// FingerprintTemplate holds the scanned templates of one finger.
type FingerprintTemplate struct {
	Index     int      `json:"index" yaml:"index"`
	Templates [][]byte `json:"templates" yaml:"templates"`
}

// User is a device user record.
type User struct {
	ID      string                `json:"id" yaml:"id"`
	Name    string                `json:"name,omitempty" yaml:"name,omitempty"`
	PIN     []byte                `json:"pin,omitempty" yaml:"pin,omitempty"`
	Fingers []FingerprintTemplate `json:"fingers,omitempty" yaml:"fingers,omitempty"`
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PIN = append([]byte(nil), u.PIN...)
	out.Fingers = make([]FingerprintTemplate, len(u.Fingers))
	for i, f := range u.Fingers {
		templates := make([][]byte, len(f.Templates))
		for j, t := range f.Templates {
			templates[j] = append([]byte(nil), t...)
		}
		out.Fingers[i] = FingerprintTemplate{Index: f.Index, Templates: templates}
	}
	return &out
}

// HasFingerprint reports whether the user carries at least one non-empty template.
func (u *User) HasFingerprint() bool {
	for _, f := range u.Fingers {
		for _, t := range f.Templates {
			if len(t) > 0 {
				return true
			}
		}
	}
	return false
}

// Event is one device event as delivered by a subscription.
type Event struct {
	ID        uint32    `json:"id" yaml:"id"`
	DeviceID  uint32    `json:"device_id" yaml:"device_id"`
	UserID    string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	EventCode uint32    `json:"event_code" yaml:"event_code"`
	SubCode   uint32    `json:"sub_code" yaml:"sub_code"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Code is the full event code, event code and sub code combined.
func (e Event) Code() uint32 {
	return e.EventCode | e.SubCode
}
