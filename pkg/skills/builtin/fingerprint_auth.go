package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/monitor"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

const fingerprintMonitor = "fingerprint_auth"

type fingerprintAuthParams struct {
	Timeout            float64 `mapstructure:"timeout"`
	EventCode          int     `mapstructure:"event_code"`
	UserPayload        string  `mapstructure:"user_payload"`
	ReuseExistingUsers bool    `mapstructure:"reuse_existing_users"`
}

type fingerprintAuth struct {
	sc skills.Context
}

// FingerprintAuthSuccess enrolls a fingerprint user, switches the target
// device to fingerprint-only mode and waits for the authentication event.
func FingerprintAuthSuccess() skills.Type {
	return skills.Type{
		Name:        "fingerprint_auth_success",
		Description: "Enroll a fingerprint user, switch to fingerprint-only mode, and verify event 0x1301.",
		Parameters: []skills.Parameter{
			{
				Name:        "timeout",
				Type:        skills.TypeFloat,
				Default:     5.0,
				Description: "Seconds to wait for the expected event.",
			},
			{
				Name:        "event_code",
				Type:        skills.TypeInt,
				Default:     int(device.EventVerifySuccessFinger),
				Description: "Expected event code (eventCode | subCode) to validate.",
			},
			{
				Name:        "user_payload",
				Type:        skills.TypePath,
				Description: "Optional path to a user JSON payload.",
			},
			{
				Name:        "reuse_existing_users",
				Type:        skills.TypeBool,
				Default:     false,
				Description: "Keep pre-existing users on the device. When false they are restored after the run.",
			},
		},
		New: func(sc skills.Context) skills.Skill {
			return &fingerprintAuth{sc: sc}
		},
	}
}

func (s *fingerprintAuth) Run(ctx context.Context, args map[string]any) (*skills.Result, error) {
	var params fingerprintAuthParams
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	inv, err := s.sc.Inventory()
	if err != nil {
		return nil, err
	}
	if len(inv.Devices) == 0 {
		return nil, skills.NewError(skills.KindNoDevicesConfigured, "the device inventory does not list any devices to target")
	}
	target := inv.Devices[0].ID

	svc, err := s.sc.Service(ctx)
	if err != nil {
		return nil, err
	}

	caps, err := svc.GetCapability(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get capabilities of device %d", target)
	}
	if supported, _ := caps.Lookup("fingerprintInputSupported"); !supported {
		return nil, skills.NewError(skills.KindCapabilityMismatch, "fingerprint input is not supported on device %d", target)
	}

	backupAuth, err := svc.GetAuthConfig(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to back up auth config of device %d", target)
	}
	existing, err := svc.GetUsers(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to back up users of device %d", target)
	}

	log := logger.G(ctx).WithField("skill", "fingerprint_auth_success").WithField("device_id", target)

	replaced := false
	var user *device.User
	defer func() {
		if err := svc.SetAuthConfig(ctx, target, backupAuth); err != nil {
			log.WithError(err).Warn("failed to restore auth config")
		}
		if user != nil {
			if err := svc.RemoveUsers(ctx, target, []string{user.ID}); err != nil {
				log.WithError(err).Warn("failed to remove test user")
			}
		}
		if replaced && len(existing) > 0 {
			if err := svc.EnrollUsers(ctx, target, existing); err != nil {
				log.WithError(err).Warn("failed to restore users")
			}
		}
	}()

	if len(existing) > 0 && !params.ReuseExistingUsers {
		if err := svc.RemoveUsers(ctx, target, nil); err != nil {
			return nil, errors.Wrapf(err, "failed to clear users of device %d", target)
		}
		replaced = true
	}

	prepared, err := s.prepareUser(ctx, svc, params.UserPayload)
	if err != nil {
		return nil, err
	}
	if err := svc.EnrollUsers(ctx, target, []*device.User{prepared}); err != nil {
		return nil, errors.Wrap(err, "failed to enroll user for fingerprint scenario")
	}
	user = prepared

	current, err := svc.GetAuthConfig(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get auth config of device %d", target)
	}
	if err := svc.SetAuthConfig(ctx, target, device.FingerprintOnlyConfig(current, caps)); err != nil {
		return nil, errors.Wrap(err, "failed to switch to fingerprint-only mode")
	}

	settings := settingsOf(s.sc)
	adapter := monitor.NewAdapter(svc, monitor.WithSubscribeRetry(settings.Monitor.SubscribeAttempts, settings.Monitor.SubscribeDelay))
	defer func() {
		if err := adapter.StopAll(ctx); err != nil {
			log.WithError(err).Warn("failed to stop event monitor")
		}
	}()

	filter := monitor.Filter{EventCode: uint32(params.EventCode), DeviceID: target, UserID: user.ID}
	if _, err := adapter.Start(ctx, fingerprintMonitor, filter); err != nil {
		return nil, err
	}
	if err := svc.DetectFingerprint(ctx, target, user.Fingers[0]); err != nil {
		return nil, errors.Wrap(err, "detect fingerprint call failed")
	}

	timeout := time.Duration(params.Timeout * float64(time.Second))
	observed, err := adapter.Verify(ctx, fingerprintMonitor, timeout)
	if err != nil {
		return nil, err
	}

	description, err := svc.EventDescription(ctx, observed.Code())
	if err != nil {
		log.WithError(err).Debug("no description for observed event")
		description = ""
	}

	return &skills.Result{
		Success: true,
		Message: fmt.Sprintf("Fingerprint authentication succeeded for user %s.", user.ID),
		Details: map[string]any{
			"target_device":  target,
			"user_id":        user.ID,
			"expected_event": fmt.Sprintf("0x%x", params.EventCode),
			"observed_event": fmt.Sprintf("0x%x", observed.Code()),
			"description":    description,
		},
	}, nil
}

func (s *fingerprintAuth) prepareUser(ctx context.Context, svc device.Service, payload string) (*device.User, error) {
	var (
		user *device.User
		err  error
	)
	if payload != "" {
		user, err = device.LoadUser(resolvePath(s.sc, payload))
	} else {
		user, err = s.defaultUser(ctx)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &device.User{}
	}

	user.ID = device.RandomUserID()
	hashed, err := svc.HashPIN(ctx, device.RandomPIN())
	if err != nil {
		return nil, skills.WrapError(err, skills.KindHashFailure, "failed to hash PIN while preparing test user")
	}
	if hashed == nil {
		return nil, skills.NewError(skills.KindHashFailure, "hash PIN returned no value while preparing test user")
	}
	user.PIN = hashed
	device.EnsureFingerprint(user)
	return user, nil
}

// defaultUser loads the first user*.json file of the data directory, if any.
func (s *fingerprintAuth) defaultUser(ctx context.Context) (*device.User, error) {
	settings := settingsOf(s.sc)
	dir := resolvePath(s.sc, settings.DataDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "user*.json", doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search %s for user payloads", dir)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)

	path := filepath.Join(dir, matches[0])
	logger.G(ctx).WithField("path", path).Debug("using default user payload")
	return device.LoadUser(path)
}
