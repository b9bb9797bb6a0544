package executor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/expression"
	"github.com/dhwoox/Final-RAG/pkg/monitor"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// Helpers lists the functions callable from expressions.
var Helpers = []string{
	"start_monitor",
	"verify_monitor",
	"observed_event",
	"observed_description",
	"enroll_user",
	"remove_user",
	"detect_fingerprint",
	"set_fingerprint_only_mode",
}

func (e *Executor) helpers(ctx context.Context) map[string]expression.Func {
	return map[string]expression.Func{
		"start_monitor": func(params ...any) (any, error) {
			return e.startMonitor(ctx, params)
		},
		"verify_monitor": func(params ...any) (any, error) {
			return e.verifyMonitor(ctx, params)
		},
		"observed_event": func(params ...any) (any, error) {
			return e.observedEvent(params)
		},
		"observed_description": func(params ...any) (any, error) {
			return e.observedDescription(ctx, params)
		},
		"enroll_user": func(params ...any) (any, error) {
			return e.withUser(ctx, "enroll_user", params, func(target uint32, svc device.Service, u *device.User) error {
				return svc.EnrollUsers(ctx, target, []*device.User{u})
			})
		},
		"remove_user": func(params ...any) (any, error) {
			return e.withUser(ctx, "remove_user", params, func(target uint32, svc device.Service, u *device.User) error {
				return svc.RemoveUsers(ctx, target, []string{u.ID})
			})
		},
		"detect_fingerprint": func(params ...any) (any, error) {
			return e.withUser(ctx, "detect_fingerprint", params, func(target uint32, svc device.Service, u *device.User) error {
				if len(u.Fingers) == 0 {
					return skills.NewError(skills.KindInvalidInstruction, "user %s has no fingerprint template", u.ID)
				}
				return svc.DetectFingerprint(ctx, target, u.Fingers[0])
			})
		},
		"set_fingerprint_only_mode": func(...any) (any, error) {
			return e.setFingerprintOnlyMode(ctx)
		},
	}
}

func helperArgs(name string, params []any, lo, hi int) error {
	if len(params) < lo || len(params) > hi {
		if lo == hi {
			return skills.NewError(skills.KindExpression, "%s takes %d argument(s), got %d", name, lo, len(params))
		}
		return skills.NewError(skills.KindExpression, "%s takes %d to %d arguments, got %d", name, lo, hi, len(params))
	}
	return nil
}

func stringArg(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", skills.NewError(skills.KindExpression, "%s expects a string, got %T", name, v)
	}
	return s, nil
}

// resolveUser accepts a user value or the name of a user variable.
func (e *Executor) resolveUser(v any) (*device.User, error) {
	switch u := v.(type) {
	case *device.User:
		if u == nil {
			return nil, skills.NewError(skills.KindExpression, "user is nil")
		}
		return u, nil
	case string:
		return e.userVariable(u)
	}
	return nil, skills.NewError(skills.KindExpression, "expected a user, got %T", v)
}

func (e *Executor) startMonitor(ctx context.Context, params []any) (any, error) {
	if err := helperArgs("start_monitor", params, 2, 3); err != nil {
		return nil, err
	}
	name, err := stringArg("start_monitor", params[0])
	if err != nil {
		return nil, err
	}
	code, err := expression.ToInt(params[1])
	if err != nil {
		return nil, skills.WrapError(err, skills.KindExpression, "invalid event code for monitor %q", name)
	}

	filter := monitor.Filter{EventCode: uint32(code)}
	if len(params) == 3 && params[2] != nil {
		// An unknown user variable leaves the monitor unfiltered by user.
		if u, err := e.resolveUser(params[2]); err == nil {
			filter.UserID = u.ID
		} else if !skills.IsKind(err, skills.KindMissingVariable) {
			return nil, err
		}
	}

	target, err := e.requireTarget(ctx)
	if err != nil {
		return nil, err
	}
	filter.DeviceID = target

	monitors, err := e.monitorAdapter(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := monitors.Start(ctx, name, filter); err != nil {
		return nil, err
	}
	if !slices.Contains(e.started, name) {
		e.started = append(e.started, name)
	}
	e.log(StageMonitor, fmt.Sprintf("%s monitor started (event=0x%x)", name, code), nil)
	return name, nil
}

func (e *Executor) verifyMonitor(ctx context.Context, params []any) (any, error) {
	if err := helperArgs("verify_monitor", params, 1, 2); err != nil {
		return nil, err
	}
	name, err := stringArg("verify_monitor", params[0])
	if err != nil {
		return nil, err
	}
	timeout := e.monitorTimeout
	if len(params) == 2 && params[1] != nil {
		seconds, err := expression.ToFloat(params[1])
		if err != nil {
			return nil, skills.WrapError(err, skills.KindExpression, "invalid timeout for monitor %q", name)
		}
		timeout = time.Duration(seconds * float64(time.Second))
	}

	if !slices.Contains(e.started, name) {
		return nil, skills.NewError(skills.KindUnknownMonitor, "monitor %q was not started", name)
	}
	monitors, err := e.monitorAdapter(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := monitors.Verify(ctx, name, timeout)
	if err != nil {
		return nil, err
	}
	e.monitorEvents[name] = ev
	e.log(StageMonitor, fmt.Sprintf("%s monitor received event 0x%x", name, ev.Code()), nil)
	return int(ev.Code()), nil
}

func (e *Executor) observedEvent(params []any) (any, error) {
	if err := helperArgs("observed_event", params, 1, 1); err != nil {
		return nil, err
	}
	name, err := stringArg("observed_event", params[0])
	if err != nil {
		return nil, err
	}
	ev, ok := e.monitorEvents[name]
	if !ok {
		return nil, nil
	}
	return int(ev.Code()), nil
}

func (e *Executor) observedDescription(ctx context.Context, params []any) (any, error) {
	if err := helperArgs("observed_description", params, 1, 1); err != nil {
		return nil, err
	}
	name, err := stringArg("observed_description", params[0])
	if err != nil {
		return nil, err
	}
	ev, ok := e.monitorEvents[name]
	if !ok {
		return nil, nil
	}
	svc, err := e.service(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := svc.EventDescription(ctx, ev.Code())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to describe event 0x%x", ev.Code())
	}
	return desc, nil
}

func (e *Executor) withUser(ctx context.Context, name string, params []any, call func(uint32, device.Service, *device.User) error) (any, error) {
	if err := helperArgs(name, params, 1, 1); err != nil {
		return nil, err
	}
	user, err := e.resolveUser(params[0])
	if err != nil {
		return nil, err
	}
	target, svc, err := e.targetService(ctx)
	if err != nil {
		return nil, err
	}
	if err := call(target, svc, user); err != nil {
		if _, ok := skills.KindOf(err); ok {
			return nil, err
		}
		return nil, errors.Wrapf(err, "%s failed for user %s", name, user.ID)
	}
	return true, nil
}

func (e *Executor) setFingerprintOnlyMode(ctx context.Context) (any, error) {
	target, svc, err := e.targetService(ctx)
	if err != nil {
		return nil, err
	}
	caps, err := svc.GetCapability(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get capabilities of device %d", target)
	}
	current, err := svc.GetAuthConfig(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get auth config of device %d", target)
	}
	if err := svc.SetAuthConfig(ctx, target, device.FingerprintOnlyConfig(current, caps)); err != nil {
		return nil, errors.Wrap(err, "failed to switch to fingerprint-only mode")
	}
	return true, nil
}
