package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/expression"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

const (
	backupAuthConfig = "auth_config"
	backupUsers      = "users"
)

type instructionHandler func(ctx context.Context, stage string, args []string) error

func (e *Executor) instructionHandlers() map[string]instructionHandler {
	return map[string]instructionHandler{
		"set_target":                  e.setTargetIndex,
		"select_target_id":            e.selectTargetID,
		"require_capability":          e.requireCapability,
		"backup_auth_config":          e.backupAuthConfig,
		"backup_users":                e.backupUsers,
		"build_random_user":           e.buildRandomUser,
		"load_user_json":              e.loadUserJSON,
		"ensure_hashed_pin":           e.ensureHashedPIN,
		"ensure_fingerprint_template": e.ensureFingerprintTemplate,
		"restore_auth_config":         e.restoreAuthConfig,
		"restore_users":               e.restoreUsers,
		"run":                         e.runCommand,
		"assert_true":                 e.assertTrue,
		"assert_equal":                e.assertEqual,
		"log":                         e.logMessage,
	}
}

// Instructions returns the names of the supported instructions, sorted.
func Instructions() []string {
	handlers := (&Executor{}).instructionHandlers()
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func requireArgs(command string, args []string, n int, what string) error {
	if len(args) < n {
		return skills.NewError(skills.KindInvalidInstruction, "%s requires %s", command, what)
	}
	return nil
}

func (e *Executor) setTargetIndex(ctx context.Context, stage string, args []string) error {
	if err := requireArgs("set_target", args, 1, "a device index"); err != nil {
		return err
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return skills.WrapError(err, skills.KindInvalidInstruction, "invalid device index %q", args[0])
	}
	inv, err := e.sc.Inventory()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(inv.Devices) {
		return skills.NewError(skills.KindInvalidInstruction, "device index %d is out of range (%d devices)", index, len(inv.Devices))
	}
	e.setTarget(inv.Devices[index].ID)
	e.log(stage, fmt.Sprintf("device index %d -> ID %d", index, e.target), nil)
	return nil
}

func (e *Executor) selectTargetID(ctx context.Context, stage string, args []string) error {
	if err := requireArgs("select_target_id", args, 1, "a device ID"); err != nil {
		return err
	}
	id, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return skills.WrapError(err, skills.KindInvalidInstruction, "invalid device ID %q", args[0])
	}
	e.setTarget(uint32(id))
	e.log(stage, fmt.Sprintf("device ID %d selected", e.target), nil)
	return nil
}

// parseExpected accepts on/off in addition to the boolean spellings of
// skill arguments.
func parseExpected(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return skills.ToBool("expected", value)
}

func (e *Executor) requireCapability(ctx context.Context, stage string, args []string) error {
	if err := requireArgs("require_capability", args, 1, "a capability name"); err != nil {
		return err
	}
	attr := args[0]
	expected := true
	if len(args) > 1 {
		v, err := parseExpected(args[1])
		if err != nil {
			return err
		}
		expected = v
	}

	target, svc, err := e.targetService(ctx)
	if err != nil {
		return err
	}
	caps, err := svc.GetCapability(ctx, target)
	if err != nil {
		return errors.Wrapf(err, "failed to get capabilities of device %d", target)
	}

	actual, found := caps.Lookup(attr)
	if !found {
		return skills.NewError(skills.KindCapabilityMismatch, "capability %s: expected %t, got none", attr, expected)
	}
	if actual != expected {
		return skills.NewError(skills.KindCapabilityMismatch, "capability %s: expected %t, got %t", attr, expected, actual)
	}
	e.log(stage, fmt.Sprintf("capability %s confirmed (%t)", attr, actual), nil)
	return nil
}

func (e *Executor) backupAuthConfig(ctx context.Context, stage string, _ []string) error {
	target, svc, err := e.targetService(ctx)
	if err != nil {
		return err
	}
	cfg, err := svc.GetAuthConfig(ctx, target)
	if err != nil {
		return errors.Wrapf(err, "failed to back up auth config of device %d", target)
	}
	e.backups[backupAuthConfig] = cfg
	e.log(stage, "auth config backed up", nil)
	return nil
}

func (e *Executor) backupUsers(ctx context.Context, stage string, _ []string) error {
	target, svc, err := e.targetService(ctx)
	if err != nil {
		return err
	}
	users, err := svc.GetUsers(ctx, target)
	if err != nil {
		return errors.Wrapf(err, "failed to back up users of device %d", target)
	}
	if users == nil {
		users = []*device.User{}
	}
	e.backups[backupUsers] = users
	e.log(stage, fmt.Sprintf("%d user(s) backed up", len(users)), nil)
	return nil
}

func (e *Executor) buildRandomUser(_ context.Context, stage string, args []string) error {
	if err := requireArgs("build_random_user", args, 1, "a variable name"); err != nil {
		return err
	}
	user := device.NewRandomUser()
	e.variables[args[0]] = user
	e.log(stage, fmt.Sprintf("random user %s created (ID=%s)", args[0], user.ID), nil)
	return nil
}

func (e *Executor) loadUserJSON(_ context.Context, stage string, args []string) error {
	if err := requireArgs("load_user_json", args, 2, "a variable name and a path"); err != nil {
		return err
	}
	name, raw := args[0], args[1]
	path := raw
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.sc.BasePath(), path)
	}
	user, err := device.LoadUser(path)
	if err != nil {
		return err
	}
	e.variables[name] = user
	e.log(stage, fmt.Sprintf("user %s loaded from %s", name, raw), nil)
	return nil
}

func (e *Executor) ensureHashedPIN(ctx context.Context, stage string, args []string) error {
	if err := requireArgs("ensure_hashed_pin", args, 1, "a user variable"); err != nil {
		return err
	}
	user, err := e.userVariable(args[0])
	if err != nil {
		return err
	}
	svc, err := e.service(ctx)
	if err != nil {
		return err
	}
	hashed, err := svc.HashPIN(ctx, device.RandomPIN())
	if err != nil {
		return skills.WrapError(err, skills.KindHashFailure, "failed to hash PIN for %s", args[0])
	}
	if hashed == nil {
		return skills.NewError(skills.KindHashFailure, "hash PIN returned no value for %s", args[0])
	}
	user.PIN = hashed
	e.log(stage, fmt.Sprintf("hashed PIN set for %s", args[0]), nil)
	return nil
}

func (e *Executor) ensureFingerprintTemplate(_ context.Context, stage string, args []string) error {
	if err := requireArgs("ensure_fingerprint_template", args, 1, "a user variable"); err != nil {
		return err
	}
	user, err := e.userVariable(args[0])
	if err != nil {
		return err
	}
	device.EnsureFingerprint(user)
	e.log(stage, fmt.Sprintf("fingerprint template ensured for %s", args[0]), nil)
	return nil
}

func (e *Executor) restoreAuthConfig(ctx context.Context, stage string, _ []string) error {
	backup, ok := e.backups[backupAuthConfig].(*device.AuthConfig)
	if !ok {
		e.log(stage, "no auth config backup to restore", nil)
		return nil
	}
	target, svc, err := e.targetService(ctx)
	if err != nil {
		return err
	}
	if err := svc.SetAuthConfig(ctx, target, backup); err != nil {
		return errors.Wrapf(err, "failed to restore auth config of device %d", target)
	}
	e.log(stage, "auth config restored", nil)
	return nil
}

func (e *Executor) restoreUsers(ctx context.Context, stage string, _ []string) error {
	users, ok := e.backups[backupUsers].([]*device.User)
	if !ok {
		e.log(stage, "no user backup to restore", nil)
		return nil
	}
	target, svc, err := e.targetService(ctx)
	if err != nil {
		return err
	}
	if err := svc.RemoveUsers(ctx, target, nil); err != nil {
		return errors.Wrapf(err, "failed to clear users of device %d", target)
	}
	if len(users) > 0 {
		if err := svc.EnrollUsers(ctx, target, users); err != nil {
			return errors.Wrapf(err, "failed to restore users of device %d", target)
		}
	}
	e.log(stage, fmt.Sprintf("%d user(s) restored", len(users)), nil)
	return nil
}

func (e *Executor) runCommand(ctx context.Context, stage string, args []string) error {
	if err := requireArgs("run", args, 1, "a command"); err != nil {
		return err
	}
	line := strings.Join(args, " ")

	result, err := e.runner.Run(ctx, args, e.sc.BasePath())
	if result != nil {
		e.log(stage, "command executed", result.Fields())
	}
	if err != nil {
		if skills.IsKind(err, skills.KindCommandNotAllowed) {
			return err
		}
		return skills.WrapError(err, skills.KindCommandFailed, "command %q failed", line)
	}
	if result.ReturnCode != 0 {
		return skills.NewError(skills.KindCommandFailed, "command %q exited with code %d", line, result.ReturnCode)
	}
	return nil
}

func (e *Executor) assertTrue(ctx context.Context, stage string, args []string) error {
	if err := requireArgs("assert_true", args, 1, "an expression"); err != nil {
		return err
	}
	src := strings.Join(args, " ")
	value, err := e.evaluate(ctx, src)
	if err != nil {
		return err
	}
	if !expression.Truthy(value) {
		return skills.NewError(skills.KindAssertionFailed, "assert_true failed: %s", src)
	}
	e.log(stage, fmt.Sprintf("assert_true passed (%s)", src), nil)
	return nil
}

func (e *Executor) assertEqual(ctx context.Context, stage string, args []string) error {
	if err := requireArgs("assert_equal", args, 2, "two expressions"); err != nil {
		return err
	}
	left, err := e.evaluate(ctx, args[0])
	if err != nil {
		return err
	}
	right, err := e.evaluate(ctx, args[1])
	if err != nil {
		return err
	}
	if !expression.Equal(left, right) {
		return skills.NewError(skills.KindAssertionFailed, "assert_equal failed: %v != %v", left, right)
	}
	e.log(stage, fmt.Sprintf("assert_equal passed (%v == %v)", left, right), nil)
	return nil
}

func (e *Executor) logMessage(_ context.Context, stage string, args []string) error {
	e.log(stage, strings.Join(args, " "), nil)
	return nil
}

// targetService returns the target device and the service used to reach it.
func (e *Executor) targetService(ctx context.Context) (uint32, device.Service, error) {
	target, err := e.requireTarget(ctx)
	if err != nil {
		return 0, nil, err
	}
	svc, err := e.service(ctx)
	if err != nil {
		return 0, nil, err
	}
	return target, svc, nil
}

func (e *Executor) userVariable(name string) (*device.User, error) {
	v, ok := e.variables[name]
	if !ok {
		return nil, skills.NewError(skills.KindMissingVariable, "variable %q does not exist", name)
	}
	user, ok := v.(*device.User)
	if !ok {
		return nil, skills.NewError(skills.KindInvalidInstruction, "variable %q is not a user (%T)", name, v)
	}
	return user, nil
}
