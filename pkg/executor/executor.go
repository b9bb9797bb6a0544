// Package executor interprets parsed manifests. A run goes through six fixed
// phases: target selection, preparation, test data, workflow, verification,
// then recovery and commands. Monitors started during a run are always
// stopped before Execute returns.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/command"
	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/expression"
	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/manifest"
	"github.com/dhwoox/Final-RAG/pkg/monitor"
	"github.com/dhwoox/Final-RAG/pkg/telemetry"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// Stages that are not manifest sections.
const (
	StageTarget   = "target"
	StageWorkflow = "workflow"
	StageMonitor  = "monitor"
)

const successMessage = "manifest execution completed"

// Monitors is the event monitoring surface used by the executor.
// *monitor.Adapter implements it.
type Monitors interface {
	Start(ctx context.Context, name string, filter monitor.Filter) (*monitor.Handle, error)
	Verify(ctx context.Context, name string, timeout time.Duration) (device.Event, error)
	StopAll(ctx context.Context) error
}

var _ Monitors = (*monitor.Adapter)(nil)

// Executor runs one manifest once.
type Executor struct {
	sc       skills.Context
	manifest *manifest.Manifest
	settings *config.Settings

	svc            device.Service
	monitors       Monitors
	runner         *command.Runner
	monitorTimeout time.Duration
	handlers       map[string]instructionHandler

	hasTarget     bool
	target        uint32
	variables     map[string]any
	backups       map[string]any
	started       []string
	monitorEvents map[string]device.Event
	logs          []LogEntry
	cleaned       bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithMonitors replaces the monitor adapter built from the device service.
func WithMonitors(m Monitors) Option {
	return func(e *Executor) {
		e.monitors = m
	}
}

// WithRunner replaces the command runner built from the settings.
func WithRunner(r *command.Runner) Option {
	return func(e *Executor) {
		e.runner = r
	}
}

// WithTarget pre-selects the target device.
func WithTarget(deviceID uint32) Option {
	return func(e *Executor) {
		e.setTarget(deviceID)
	}
}

// WithMonitorTimeout sets the default timeout of verify_monitor.
func WithMonitorTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		e.monitorTimeout = timeout
	}
}

// WithVariables seeds the variable map.
func WithVariables(vars map[string]any) Option {
	return func(e *Executor) {
		for k, v := range vars {
			e.variables[k] = v
		}
	}
}

// New creates an Executor for m.
func New(sc skills.Context, m *manifest.Manifest, opts ...Option) (*Executor, error) {
	settings := sc.Settings()
	if settings == nil {
		settings = config.Default()
	}

	e := &Executor{
		sc:             sc,
		manifest:       m,
		settings:       settings,
		monitorTimeout: settings.Monitor.DefaultTimeout,
		variables:      make(map[string]any),
		backups:        make(map[string]any),
		monitorEvents:  make(map[string]device.Event),
	}
	e.handlers = e.instructionHandlers()
	for _, opt := range opts {
		opt(e)
	}

	if e.runner == nil {
		runner, err := command.NewRunner(
			command.WithTimeout(settings.Command.Timeout),
			command.WithAllowed(settings.Command.Allowed...),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create command runner")
		}
		e.runner = runner
	}
	return e, nil
}

type phase struct {
	name  string
	stage string
	run   func(ctx context.Context) error
}

// Execute runs every phase in order. On failure the returned Result carries
// Success=false, the error text and the details gathered so far, and the
// error is returned alongside it.
func (e *Executor) Execute(ctx context.Context) (*skills.Result, error) {
	ctx = logger.WithField(ctx, "manifest", e.manifest.Path)
	log := logger.G(ctx)
	log.Info("executing manifest")

	err := e.run(ctx)
	details := e.details(ctx)
	if err != nil {
		log.WithError(err).Error("manifest execution failed")
		return &skills.Result{Success: false, Message: err.Error(), Details: details}, err
	}

	log.Info("manifest execution completed")
	return &skills.Result{Success: true, Message: successMessage, Details: details}, nil
}

func (e *Executor) run(ctx context.Context) error {
	defer e.cleanup(ctx)

	m := e.manifest
	phases := []phase{
		{name: "target", stage: StageTarget, run: e.ensureDefaultTarget},
		{name: "preparation", stage: manifest.SectionPreparation, run: e.instructions(manifest.SectionPreparation, m.Preparation)},
		{name: "testdata", stage: manifest.SectionTestData, run: e.instructions(manifest.SectionTestData, m.TestData)},
		{name: "workflow", stage: StageWorkflow, run: e.runWorkflow},
		{name: "verification", stage: manifest.SectionVerification, run: e.instructions(manifest.SectionVerification, m.Verification)},
		{name: "recovery", stage: manifest.SectionRecovery, run: e.instructions(manifest.SectionRecovery, m.Recovery)},
		{name: "commands", stage: manifest.SectionCommands, run: e.instructions(manifest.SectionCommands, m.Commands)},
	}

	for _, p := range phases {
		if err := telemetry.WithSpan(ctx, "manifest.phase."+p.name, p.run, telemetry.PhaseAttributes(m.Path, p.stage)...); err != nil {
			return err
		}
	}
	return nil
}

// cleanup stops every monitor, even when ctx was cancelled. It runs once per
// executor; stop failures are logged and swallowed.
func (e *Executor) cleanup(ctx context.Context) {
	if e.cleaned {
		return
	}
	e.cleaned = true
	if e.monitors == nil {
		return
	}
	if err := e.monitors.StopAll(context.WithoutCancel(ctx)); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to stop monitors")
	}
}

func (e *Executor) instructions(stage string, list []manifest.Instruction) func(context.Context) error {
	return func(ctx context.Context) error {
		return e.runInstructions(ctx, stage, list)
	}
}

func (e *Executor) runInstructions(ctx context.Context, stage string, list []manifest.Instruction) error {
	for _, inst := range list {
		if len(inst) == 0 {
			continue
		}
		handler, ok := e.handlers[inst.Command()]
		if !ok {
			return skills.NewError(skills.KindUnknownInstruction, "unsupported instruction %q in %s", inst.Command(), stage)
		}

		logger.G(ctx).WithField("stage", stage).WithField("instruction", inst.String()).Debug("running instruction")
		if err := handler(ctx, stage, inst.Args()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runWorkflow(ctx context.Context) error {
	for _, step := range e.manifest.Workflow {
		if step.API == "" {
			continue
		}
		result, err := e.evaluate(ctx, step.API)
		if err != nil {
			return errors.Wrapf(err, "workflow step %s", step.Step)
		}
		e.log(StageWorkflow, fmt.Sprintf("%s - %s", step.Step, step.Description), map[string]any{"result": result})
	}
	return nil
}

func (e *Executor) ensureDefaultTarget(ctx context.Context) error {
	if e.hasTarget {
		return nil
	}
	inv, err := e.sc.Inventory()
	if err != nil {
		return err
	}
	if len(inv.Devices) == 0 {
		return skills.NewError(skills.KindNoDevicesConfigured, "the device inventory does not list any devices")
	}
	e.setTarget(inv.Devices[0].ID)
	e.log(StageTarget, fmt.Sprintf("default target device %d selected", e.target), nil)
	logger.G(ctx).WithField("device_id", e.target).Debug("default target selected")
	return nil
}

func (e *Executor) setTarget(deviceID uint32) {
	e.hasTarget = true
	e.target = deviceID
	e.variables["target_id"] = int(deviceID)
}

func (e *Executor) requireTarget(ctx context.Context) (uint32, error) {
	if !e.hasTarget {
		if err := e.ensureDefaultTarget(ctx); err != nil {
			return 0, err
		}
	}
	return e.target, nil
}

func (e *Executor) service(ctx context.Context) (device.Service, error) {
	if e.svc != nil {
		return e.svc, nil
	}
	svc, err := e.sc.Service(ctx)
	if err != nil {
		return nil, err
	}
	e.svc = svc
	return svc, nil
}

func (e *Executor) monitorAdapter(ctx context.Context) (Monitors, error) {
	if e.monitors != nil {
		return e.monitors, nil
	}
	svc, err := e.service(ctx)
	if err != nil {
		return nil, err
	}
	e.monitors = monitor.NewAdapter(svc,
		monitor.WithSubscribeRetry(e.settings.Monitor.SubscribeAttempts, e.settings.Monitor.SubscribeDelay))
	return e.monitors, nil
}

// evaluate runs one expression with the reserved bindings, the variables and
// the helper functions in scope.
func (e *Executor) evaluate(ctx context.Context, src string) (any, error) {
	target, err := e.requireTarget(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := e.service(ctx)
	if err != nil {
		return nil, err
	}

	reserved := map[string]any{
		"svc":       svc,
		"context":   e.sc,
		"target_id": int(target),
		"variables": e.variables,
	}
	evaluator := expression.New(expression.WithFunctions(e.helpers(ctx)))
	return evaluator.Evaluate(ctx, src, reserved, e.variables)
}

func (e *Executor) log(stage, message string, extra map[string]any) {
	e.logs = append(e.logs, LogEntry{Stage: stage, Message: message, Extra: extra})
}

func (e *Executor) details(ctx context.Context) map[string]any {
	observed := make(map[string]any, len(e.started))
	descriptions := make(map[string]any, len(e.started))
	for _, name := range e.started {
		ev, ok := e.monitorEvents[name]
		if !ok {
			observed[name] = nil
			descriptions[name] = nil
			continue
		}
		observed[name] = int(ev.Code())
		descriptions[name] = e.describe(ctx, ev.Code())
	}

	metadata := e.manifest.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	logs := e.logs
	if logs == nil {
		logs = []LogEntry{}
	}

	var target any
	if e.hasTarget {
		target = e.target
	}

	return map[string]any{
		"metadata":              metadata,
		"logs":                  logs,
		"observed_events":       observed,
		"observed_descriptions": descriptions,
		"target_id":             target,
	}
}

func (e *Executor) describe(ctx context.Context, code uint32) string {
	if e.svc != nil {
		if desc, err := e.svc.EventDescription(ctx, code); err == nil {
			return desc
		}
	}
	return device.DescribeEvent(code)
}

// Variables returns the variable map of the run.
func (e *Executor) Variables() map[string]any {
	return e.variables
}

// Logs returns the log entries recorded so far.
func (e *Executor) Logs() []LogEntry {
	return e.logs
}
