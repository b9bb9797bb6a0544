// Package command runs external commands for the `run` instruction, capturing
// their output and exit status.
package command

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// Result is the outcome of one command.
type Result struct {
	ReturnCode int      `json:"returncode"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	Command    []string `json:"command"`
	Cwd        string   `json:"cwd"`
}

// Fields returns the result as log entry fields.
func (r *Result) Fields() map[string]any {
	return map[string]any{
		"returncode": r.ReturnCode,
		"stdout":     r.Stdout,
		"stderr":     r.Stderr,
		"command":    r.Command,
		"cwd":        r.Cwd,
	}
}

// Runner executes commands.
type Runner struct {
	timeout  time.Duration
	patterns []string
	globs    []glob.Glob
}

// Option configures a Runner.
type Option func(*Runner) error

// WithTimeout bounds every command. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) error {
		r.timeout = timeout
		return nil
	}
}

// WithAllowed restricts commands to those whose space-joined command line
// matches one of the glob patterns. No patterns allow everything.
func WithAllowed(patterns ...string) Option {
	return func(r *Runner) error {
		for _, pattern := range patterns {
			g, err := glob.Compile(pattern)
			if err != nil {
				return errors.Wrapf(err, "invalid command pattern %q", pattern)
			}
			r.patterns = append(r.patterns, pattern)
			r.globs = append(r.globs, g)
		}
		return nil
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) (*Runner, error) {
	r := &Runner{}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Allowed reports whether the command line may run.
func (r *Runner) Allowed(args []string) bool {
	if len(r.globs) == 0 {
		return true
	}
	line := strings.Join(args, " ")
	for _, g := range r.globs {
		if g.Match(line) {
			return true
		}
	}
	return false
}

// Run executes args[0] with the remaining arguments in dir. A non-zero exit
// status is reported through Result.ReturnCode, not as an error; errors mean
// the command was refused, could not start or timed out.
func (r *Runner) Run(ctx context.Context, args []string, dir string) (*Result, error) {
	if len(args) == 0 {
		return nil, skills.NewError(skills.KindInvalidInstruction, "no command given")
	}
	if !r.Allowed(args) {
		return nil, skills.NewError(skills.KindCommandNotAllowed,
			"command %q does not match any allowed pattern %v", strings.Join(args, " "), r.patterns)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	killProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := logger.G(ctx).WithField("command", args).WithField("cwd", dir)
	log.Debug("running command")

	err := cmd.Run()
	result := &Result{
		ReturnCode: cmd.ProcessState.ExitCode(),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Command:    append([]string(nil), args...),
		Cwd:        dir,
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, errors.Errorf("command %q timed out after %s", args[0], r.timeout)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "failed to run %q", args[0])
		}
	}

	log.WithField("returncode", result.ReturnCode).Debug("command finished")
	return result, nil
}
