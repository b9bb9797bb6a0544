package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/executor"
	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/manifest"
	"github.com/dhwoox/Final-RAG/pkg/presenter"
	"github.com/dhwoox/Final-RAG/pkg/report"
	"github.com/dhwoox/Final-RAG/pkg/skillctx"
	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// RunMdConfig holds configuration for the run-md command
type RunMdConfig struct {
	Output    string
	NoHistory bool
	Pattern   string
}

// NewRunMdConfig creates a new RunMdConfig with default values
func NewRunMdConfig() *RunMdConfig {
	return &RunMdConfig{
		Output:    outputText,
		NoHistory: false,
		Pattern:   manifest.DefaultPattern,
	}
}

// Validate validates the RunMdConfig and returns an error if invalid
func (c *RunMdConfig) Validate() error {
	return validateOutput(c.Output)
}

// manifestRun is the outcome of one manifest execution.
type manifestRun struct {
	Path     string             `json:"path" yaml:"path"`
	ReportID string             `json:"report_id,omitempty" yaml:"report_id,omitempty"`
	Result   *skilltypes.Result `json:"result" yaml:"result"`

	logs []executor.LogEntry
}

var runMdCmd = &cobra.Command{
	Use:   "run-md <path>...",
	Short: "Execute manifests",
	Long: `Execute one or more Markdown manifests. A directory runs every manifest
below it in path order.

Each run is recorded in the run history unless --no-history is given or
history.enabled is false.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		config := getRunMdConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			return err
		}

		sc, err := newSkillContext()
		if err != nil {
			return err
		}

		var paths []string
		for _, arg := range args {
			found, err := manifest.DiscoverPattern(sc.Settings().Resolve(arg), config.Pattern)
			if err != nil {
				return err
			}
			paths = append(paths, found...)
		}

		store, err := openHistory(ctx, sc.Settings(), config.NoHistory)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		runs, err := runManifests(ctx, sc, paths, store)
		if err != nil {
			return err
		}
		failed := false
		for _, run := range runs {
			failed = failed || !run.Result.Success
		}

		if config.Output == outputText {
			for _, run := range runs {
				presentRun(run)
			}
			if len(runs) > 1 {
				presentSummary(runs)
			}
		} else {
			var out any = runs
			if len(runs) == 1 {
				out = runs[0]
			}
			if err := writeStructured(os.Stdout, config.Output, out); err != nil {
				return err
			}
		}

		if failed {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	defaults := NewRunMdConfig()
	runMdCmd.Flags().StringP("output", "o", defaults.Output, "Output format (text, json, yaml)")
	runMdCmd.Flags().Bool("no-history", defaults.NoHistory, "Do not record the run in the history database")
	runMdCmd.Flags().String("pattern", defaults.Pattern, "Doublestar pattern selecting manifests in directories")
}

// getRunMdConfigFromFlags extracts run-md configuration from command flags
func getRunMdConfigFromFlags(cmd *cobra.Command) *RunMdConfig {
	config := NewRunMdConfig()

	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if noHistory, err := cmd.Flags().GetBool("no-history"); err == nil {
		config.NoHistory = noHistory
	}
	if pattern, err := cmd.Flags().GetString("pattern"); err == nil {
		config.Pattern = pattern
	}

	return config
}

// openHistory opens the run history store, or returns nil when history is
// disabled.
func openHistory(ctx context.Context, settings *config.Settings, disabled bool) (*report.Store, error) {
	if disabled || !settings.History.Enabled {
		return nil, nil
	}
	return report.Open(ctx, settings.History.DBPath)
}

// runManifests runs paths in order. Once ctx is cancelled no further
// manifest is started; the runs finished so far are returned with the
// context error.
func runManifests(ctx context.Context, sc *skillctx.Context, paths []string, store *report.Store) ([]manifestRun, error) {
	var runs []manifestRun
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return runs, errors.Wrap(err, "run-md interrupted")
		}
		run, err := runManifest(ctx, sc, path, store)
		if err != nil {
			return runs, err
		}
		runs = append(runs, run)
	}
	if err := ctx.Err(); err != nil {
		return runs, errors.Wrap(err, "run-md interrupted")
	}
	return runs, nil
}

// runManifest parses and executes the manifest at path. A failed execution
// is reported through the returned run; errors mean the manifest could not
// be run at all.
func runManifest(ctx context.Context, sc *skillctx.Context, path string, store *report.Store) (manifestRun, error) {
	m, err := manifest.Parse(ctx, path)
	if err != nil {
		return manifestRun{}, err
	}
	ex, err := executor.New(sc, m)
	if err != nil {
		return manifestRun{}, err
	}

	started := time.Now()
	result, _ := ex.Execute(ctx)
	finished := time.Now()

	run := manifestRun{Path: path, Result: result, logs: ex.Logs()}

	if store != nil {
		// An interrupted run is still recorded.
		saved, err := store.Save(context.WithoutCancel(ctx), report.New(path, m.Name(), result, started, finished))
		if err != nil {
			logger.G(ctx).WithError(err).WithField("path", path).Warn("failed to record run history")
		} else {
			run.ReportID = saved.ID
		}
	}
	return run, nil
}

func presentRun(run manifestRun) {
	presenter.Section(run.Path)
	for _, entry := range run.logs {
		presenter.Info(fmt.Sprintf("  [%s] %s", entry.Stage, entry.Message))
	}

	fields := map[string]any{}
	if run.ReportID != "" {
		fields["report"] = run.ReportID
	}
	for _, key := range []string{"target_id", "observed_events"} {
		if v, ok := run.Result.Details[key]; ok && v != nil {
			fields[key] = v
		}
	}
	presenter.Fields(fields)
	presenter.Outcome(run.Result)
	presenter.Info("")
}

func presentSummary(runs []manifestRun) {
	passed := 0
	for _, run := range runs {
		if run.Result.Success {
			passed++
		}
	}
	presenter.Separator()
	msg := fmt.Sprintf("%d of %d manifests passed", passed, len(runs))
	if passed == len(runs) {
		presenter.Success(msg)
		return
	}
	presenter.Warning(msg)
}
