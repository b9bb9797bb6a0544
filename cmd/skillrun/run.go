package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dhwoox/Final-RAG/pkg/presenter"
	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// RunConfig holds configuration for the run command
type RunConfig struct {
	Params []string
	Output string
}

// NewRunConfig creates a new RunConfig with default values
func NewRunConfig() *RunConfig {
	return &RunConfig{
		Params: nil,
		Output: outputText,
	}
}

// Validate validates the RunConfig and returns an error if invalid
func (c *RunConfig) Validate() error {
	return validateOutput(c.Output)
}

// Arguments parses the K=V parameters. Values stay strings; the skill
// coerces them to the declared parameter types.
func (c *RunConfig) Arguments() (map[string]any, error) {
	args := make(map[string]any, len(c.Params))
	for _, p := range c.Params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("invalid parameter %q, expected KEY=VALUE", p)
		}
		args[key] = value
	}
	return args, nil
}

var runCmd = &cobra.Command{
	Use:   "run <skill>",
	Short: "Run a registered skill",
	Long: `Run a registered skill with keyword arguments.

Examples:
  skillrun run list_devices --param only_connected=false
  skillrun run fingerprint_auth_success --param timeout=10 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config := getRunConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			return err
		}
		kwargs, err := config.Arguments()
		if err != nil {
			return err
		}

		sc, err := newSkillContext()
		if err != nil {
			return err
		}

		result, err := sc.Registry().Create(ctx, args[0], sc, kwargs)
		if err != nil && result == nil {
			result = &skilltypes.Result{Success: false, Message: err.Error()}
		}
		return presentResult(config.Output, result)
	},
}

func init() {
	defaults := NewRunConfig()
	runCmd.Flags().StringArrayP("param", "p", defaults.Params, "Skill argument as KEY=VALUE (repeatable)")
	runCmd.Flags().StringP("output", "o", defaults.Output, "Output format (text, json, yaml)")
}

// getRunConfigFromFlags extracts run configuration from command flags
func getRunConfigFromFlags(cmd *cobra.Command) *RunConfig {
	config := NewRunConfig()

	if params, err := cmd.Flags().GetStringArray("param"); err == nil {
		config.Params = params
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}

	return config
}

// presentResult prints result in the requested format and turns a failed
// result into errRunFailed.
func presentResult(format string, result *skilltypes.Result) error {
	if format == outputText {
		presenter.Outcome(result)
		presenter.Fields(result.Details)
	} else if err := writeStructured(os.Stdout, format, result); err != nil {
		return err
	}

	if !result.Success {
		return errRunFailed
	}
	return nil
}
