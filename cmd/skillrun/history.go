package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/presenter"
	"github.com/dhwoox/Final-RAG/pkg/report"
	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// HistoryListConfig holds configuration for the history list command
type HistoryListConfig struct {
	Manifest   string
	FailedOnly bool
	Limit      int
	Output     string
}

// NewHistoryListConfig creates a new HistoryListConfig with default values
func NewHistoryListConfig() *HistoryListConfig {
	return &HistoryListConfig{
		Manifest:   "",
		FailedOnly: false,
		Limit:      20,
		Output:     outputText,
	}
}

// Validate validates the HistoryListConfig and returns an error if invalid
func (c *HistoryListConfig) Validate() error {
	if c.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", c.Limit)
	}
	return validateOutput(c.Output)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded manifest runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		config := getHistoryListConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			return err
		}

		store, err := openHistoryStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		reports, err := store.List(ctx, report.ListOptions{
			ManifestPath: config.Manifest,
			FailedOnly:   config.FailedOnly,
			Limit:        config.Limit,
		})
		if err != nil {
			return err
		}

		if config.Output != outputText {
			return writeStructured(os.Stdout, config.Output, reports)
		}
		if len(reports) == 0 {
			presenter.Info("No runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tSTATUS\tMANIFEST")
		for _, r := range reports {
			status := "ok"
			if !r.Success {
				status = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID[:8], r.StartedAt.Local().Format(time.DateTime),
				r.Duration().Round(time.Millisecond), status, r.ManifestPath)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded run",
	Long:  `Show one recorded run. A unique prefix of the id is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}

		store, err := openHistoryStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}

		if output != outputText {
			return writeStructured(os.Stdout, output, r)
		}

		presenter.Section(r.ManifestPath)
		presenter.Fields(map[string]any{
			"id":       r.ID,
			"name":     r.ManifestName,
			"started":  r.StartedAt.Local().Format(time.RFC3339),
			"duration": r.Duration().Round(time.Millisecond),
		})
		if logs, ok := r.Details["logs"].([]any); ok {
			for _, raw := range logs {
				if entry, ok := raw.(map[string]any); ok {
					presenter.Info(fmt.Sprintf("  [%v] %v", entry["stage"], entry["message"]))
				}
			}
		}
		presenter.Outcome(&skilltypes.Result{Success: r.Success, Message: r.Message})
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")

		store, err := openHistoryStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !yes {
			answer := presenter.Prompt(fmt.Sprintf("Delete run %s of %s?", r.ID, r.ManifestPath), "y", "N")
			if answer != "y" && answer != "Y" {
				presenter.Info("Aborted")
				return nil
			}
		}

		if err := store.Delete(ctx, r.ID); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Deleted run %s", r.ID))
		return nil
	},
}

func init() {
	defaults := NewHistoryListConfig()
	historyListCmd.Flags().String("manifest", defaults.Manifest, "Only show runs of this manifest path")
	historyListCmd.Flags().Bool("failed", defaults.FailedOnly, "Only show failed runs")
	historyListCmd.Flags().Int("limit", defaults.Limit, "Maximum number of runs to show (0 for all)")
	historyListCmd.Flags().StringP("output", "o", defaults.Output, "Output format (text, json, yaml)")

	historyShowCmd.Flags().StringP("output", "o", outputText, "Output format (text, json, yaml)")
	historyDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking for confirmation")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

// getHistoryListConfigFromFlags extracts history list configuration from command flags
func getHistoryListConfigFromFlags(cmd *cobra.Command) *HistoryListConfig {
	config := NewHistoryListConfig()

	if manifest, err := cmd.Flags().GetString("manifest"); err == nil {
		config.Manifest = manifest
	}
	if failed, err := cmd.Flags().GetBool("failed"); err == nil {
		config.FailedOnly = failed
	}
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}

	return config
}

// openHistoryStore opens the history database named by the settings,
// regardless of history.enabled.
func openHistoryStore(cmd *cobra.Command) (*report.Store, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return report.Open(cmd.Context(), settings.History.DBPath)
}
