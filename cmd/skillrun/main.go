package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/presenter"
)

// errRunFailed reports a run whose failure has already been presented.
var errRunFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:   "skillrun",
	Short: "Run device automation manifests and skills",
	Long: `skillrun interprets Markdown test manifests against a device-control service.

A manifest lists preparation, test data, workflow, verification, recovery and
command sections. skillrun executes them in that order, waits for device events,
and always releases the event monitors it started.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return err
		}
		presenter.SetQuiet(viper.GetBool("quiet"))
		return startTracing(cmd, args)
	},
}

func init() {
	defaults := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.String("base-path", defaults.BasePath, "Repository root relative paths are resolved against")
	flags.String("config", defaults.ConfigPath, "Device service configuration file")
	flags.String("environ", defaults.EnvironPath, "Device inventory file")
	flags.String("log-level", defaults.LogLevel, "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", defaults.LogFormat, "Log format (fmt or json)")
	flags.BoolP("quiet", "q", false, "Only print failures and structured output")

	viper.BindPFlag("base_path", flags.Lookup("base-path"))
	viper.BindPFlag("config_path", flags.Lookup("config"))
	viper.BindPFlag("environ_path", flags.Lookup("environ"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("quiet", flags.Lookup("quiet"))

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listMdCmd)
	rootCmd.AddCommand(describeMdCmd)
	rootCmd.AddCommand(runMdCmd)
	rootCmd.AddCommand(watchMdCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := config.Init(viper.GetViper()); err != nil {
		presenter.Error(err, "Failed to load configuration")
		os.Exit(1)
	}

	ctx := context.Background()
	err := rootCmd.ExecuteContext(ctx)
	stopTracing(ctx, err)

	if err != nil {
		if !errors.Is(err, errRunFailed) {
			presenter.Error(err, "")
		}
		os.Exit(1)
	}
}
