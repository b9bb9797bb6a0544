package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhwoox/Final-RAG/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of skillrun, as text or with --output in JSON or YAML.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		info := version.Get()

		var (
			out string
			err error
		)
		switch output {
		case outputText:
			out = info.String()
		case outputJSON:
			out, err = info.JSON()
		case outputYAML:
			out, err = info.YAML()
		default:
			return validateOutput(output)
		}
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	versionCmd.Flags().StringP("output", "o", outputText, "Output format (text, json, yaml)")
}
