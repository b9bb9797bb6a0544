package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhwoox/Final-RAG/pkg/manifest"
	"github.com/dhwoox/Final-RAG/pkg/presenter"
)

var describeMdCmd = &cobra.Command{
	Use:   "describe-md <path>",
	Short: "Show the parsed form of a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}

		sc, err := newSkillContext()
		if err != nil {
			return err
		}
		m, err := manifest.Parse(ctx, sc.Settings().Resolve(args[0]))
		if err != nil {
			return err
		}

		if output != outputText {
			return writeStructured(os.Stdout, output, m)
		}
		describeManifest(m)
		return nil
	},
}

func init() {
	describeMdCmd.Flags().StringP("output", "o", outputText, "Output format (text, json, yaml)")
}

func describeManifest(m *manifest.Manifest) {
	title := m.Name()
	if title == "" {
		title = m.Path
	}
	presenter.Section(title)
	if desc := m.Description(); desc != "" {
		presenter.Info(desc)
	}

	metadata := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		metadata[k] = v
	}
	presenter.Fields(metadata)

	describeInstructions("Preparation", m.Preparation)
	describeInstructions("Test data", m.TestData)
	if len(m.Workflow) > 0 {
		presenter.Info("")
		presenter.Section("Workflow")
		for _, step := range m.Workflow {
			presenter.Info(fmt.Sprintf("  %s. %s  %s", step.Step, step.Description, step.API))
		}
	}
	describeInstructions("Verification", m.Verification)
	describeInstructions("Recovery", m.Recovery)
	describeInstructions("Commands", m.Commands)
}

func describeInstructions(name string, instructions []manifest.Instruction) {
	if len(instructions) == 0 {
		return
	}
	presenter.Info("")
	presenter.Section(name)
	for _, inst := range instructions {
		presenter.Info("  - " + inst.String())
	}
}
