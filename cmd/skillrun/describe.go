package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhwoox/Final-RAG/pkg/presenter"
	"github.com/dhwoox/Final-RAG/pkg/skills"
	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

var describeCmd = &cobra.Command{
	Use:   "describe <skill>",
	Short: "Show the parameters of a skill",
	Long: `Show the description and parameters of a registered skill.

With --json the parameters are printed as a JSON schema object.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		sc, err := newSkillContext()
		if err != nil {
			return err
		}
		t, ok := sc.Registry().Get(args[0])
		if !ok {
			return skilltypes.NewError(skilltypes.KindUnknownSkill, "unknown skill %q", args[0])
		}

		if asJSON {
			return writeStructured(os.Stdout, outputJSON, skills.ParametersSchema(t))
		}

		presenter.Section(t.Name)
		presenter.Info(t.Description)
		if len(t.Parameters) == 0 {
			return nil
		}
		presenter.Info("")
		for _, p := range t.Parameters {
			line := fmt.Sprintf("  %s (%s)", p.Name, p.Type)
			if p.Required {
				line += " required"
			} else if p.Default != nil {
				line += fmt.Sprintf(" default=%v", p.Default)
			}
			if p.Description != "" {
				line += ": " + p.Description
			}
			presenter.Info(line)
		}
		return nil
	},
}

func init() {
	describeCmd.Flags().Bool("json", false, "Print the parameters as a JSON schema")
}
