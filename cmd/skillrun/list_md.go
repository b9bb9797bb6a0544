package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/manifest"
)

var listMdCmd = &cobra.Command{
	Use:   "list-md [path]",
	Short: "List the manifests under a directory",
	Long: `List the Markdown manifests found under path (default: the base path).

Files are matched with a doublestar pattern, "**/*.md" unless --pattern is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pattern, _ := cmd.Flags().GetString("pattern")

		sc, err := newSkillContext()
		if err != nil {
			return err
		}
		root := sc.BasePath()
		if len(args) == 1 {
			root = sc.Settings().Resolve(args[0])
		}

		paths, err := manifest.DiscoverPattern(root, pattern)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tNAME\tDESCRIPTION")
		for _, path := range paths {
			m, err := manifest.Parse(ctx, path)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("path", path).Warn("skipping unreadable manifest")
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", path, m.Name(), m.Description())
		}
		return w.Flush()
	},
}

func init() {
	listMdCmd.Flags().String("pattern", manifest.DefaultPattern, "Doublestar pattern selecting manifest files")
}
