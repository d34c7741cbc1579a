package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/howell-aikit/ideaforge/internal/export"
)

var (
	exportProject string
	exportCommit  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Write generated files and artifacts to a directory",
	Long: `Materialize the project's generated code and deployment artifacts
into a directory. With --commit the directory becomes a git repository
and the export lands as a single commit.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "project ID (default: current project)")
	exportCmd.Flags().BoolVar(&exportCommit, "commit", false, "commit the export in a git repository")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	pctx, err := loadProject(store, exportProject)
	if err != nil {
		return err
	}

	exporter := export.New(logger)
	res, err := exporter.Export(pctx, args[0], exportCommit)
	if err != nil {
		return err
	}

	fmt.Println(okStyle.Render(fmt.Sprintf("Exported %d file(s) to %s", res.FileCount, res.Dir)))
	if res.CommitHash != "" {
		fmt.Printf("Commit: %s\n", res.CommitHash)
	}
	return nil
}
