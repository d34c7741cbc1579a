package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refineProject string

var refineCmd = &cobra.Command{
	Use:   "refine <spec> <file>...",
	Short: "Run a sub-injection against generated files",
	Long: `Run a named sub-injection (RefactorCode, OptimizeCode,
AddErrorHandling, AddSecurity) against one or more generated files.
Each file is replaced wholesale with the refined version.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRefine,
}

func init() {
	refineCmd.Flags().StringVarP(&refineProject, "project", "p", "", "project ID (default: current project)")
}

func runRefine(cmd *cobra.Command, args []string) error {
	specID := args[0]
	paths := args[1:]

	store, err := buildStore()
	if err != nil {
		return err
	}

	pctx, err := loadProject(store, refineProject)
	if err != nil {
		return err
	}
	pctx.CodeBudget = cfg.CodebaseMaxChars

	if len(pctx.GeneratedCode) == 0 {
		return fmt.Errorf("project %s has no generated code to refine", pctx.ID)
	}

	eng, err := buildEngine(store, newStdinConversation())
	if err != nil {
		return err
	}

	if err := eng.RefineFiles(cmd.Context(), pctx, specID, paths); err != nil {
		return err
	}

	fmt.Println(okStyle.Render(fmt.Sprintf("Refined %d file(s) with %s.", len(paths), specID)))
	return nil
}
