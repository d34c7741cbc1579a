package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/howell-aikit/ideaforge/internal/engine"
	"github.com/howell-aikit/ideaforge/internal/project"
)

var newWrappers []string

var newCmd = &cobra.Command{
	Use:   "new <idea>",
	Short: "Start a new project from an idea",
	Long: `Start a new pipeline run from an informal software idea.

The idea is refined into requirements, an architecture, code, a test
review, and deployment artifacts. When the idea is too vague, the
requirements phase asks follow-up questions on the terminal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringSliceVarP(&newWrappers, "wrapper", "w", nil, "prompt wrapper to apply (repeatable)")
}

func runNew(cmd *cobra.Command, args []string) error {
	idea := strings.TrimSpace(strings.Join(args, " "))
	if idea == "" {
		return fmt.Errorf("the idea must not be empty")
	}

	store, err := buildStore()
	if err != nil {
		return err
	}

	wrappers := newWrappers
	if len(wrappers) == 0 {
		wrappers = cfg.Wrappers
	}

	pctx, err := store.Create(idea, wrappers)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	pctx.CodeBudget = cfg.CodebaseMaxChars

	fmt.Printf("Project %s created\n", pctx.ID)

	eng, err := buildEngine(store, newStdinConversation())
	if err != nil {
		return err
	}

	return runPipeline(cmd, eng, pctx)
}

// runPipeline drives the engine and reports the outcome on the
// terminal; shared by new and resume
func runPipeline(cmd *cobra.Command, eng *engine.Engine, pctx *project.Context) error {
	err := eng.Run(cmd.Context(), pctx)

	var abortErr *engine.AbortError
	if errors.As(err, &abortErr) {
		fmt.Println(failStyle.Render(fmt.Sprintf("Run aborted in phase %s: %s", abortErr.Abort.Phase, abortErr.Abort.Reason)))
		return err
	}
	if err != nil {
		return err
	}

	fmt.Println(okStyle.Render("Pipeline complete."))
	fmt.Printf("  Generated files:      %d\n", len(pctx.GeneratedCode))
	fmt.Printf("  Deployment artifacts: %d\n", len(pctx.DeploymentArtifacts))
	if pctx.TestResults != nil {
		fmt.Printf("  Test review:          %s\n", pctx.TestResults.Status)
	}
	fmt.Printf("\nRun 'ideaforge export <dir>' to write the project to disk.\n")
	return nil
}
