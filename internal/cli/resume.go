package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/howell-aikit/ideaforge/internal/project"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [project-id]",
	Short: "Resume an interrupted project",
	Long: `Resume a project from its persisted state.

Execution continues from the current phase; results of completed
phases are kept as-is.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	pctx, err := loadProject(store, id)
	if err != nil {
		return err
	}
	pctx.CodeBudget = cfg.CodebaseMaxChars

	switch pctx.CurrentPhase {
	case project.PhaseDone:
		return fmt.Errorf("project %s is already complete", pctx.ID)
	case project.PhaseAborted:
		return fmt.Errorf("project %s was aborted in phase %s: %s", pctx.ID, pctx.Abort.Phase, pctx.Abort.Reason)
	}

	if err := store.SetCurrent(pctx.ID); err != nil {
		return err
	}

	fmt.Printf("Resuming project %s from phase %s\n", pctx.ID, pctx.CurrentPhase)

	eng, err := buildEngine(store, newStdinConversation())
	if err != nil {
		return err
	}

	return runPipeline(cmd, eng, pctx)
}
