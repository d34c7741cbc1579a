package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/howell-aikit/ideaforge/internal/project"
)

var statusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show status of a project",
	Long:  `Show the current phase, phase history, and any abort record of a project.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Project: %s\n", pctx.ID)
	fmt.Printf("Idea: %s\n", pctx.InitialRequest)
	fmt.Printf("Phase: %s\n", pctx.CurrentPhase.Title())
	if len(pctx.SelectedWrappers) > 0 {
		fmt.Printf("Wrappers: %s\n", strings.Join(pctx.SelectedWrappers, ", "))
	}
	fmt.Printf("Created: %s\n", pctx.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", pctx.UpdatedAt.Format("2006-01-02 15:04:05"))

	if pctx.Abort != nil {
		fmt.Printf("\n%s\n", failStyle.Render(fmt.Sprintf("Aborted in %s (%s): %s",
			pctx.Abort.Phase, pctx.Abort.Kind, pctx.Abort.Reason)))
	}

	if len(pctx.TechnologyStack) > 0 {
		fmt.Printf("\nTechnology stack: %s\n", pctx.StackList())
	}
	if len(pctx.GeneratedCode) > 0 {
		fmt.Printf("\nGenerated files (%d):\n", len(pctx.GeneratedCode))
		for _, p := range pctx.FileList() {
			fmt.Printf("  %s\n", p)
		}
	}
	if pctx.TestResults != nil {
		fmt.Printf("\nTest review: %s\n", pctx.TestResults.Status)
		if pctx.TestResults.Summary != "" {
			fmt.Printf("  %s\n", pctx.TestResults.Summary)
		}
		for _, bug := range pctx.TestResults.BugsFound {
			fmt.Printf("  bug: %s\n", bug)
		}
	}
	if len(pctx.DeploymentArtifacts) > 0 {
		fmt.Printf("\nDeployment artifacts (%d):\n", len(pctx.DeploymentArtifacts))
		for p := range pctx.DeploymentArtifacts {
			fmt.Printf("  %s\n", p)
		}
	}

	if len(pctx.PhaseHistory) > 0 {
		fmt.Printf("\nHistory:\n")
		for _, rec := range pctx.PhaseHistory {
			icon := recordIcon(rec.Status)
			line := fmt.Sprintf("  %s %s", icon, rec.Phase.Title())
			if rec.Retries > 0 {
				line += fmt.Sprintf(" (%d retries)", rec.Retries)
			}
			if rec.UserRounds > 0 {
				line += fmt.Sprintf(" (%d user rounds)", rec.UserRounds)
			}
			fmt.Println(line)
			for _, w := range rec.Warnings {
				fmt.Printf("      warning: %s\n", w)
			}
		}
	}

	return nil
}

func recordIcon(status project.RecordStatus) string {
	switch status {
	case project.RecordSucceeded:
		return "[x]"
	case project.RecordFailed:
		return "[!]"
	}
	return "[ ]"
}
