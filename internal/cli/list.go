package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Long:  `List all ideaforge projects and their current phase.`,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	projects, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("No projects found")
		return nil
	}

	currentID, _ := store.CurrentID()

	fmt.Printf("%-10s %-16s %-40s %s\n", "ID", "PHASE", "IDEA", "FILES")
	fmt.Printf("%-10s %-16s %-40s %s\n", "---", "-----", "----", "-----")

	for _, p := range projects {
		idea := p.InitialRequest
		if len(idea) > 38 {
			idea = idea[:35] + "..."
		}

		marker := " "
		if p.ID == currentID {
			marker = "*"
		}

		fmt.Printf("%s%-9s %-16s %-40s %d\n",
			marker,
			p.ID,
			p.CurrentPhase,
			idea,
			len(p.GeneratedCode))
	}

	fmt.Printf("\n* = current project\n")
	return nil
}
