package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/howell-aikit/ideaforge/internal/config"
)

var (
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ideaforge",
	Short: "LLM-driven pipeline from idea to deployable project",
	Long: `ideaforge turns an informal software idea into a project through
five phases:
  • Requirements refinement (conversational when the idea is vague)
  • Architecture design with a concrete technology stack
  • Code generation into a virtual file tree
  • Testing review with optional corrected files
  • Deployment artifacts (Dockerfile, CI, docs)

State persists after every phase, so interrupted runs resume where
they stopped.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			zcfg := zap.NewProductionConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
			logger, err = zcfg.Build()
		}
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(exportCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
