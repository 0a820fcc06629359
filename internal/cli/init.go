package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/reeve/internal/config"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var project string
	var repos []string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a reeve project in the current directory",
		Long: `Create the .reeve/config.json and the coordinator directory layout
(events, decisions, orchestrator, intake, knowledge) in the current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			if _, err := config.LoadConfig(cwd); err == nil {
				return fmt.Errorf("already a reeve project (found .reeve/config.json)")
			}

			if project == "" {
				project = filepath.Base(cwd)
			}
			cfg := &config.Config{
				Version: "1",
				Project: project,
				Repos:   repos,
			}
			if err := config.SaveConfig(cwd, cfg); err != nil {
				return err
			}

			ctx := config.NewProjectContext(cwd)
			for _, dir := range []string{
				ctx.SegmentsDir(),
				ctx.CheckpointsDir(),
				ctx.DecisionsDir(),
				ctx.OrchestratorDir(),
				ctx.IntakeDir(),
				ctx.KnowledgeDir(),
			} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}

			fmt.Printf("✓ Initialized reeve project %q\n", project)
			if len(repos) > 0 {
				fmt.Printf("  Tracking repos: %v\n", repos)
			}
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  reeve event append --type merge ...")
			fmt.Println("  reeve cycle")
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project name (default: directory name)")
	cmd.Flags().StringSliceVar(&repos, "repo", nil, "target repo id (repeatable)")
	return cmd
}
