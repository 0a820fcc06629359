package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/reeve/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last orchestrator checkpoint",
		Long:  "Display the last written orchestrator state without taking the coordinator lock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := wire.OrchestratorService().Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to load status: %w", err)
			}

			if state == nil {
				fmt.Println("No coordinator run recorded yet.")
				fmt.Println("Run `reeve cycle` to evaluate the pipeline.")
				return nil
			}

			fmt.Printf("Stage: %s\n", stageText(string(state.Stage)))
			fmt.Printf("Next action: %s\n", state.NextAction.Type)
			if len(state.NextAction.TargetRepos) > 0 {
				fmt.Printf("Target repos: %s\n", strings.Join(state.NextAction.TargetRepos, ", "))
			}
			if state.NextAction.DecisionID != "" {
				fmt.Printf("Blocking decision: %s\n", state.NextAction.DecisionID)
			}
			fmt.Printf("Stale: %t\n", state.Stale)
			fmt.Printf("Updated: %s\n", state.UpdatedAt.UTC().Format(time.RFC3339))

			if len(state.EvidenceState.Repos) > 0 {
				fmt.Println()
				for _, repo := range state.EvidenceState.Repos {
					committee := repo.CommitteeStatus
					if committee == "" {
						committee = "-"
					}
					fmt.Printf("  %s: index=%t scan=%t committee=%s\n",
						repo.RepoID, repo.HasIndex, repo.HasScan, committee)
				}
			}
			return nil
		},
	}
}
