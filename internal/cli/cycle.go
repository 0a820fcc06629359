package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/reeve/internal/wire"
)

// CycleCmd returns the cycle command
func CycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one coordinator cycle",
		Long: `Take the coordinator lock, evaluate the on-disk evidence, write the
orchestrator checkpoint, queue follow-up work for events with unmet QA
obligations, and release the lock. Contention is a normal skip.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := wire.OrchestratorService().RunCycle(context.Background())
			if err != nil {
				return fmt.Errorf("cycle failed: %w", err)
			}

			if res.Skipped {
				fmt.Println("Skipped: another coordinator holds the lock")
				if res.HeldBy != nil {
					fmt.Printf("  Holder: pid %d on %s (since %s)\n",
						res.HeldBy.Owner.PID,
						res.HeldBy.Owner.Host,
						res.HeldBy.AcquiredAt.UTC().Format("15:04:05"))
				}
				return nil
			}

			state := res.State
			fmt.Printf("✓ Cycle complete\n")
			fmt.Printf("  Stage: %s\n", stageText(string(state.Stage)))
			fmt.Printf("  Next action: %s\n", state.NextAction.Type)
			if len(state.NextAction.TargetRepos) > 0 {
				fmt.Printf("  Target repos: %s\n", strings.Join(state.NextAction.TargetRepos, ", "))
			}
			if state.NextAction.Scope != "" {
				fmt.Printf("  Scope: %s\n", state.NextAction.Scope)
			}
			if state.NextAction.DecisionID != "" {
				fmt.Printf("  Decision: %s\n", state.NextAction.DecisionID)
			}
			if state.Stale {
				fmt.Printf("  %s evidence is stale, refresh recommended\n",
					color.New(color.FgYellow).Sprint("!"))
			}
			if res.IntakeCreated > 0 {
				fmt.Printf("  Queued %d follow-up work item(s)\n", res.IntakeCreated)
			}
			if res.IntakeErr != nil {
				fmt.Printf("  %s intake consumption incomplete: %v\n",
					color.New(color.FgYellow).Sprint("!"), res.IntakeErr)
			}
			return nil
		},
	}
}

func stageText(stage string) string {
	switch stage {
	case "COMMITTEE_PASSED":
		return color.New(color.FgHiGreen).Sprint(stage)
	case "DECISION_NEEDED":
		return color.New(color.FgYellow).Sprint(stage)
	default:
		return stage
	}
}
