package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/example/reeve/internal/adapters/decisionstore"
	"github.com/example/reeve/internal/adapters/ledger"
	"github.com/example/reeve/internal/adapters/lockfile"
	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/decision"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for project validation
func DoctorCmd() *cobra.Command {
	var quiet bool
	var forceUnlock bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the reeve project state",
		Long: `Health check for a reeve project.

Validates:
- Project layout (.reeve/config.json and the coordinator directories)
- Policy file parseability
- Ledger index consistency (events_total vs per-segment counts)
- Decision packet schema validity
- Coordinator lock freshness

Examples:
  reeve doctor                  # Run full health check
  reeve doctor --quiet          # Exit code only (0=healthy, 1=issues)
  reeve doctor --force-unlock   # Remove the coordinator lock outright`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			project := config.NewProjectContext(cwd)

			if forceUnlock {
				if err := os.Remove(project.LockPath()); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to remove lock: %w", err)
				}
				fmt.Println("✓ Coordinator lock removed")
			}

			results := []CheckResult{
				checkLayout(cwd, project),
				checkPolicy(project),
				checkIndex(project),
				checkArchive(project),
				checkDecisions(project),
				checkLock(project),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				for _, r := range results {
					fmt.Printf("%s %s\n", r.Status, r.Name)
					if r.Status != "✓" && r.Details != "" {
						fmt.Printf("    %s\n", r.Details)
					}
				}
			}

			if hasErrors {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "exit code only")
	cmd.Flags().BoolVar(&forceUnlock, "force-unlock", false, "remove the coordinator lock regardless of holder")
	return cmd
}

func checkLayout(cwd string, project config.ProjectContext) CheckResult {
	if _, err := config.LoadConfig(cwd); err != nil {
		return CheckResult{"project layout", "✗", "no .reeve/config.json (run 'reeve init')"}
	}
	for _, dir := range []string{project.EventsDir(), project.DecisionsDir(), project.OrchestratorDir()} {
		if _, err := os.Stat(dir); err != nil {
			return CheckResult{"project layout", "⚠", fmt.Sprintf("missing %s", dir)}
		}
	}
	return CheckResult{Name: "project layout", Status: "✓"}
}

func checkPolicy(project config.ProjectContext) CheckResult {
	if _, err := config.LoadPolicy(project); err != nil {
		return CheckResult{"policy", "✗", err.Error()}
	}
	return CheckResult{Name: "policy", Status: "✓"}
}

func checkIndex(project config.ProjectContext) CheckResult {
	store, err := newDoctorLedger(project)
	if err != nil {
		return CheckResult{"ledger index", "✗", err.Error()}
	}
	idx, err := store.Index(context.Background())
	if err != nil {
		return CheckResult{"ledger index", "✗", err.Error()}
	}

	sum := 0
	for _, seg := range idx.Segments {
		if _, err := os.Stat(filepath.Join(project.SegmentsDir(), seg.File+".jsonl")); err != nil {
			return CheckResult{"ledger index", "✗",
				fmt.Sprintf("index lists %s but the file is missing", seg.File)}
		}
		sum += seg.Events
	}
	if sum != idx.EventsTotal {
		return CheckResult{"ledger index", "✗",
			fmt.Sprintf("events_total %d disagrees with segment counts %d", idx.EventsTotal, sum)}
	}

	// A full read also validates every line's identity.
	if _, err := store.ReadSince(context.Background(), time.Time{}); err != nil {
		return CheckResult{"ledger index", "✗", err.Error()}
	}
	return CheckResult{Name: "ledger index", Status: "✓"}
}

func checkArchive(project config.ProjectContext) CheckResult {
	if _, err := os.Stat(project.ArchivePath()); os.IsNotExist(err) {
		return CheckResult{Name: "event archive", Status: "✓"} // nothing compacted yet
	}

	db, err := sql.Open("sqlite3", project.ArchivePath())
	if err != nil {
		return CheckResult{"event archive", "✗", err.Error()}
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM archived_events`).Scan(&n); err != nil {
		return CheckResult{"event archive", "✗", err.Error()}
	}
	return CheckResult{Name: "event archive", Status: "✓"}
}

func checkDecisions(project config.ProjectContext) CheckResult {
	store, err := newDoctorDecisions(project)
	if err != nil {
		return CheckResult{"decision packets", "✗", err.Error()}
	}
	packets, err := store.List(context.Background(), "")
	if err != nil {
		return CheckResult{"decision packets", "✗", err.Error()}
	}

	open := 0
	for _, p := range packets {
		if p.Status == decision.StatusOpen {
			open++
		}
	}
	if open > 0 {
		return CheckResult{"decision packets", "⚠", fmt.Sprintf("%d open packet(s) blocking the pipeline", open)}
	}
	return CheckResult{Name: "decision packets", Status: "✓"}
}

func checkLock(project config.ProjectContext) CheckResult {
	record, err := lockfile.NewManager(project).Inspect(context.Background())
	if err != nil {
		return CheckResult{"coordinator lock", "✗", err.Error()}
	}
	if record == nil {
		return CheckResult{Name: "coordinator lock", Status: "✓"}
	}
	if record.Expired(time.Now().UTC()) {
		return CheckResult{"coordinator lock", "⚠",
			fmt.Sprintf("stale lock held by pid %d (will be displaced on the next cycle)", record.Owner.PID)}
	}
	return CheckResult{"coordinator lock", "⚠",
		fmt.Sprintf("held by pid %d on %s", record.Owner.PID, record.Owner.Host)}
}

// newDoctorLedger builds a read-only view of the ledger without going
// through wire, so doctor works even when other subsystems are broken.
func newDoctorLedger(project config.ProjectContext) (*ledger.Store, error) {
	policy, err := config.LoadPolicy(project)
	if err != nil {
		return nil, err
	}
	return ledger.NewStore(project, policy, nil)
}

func newDoctorDecisions(project config.ProjectContext) (*decisionstore.Store, error) {
	return decisionstore.NewStore(project)
}
