package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/reeve/internal/cli"
	"github.com/example/reeve/internal/version"
	"github.com/example/reeve/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "reeve",
		Short:   "Reeve - file-backed pipeline coordinator",
		Version: version.String(),
		Long: `Reeve coordinates a multi-stage knowledge pipeline over plain files:
an append-only event ledger, blocking decision packets, and a single
orchestrator checkpoint that always names the next action.`,
	}

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.EventCmd())
	rootCmd.AddCommand(cli.DecisionCmd())
	rootCmd.AddCommand(cli.CycleCmd())
	rootCmd.AddCommand(cli.StatusCmd())

	err := rootCmd.Execute()
	wire.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
