package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/reeve/internal/core/decision"
	"github.com/example/reeve/internal/ports/primary"
	"github.com/example/reeve/internal/wire"
)

// DecisionCmd returns the decision command group
func DecisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision",
		Short: "Manage decision packets",
		Long:  "Raise, inspect and answer the structured questions that block pipeline stages",
	}
	cmd.AddCommand(decisionCreateCmd())
	cmd.AddCommand(decisionListCmd())
	cmd.AddCommand(decisionShowCmd())
	cmd.AddCommand(decisionAnswerCmd())
	return cmd
}

func decisionCreateCmd() *cobra.Command {
	var req primary.CreateDecisionRequest
	var questions []string
	var answerTypes []string
	var constraints []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Raise (or idempotently re-raise) a decision packet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(answerTypes) != len(questions) {
				return fmt.Errorf("--answer-type must be given once per --question")
			}
			for i, q := range questions {
				input := primary.QuestionInput{
					Question:           q,
					ExpectedAnswerType: answerTypes[i],
				}
				if i < len(constraints) {
					input.Constraints = constraints[i]
				}
				req.Questions = append(req.Questions, input)
			}

			resp, err := wire.DecisionService().CreateDecision(context.Background(), req)
			if err != nil {
				return fmt.Errorf("failed to create decision: %w", err)
			}

			if resp.Existed {
				fmt.Printf("Decision %s already open (identical blocking condition)\n", resp.Packet.ID)
				return nil
			}
			fmt.Printf("✓ Created decision %s\n", resp.Packet.ID)
			fmt.Printf("  Scope: %s\n", resp.Packet.Scope)
			fmt.Printf("  Questions: %d\n", len(resp.Packet.Questions))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Scope, "scope", "", "blocked scope (e.g. repo:billing or system)")
	cmd.Flags().StringVar(&req.Trigger, "trigger", "", "what raised the packet")
	cmd.Flags().StringVar(&req.BlockingState, "blocking-state", "", "the stage this packet blocks")
	cmd.Flags().StringVar(&req.Summary, "summary", "", "context summary for the answerer")
	cmd.Flags().StringVar(&req.WhyAutomationFailed, "why", "", "why automation could not proceed")
	cmd.Flags().StringSliceVar(&req.WhatIsKnown, "known", nil, "established fact (repeatable)")
	cmd.Flags().StringSliceVar(&questions, "question", nil, "question text (repeatable)")
	cmd.Flags().StringSliceVar(&answerTypes, "answer-type", nil, "boolean, choice, reference or string (one per question)")
	cmd.Flags().StringSliceVar(&constraints, "constraints", nil, "answer constraints, e.g. a|b|c for choice (one per question)")
	cmd.Flags().StringVar(&req.AssumptionsIfUnanswered, "assumptions", "", "what will be assumed if never answered")
	cmd.MarkFlagRequired("scope")
	cmd.MarkFlagRequired("trigger")
	cmd.MarkFlagRequired("blocking-state")
	cmd.MarkFlagRequired("question")
	return cmd
}

func decisionListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List decision packets",
		RunE: func(cmd *cobra.Command, args []string) error {
			packets, err := wire.DecisionService().ListDecisions(context.Background(), status)
			if err != nil {
				return fmt.Errorf("failed to list decisions: %w", err)
			}

			if len(packets) == 0 {
				fmt.Println("No decisions found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSCOPE\tBLOCKS\tQUESTIONS\tCREATED")
			fmt.Fprintln(w, "--\t------\t-----\t------\t---------\t-------")
			for _, p := range packets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					p.ID,
					p.Status,
					p.Scope,
					p.BlockingState,
					len(p.Questions),
					p.CreatedAt.UTC().Format("2006-01-02"),
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (open, answered)")
	return cmd
}

func decisionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [decision-id]",
		Short: "Show decision packet details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := wire.DecisionService().GetDecision(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("decision not found: %w", err)
			}

			statusText := p.Status
			if p.Status == decision.StatusOpen {
				statusText = color.New(color.FgYellow).Sprint(p.Status)
			} else {
				statusText = color.New(color.FgHiGreen).Sprint(p.Status)
			}

			fmt.Printf("Decision: %s [%s]\n", p.ID, statusText)
			fmt.Printf("Scope: %s\n", p.Scope)
			fmt.Printf("Trigger: %s\n", p.Trigger)
			fmt.Printf("Blocking: %s\n", p.BlockingState)
			fmt.Printf("Created: %s\n", p.CreatedAt.UTC().Format(time.RFC3339))
			fmt.Println()
			fmt.Printf("Summary: %s\n", p.Context.Summary)
			fmt.Printf("Why automation failed: %s\n", p.Context.WhyAutomationFailed)
			for _, fact := range p.Context.WhatIsKnown {
				fmt.Printf("  - %s\n", fact)
			}
			fmt.Println()
			for i, q := range p.Questions {
				fmt.Printf("%d. %s (%s, expects %s)\n", i+1, q.Question, q.ID, q.ExpectedAnswerType)
				if q.Constraints != "" {
					fmt.Printf("   Constraints: %s\n", q.Constraints)
				}
				if len(q.Blocks) > 0 {
					fmt.Printf("   Blocks: %s\n", strings.Join(q.Blocks, ", "))
				}
				if q.Answer != nil {
					fmt.Printf("   Answer: %s\n", *q.Answer)
				}
			}
			if p.AssumptionsIfUnanswered != "" {
				fmt.Printf("\nAssumptions if unanswered: %s\n", p.AssumptionsIfUnanswered)
			}
			return nil
		},
	}
}

func decisionAnswerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer [decision-id] [answer]",
		Short: "Answer an open decision packet",
		Long: `Answer every question of an open packet in one shot.

Single-question packets take the bare answer. Multi-question packets take a
JSON object keyed by question id: '{"<qid>": "yes", "<qid2>": "option-b"}'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := wire.DecisionService().AnswerDecision(context.Background(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to answer decision: %w", err)
			}

			fmt.Printf("✓ Decision %s answered\n", p.ID)
			for _, q := range p.Questions {
				fmt.Printf("  %s → %s\n", q.Question, *q.Answer)
			}
			return nil
		},
	}
}
