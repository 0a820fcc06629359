package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/reeve/internal/ports/primary"
	"github.com/example/reeve/internal/wire"
)

// EventCmd returns the event command group
func EventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage the knowledge event ledger",
		Long:  "Append, list, rotate and compact the append-only knowledge event log",
	}
	cmd.AddCommand(eventAppendCmd())
	cmd.AddCommand(eventListCmd())
	cmd.AddCommand(eventRotateCmd())
	cmd.AddCommand(eventCompactCmd())
	cmd.AddCommand(eventIndexCmd())
	return cmd
}

func eventAppendCmd() *cobra.Command {
	var req primary.AppendEventRequest
	var obligations []string
	var timestamp string

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one knowledge change event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if timestamp != "" {
				ts, err := time.Parse(time.RFC3339, timestamp)
				if err != nil {
					return fmt.Errorf("invalid --timestamp (want RFC3339): %w", err)
				}
				req.Timestamp = ts
			}
			if len(obligations) > 0 {
				req.Obligations = make(map[string]bool, len(obligations))
				for _, name := range obligations {
					req.Obligations[name] = true
				}
			}

			resp, err := wire.EventService().AppendEvent(context.Background(), req)
			if err != nil {
				return fmt.Errorf("failed to append event: %w", err)
			}

			fmt.Printf("✓ Appended event %s\n", resp.Event.ID)
			fmt.Printf("  Type: %s\n", resp.Event.Type)
			fmt.Printf("  Segment: %s\n", resp.Segment)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.EventID, "event-id", "", "expected event id (optional, must match)")
	cmd.Flags().StringVar(&req.Type, "type", "", "event type (merge, ci_fix, decision_answered, index, scan, committee)")
	cmd.Flags().StringVar(&req.Scope, "scope", "", "event scope (e.g. repo:billing)")
	cmd.Flags().StringVar(&req.RepoID, "repo", "", "repo id")
	cmd.Flags().StringVar(&req.WorkID, "work-id", "", "work item id")
	cmd.Flags().IntVar(&req.PRNumber, "pr", 0, "pull request number")
	cmd.Flags().StringVar(&req.Commit, "commit", "", "commit sha")
	cmd.Flags().StringSliceVar(&req.Paths, "path", nil, "touched path (repeatable)")
	cmd.Flags().StringSliceVar(&req.Fingerprints, "fingerprint", nil, "content fingerprint (repeatable)")
	cmd.Flags().StringSliceVar(&obligations, "obligation", nil, "unmet QA obligation (repeatable)")
	cmd.Flags().StringVar(&req.Summary, "summary", "", "one-line summary")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "event time, RFC3339 (default: now)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("scope")
	cmd.MarkFlagRequired("work-id")
	return cmd
}

func eventListCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events in total order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cutoff time.Time
			if since != "" {
				ts, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since (want RFC3339): %w", err)
				}
				cutoff = ts
			}

			events, err := wire.EventService().ListEventsSince(context.Background(), cutoff)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}

			if len(events) == 0 {
				fmt.Println("No events found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tREPO\tWORK\tTIMESTAMP\tSUMMARY")
			fmt.Fprintln(w, "--\t----\t----\t----\t---------\t-------")
			for _, e := range events {
				repo := e.RepoID
				if repo == "" {
					repo = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID,
					e.Type,
					repo,
					e.WorkID,
					e.Timestamp.UTC().Format(time.RFC3339),
					e.Summary,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only events strictly after this RFC3339 time")
	return cmd
}

func eventRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Force a segment rotation check",
		RunE: func(cmd *cobra.Command, args []string) error {
			segment, err := wire.EventService().Rotate(context.Background())
			if err != nil {
				return fmt.Errorf("failed to rotate: %w", err)
			}
			fmt.Printf("✓ Active segment: %s\n", segment)
			return nil
		},
	}
}

func eventCompactCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Fold old segments into the archive and a checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := wire.EventService().Compact(context.Background(), days)
			if err != nil {
				return fmt.Errorf("failed to compact: %w", err)
			}

			if res.Compacted == 0 {
				fmt.Println("Nothing to compact")
				return nil
			}
			fmt.Printf("✓ Compacted %d segment(s), %d event(s)\n", res.Compacted, res.EventsCompacted)
			fmt.Printf("  Through: %s\n", res.Checkpoint.ThroughSegment)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "compact segments older than this many days (0 = policy default)")
	return cmd
}

func eventIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Show the ledger index",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := wire.EventService().Index(context.Background())
			if err != nil {
				return fmt.Errorf("failed to load index: %w", err)
			}

			fmt.Printf("Active segment: %s\n", orNone(idx.ActiveSegment))
			fmt.Printf("Events total: %d\n", idx.EventsTotal)
			if !idx.LatestEventAt.IsZero() {
				fmt.Printf("Latest event: %s\n", idx.LatestEventAt.UTC().Format(time.RFC3339))
			}
			if len(idx.Segments) == 0 {
				return nil
			}

			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEGMENT\tEVENTS\tCREATED")
			fmt.Fprintln(w, "-------\t------\t-------")
			for _, seg := range idx.Segments {
				fmt.Fprintf(w, "%s\t%d\t%s\n",
					seg.File, seg.Events, seg.CreatedAt.UTC().Format(time.RFC3339))
			}
			w.Flush()
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
