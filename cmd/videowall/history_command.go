package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"videowall/internal/eventlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past wall sessions and their sync events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := eventlog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if runID != "" {
				events, err := store.ListEvents(cmd.Context(), runID, limit)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					fmt.Fprintf(out, "no events recorded for run %s\n", runID)
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, event := range events {
					rows = append(rows, []string{
						event.At.Local().Format(time.TimeOnly),
						event.Kind,
						strconv.FormatFloat(event.Position, 'f', 1, 64),
						event.Detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Time", "Event", "Position", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no sessions recorded yet")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				ended := "-"
				duration := "-"
				if run.EndedAt != nil {
					ended = run.EndedAt.Local().Format(time.DateTime)
					duration = run.EndedAt.Sub(run.StartedAt).Round(time.Second).String()
				}
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					ended,
					duration,
					strconv.Itoa(run.Screens),
					run.Outcome,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Ended", "Duration", "Screens", "Outcome"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show sync events for one run ID")
	return cmd
}
