package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbukum/caseflow/runstore"
	"github.com/kbukum/caseflow/workflow"
)

func newRunsCommand() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *workflow.Runtime, cfg *workflow.Config) error {
				runs, err := rt.ListRuns(ctx, runstore.ListOptions{
					DAGID:  cfg.Scheduler.DAGID,
					Status: runstore.RunStatus(status),
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDATE\tTRIGGER\tSTATUS\tFAILED TASK\tERROR")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.LogicalDate, r.Trigger, r.Status, r.FailedTask, r.ErrorCode)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}
