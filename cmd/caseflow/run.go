package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/caseflow/runstore"
	"github.com/kbukum/caseflow/workflow"
)

func newRunCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one run in the foreground",
		Long: `Execute one manual run for a logical date and wait for it to finish.
The command exits non-zero when any task fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *workflow.Runtime, _ *workflow.Config) error {
				day, err := parseDate(date, rt.Scheduler().Location())
				if err != nil {
					return err
				}
				if date == "" {
					day = rt.Scheduler().LastClosedDate(time.Now())
				}
				run, report := rt.RunOnce(ctx, day)
				for _, name := range workflow.TaskOrder {
					res := report.Task(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%-22s %-10s attempts=%d\n", name, res.Status, res.Attempts)
				}
				if !report.Succeeded() {
					task, code, _ := report.Failure()
					return fmt.Errorf("run %s failed at %s (%s): %v", run.ID, task, code, report.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s for %s succeeded\n", run.ID, run.LogicalDate)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "logical date (YYYY-MM-DD, default the last closed schedule interval)")
	return cmd
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(runstore.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}
