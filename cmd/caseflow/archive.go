package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/caseflow/workflow"
)

var errArchiveOff = errors.New("archive is disabled (set archive.enabled)")

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived batches",
	}
	cmd.AddCommand(newArchiveListCommand(), newArchiveShowCommand())
	return cmd
}

func newArchiveListCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List archived batches, optionally for one logical date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *workflow.Runtime, cfg *workflow.Config) error {
				if rt.Archive() == nil {
					return errArchiveOff
				}
				objs, err := rt.Archive().List(ctx, cfg.Scheduler.DAGID, date)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
				for _, o := range objs {
					fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, o.Modified.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "logical date (YYYY-MM-DD)")
	return cmd
}

func newArchiveShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print one archived batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *workflow.Runtime, _ *workflow.Config) error {
				if rt.Archive() == nil {
					return errArchiveOff
				}
				batch, err := rt.Archive().Open(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(batch)
			})
		},
	}
}
