package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/caseflow/docstore"
	"github.com/kbukum/caseflow/workflow"
)

// newHealthcheckCommand manages the marker document the store sensor
// waits for.
func newHealthcheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Manage the document store health marker",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "mark",
		Short: "Write the marker so runs may proceed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *workflow.Runtime, cfg *workflow.Config) error {
				coll := docstore.Namespace(cfg.Load.Database, cfg.Sensors.Store.Collection)
				if err := docstore.MarkHealthy(ctx, rt.Documents(), coll, docstore.Document(cfg.Sensors.Store.Filter)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %s healthy\n", coll)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the marker so runs wait at the store check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *workflow.Runtime, cfg *workflow.Config) error {
				coll := docstore.Namespace(cfg.Load.Database, cfg.Sensors.Store.Collection)
				if err := docstore.ClearHealthy(ctx, rt.Documents(), coll); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", coll)
				return nil
			})
		},
	})
	return cmd
}
