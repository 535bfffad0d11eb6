package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/caseflow/workflow"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily schedule and the run API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, _, err := workflow.NewApp(cfg, workflow.ModeServe)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}
