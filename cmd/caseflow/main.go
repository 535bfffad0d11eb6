// Command caseflow runs the daily case timeline ingestion workflow.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/caseflow/config"
	"github.com/kbukum/caseflow/workflow"
)

const serviceName = "caseflow"

var (
	configPath string
	envPath    string
	rootCmd    = &cobra.Command{
		Use:   serviceName,
		Short: "Daily case timeline ingestion",
		Long: `caseflow waits for the case timeline API and the document store to be
ready, fetches the timeline and loads it partitioned by logical date.
Runs are created by a daily schedule or on demand.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", "", ".env file path")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newArchiveCommand())
	rootCmd.AddCommand(newHealthcheckCommand())
	rootCmd.AddCommand(newVersionCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*workflow.Config, error) {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigFile(configPath))
	}
	if envPath != "" {
		opts = append(opts, config.WithEnvFile(envPath))
	}
	cfg, err := workflow.Load(serviceName, opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withRuntime starts the stores without the scheduler loop, runs fn and
// shuts everything down.
func withRuntime(ctx context.Context, fn func(ctx context.Context, rt *workflow.Runtime, cfg *workflow.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, rt, err := workflow.NewApp(cfg, workflow.ModeTask)
	if err != nil {
		return err
	}
	return app.RunTask(ctx, func(ctx context.Context) error {
		return fn(ctx, rt, cfg)
	})
}
