package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shareai/chatrelay/pkg/cli"
	"shareai/chatrelay/pkg/tasks"
)

func newTasksCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage stored async chat tasks",
	}
	cmd.AddCommand(newTasksPruneCmd(root))
	return cmd
}

// pruneResult is the output of tasks prune.
type pruneResult struct {
	Backend string        `json:"backend"`
	MaxAge  time.Duration `json:"-"`
	Cutoff  time.Time     `json:"cutoff"`
	Deleted int64         `json:"deleted"`
}

func (r pruneResult) String() string {
	return fmt.Sprintf("✓ Deleted %d finished tasks older than %s from the %s store", r.Deleted, r.MaxAge, r.Backend)
}

func newTasksPruneCmd(root *rootOptions) *cobra.Command {
	var (
		olderThan time.Duration
		output    string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished tasks past their retention",
		Long: `Run the retention pruner once against the configured task store.

Finished tasks (completed or failed) that completed more than
tasks.retention.max_age ago are deleted. Tasks still processing are kept.

Examples:
  chatrelay tasks prune
  chatrelay tasks prune --older-than 1h --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger, err := root.newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			maxAge := cfg.Tasks.Retention.MaxAge
			if olderThan > 0 {
				maxAge = olderThan
			}
			if cfg.Tasks.Backend == "memory" {
				logger.Warn("the memory task store is process-local; nothing to prune from the CLI")
			}

			store, err := tasks.NewStore(cfg.Tasks, logger)
			if err != nil {
				return cli.NewCommandError("tasks prune", err)
			}
			defer store.Close()

			start := time.Now()
			deleted, err := tasks.NewPruner(store, maxAge, cfg.Tasks.Retention.Schedule, logger).RunOnce(commandContext(cmd))
			if err != nil {
				return cli.NewCommandError("tasks prune", err)
			}

			return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), pruneResult{
				Backend: cfg.Tasks.Backend,
				MaxAge:  maxAge,
				Cutoff:  start.Add(-maxAge).UTC(),
				Deleted: deleted,
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override tasks.retention.max_age")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}
