package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"shareai/chatrelay/pkg/cli"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/telemetry/logging"
)

// rootOptions holds the persistent flags shared by all subcommands.
type rootOptions struct {
	cfgFile string
	envFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Chat relay with upstream retries and streaming",
		Long: `Chatrelay relays chat requests to an OpenAI-compatible upstream.

Every request runs through a chat agent that retries transient upstream
failures (timeouts, refused or dropped connections) with exponential
backoff and reports what happened in retry_info.

Configuration comes from an optional YAML file, a .env file and the
environment (SHAREAI_API_KEY, SHAREAI_BASE_URL, OPENAI_MODEL, MAX_RETRIES,
RETRY_DELAY and CHATRELAY_*).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path (optional)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file loaded before the environment is read")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newRunCmd(opts),
		newChatCmd(opts),
		newTasksCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

// loadConfig reads the env file, the optional config file and the
// environment, in that order.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, cli.NewConfigError(o.envFile, err)
	}
	cfg, err := config.LoadConfigWithEnvOverrides(o.cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(o.cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the logger for a command. --verbose forces debug.
func (o *rootOptions) newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	lc := cfg.Telemetry.Logging
	if o.verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc, w)
	if err != nil {
		return nil, cli.NewConfigError(o.cfgFile, err)
	}
	return logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
