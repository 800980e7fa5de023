package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/cli"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/proxy/handlers"
	"shareai/chatrelay/pkg/proxy/types"
)

type chatOptions struct {
	*rootOptions
	system  string
	stream  bool
	model   string
	retries int
	output  string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Run one chat against the configured upstream",
		Long: `Run a single prompt through the chat agent, with the same retry
behaviour as the server, and print the reply.

Examples:
  chatrelay chat "What is a circuit breaker?"
  chatrelay chat --stream --system "Answer in one sentence" "Why retry?"
  chatrelay chat -v --retries 5 --model gpt-4o "Hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.system, "system", "", "system prompt")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "stream the reply as it arrives")
	cmd.Flags().StringVar(&opts.model, "model", "", "override the configured model")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "override the configured max retries")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	return cmd
}

func runChat(cmd *cobra.Command, opts *chatOptions, prompt string) error {
	format, err := cli.ParseFormat(opts.output)
	if err != nil {
		return err
	}
	if opts.retries < 0 {
		return fmt.Errorf("--retries must not be negative")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.retries > cfg.Agent.MaxRetriesLimit {
		return fmt.Errorf("--retries must not exceed agent.max_retries_limit (%d), got %d", cfg.Agent.MaxRetriesLimit, opts.retries)
	}
	// Logs go to stderr at warn unless --verbose, so stdout stays the reply.
	if !opts.verbose {
		cfg.Telemetry.Logging.Level = "warn"
	}
	logger, err := opts.newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	factory := handlers.NewAgentFactory(func() *config.Config { return cfg }, handlers.WithFactoryLogger(logger))
	a, err := factory.New(handlers.Overrides{Model: opts.model, MaxRetries: opts.retries})
	if err != nil {
		return cli.NewCommandError("chat", err)
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	out := cmd.OutOrStdout()
	var result *agent.Result
	if opts.stream {
		var onChunk func(string)
		if format == cli.FormatText {
			onChunk = func(chunk string) { fmt.Fprint(out, chunk) }
		}
		result = a.StreamRun(ctx, prompt, opts.system, onChunk)
		if format == cli.FormatText && !result.Failed() {
			fmt.Fprintln(out)
		}
	} else {
		result = a.Run(ctx, prompt, opts.system)
	}

	if opts.verbose {
		printRetryDiagnostics(cmd.ErrOrStderr(), a.RetryOutcome())
	}

	if result.Failed() {
		err := result.Err()
		if err == nil {
			err = errors.New(result.Error)
		}
		return cli.NewCommandError("chat", err)
	}

	switch {
	case format == cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(out, types.NewChatResponse(a))
	case !opts.stream:
		content, _ := a.LastMessage()
		fmt.Fprintln(out, content)
	}
	return nil
}

func printRetryDiagnostics(w io.Writer, outcome agent.RetryOutcome) {
	fmt.Fprintf(w, "attempts: %d, success: %t\n", outcome.Attempts, outcome.Success)
	for i, e := range outcome.Errors {
		fmt.Fprintf(w, "  retry %d: %s\n", i+1, e)
	}
}
