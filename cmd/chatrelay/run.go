package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"shareai/chatrelay/pkg/cli"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/proxy/handlers"
	"shareai/chatrelay/pkg/server"
	"shareai/chatrelay/pkg/tasks"
	"shareai/chatrelay/pkg/telemetry/health"
	"shareai/chatrelay/pkg/telemetry/metrics"
	"shareai/chatrelay/pkg/telemetry/tracing"
)

type runOptions struct {
	*rootOptions
	listenAddress string
	logLevel      string
	dryRun        bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the chat relay server",
		Long: `Start the chat relay HTTP server.

The server exposes /chat/completions, /chat/stream, /chat/async,
/chat/tasks/{id} and /chat/ws, plus health, version and metrics
endpoints. It stops gracefully on SIGINT or SIGTERM, draining open
requests and queued async tasks.

Examples:
  # Start with environment configuration
  chatrelay run

  # Start with a config file, reloaded when it changes
  chatrelay run --config /etc/chatrelay/config.yaml

  # Override listen address
  chatrelay run --listen 127.0.0.1:9000

  # Validate config without starting the server
  chatrelay run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

func runServer(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	if opts.listenAddress != "" {
		cfg.Server.ListenAddress = opts.listenAddress
	}
	if opts.logLevel != "" {
		cfg.Telemetry.Logging.Level = opts.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(opts.cfgFile, err)
	}

	logger, err := opts.newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if opts.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}
	config.SetConfig(cfg)

	ctx := commandContext(cmd)

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.Timeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	var collector *metrics.Collector
	factoryOpts := []handlers.FactoryOption{handlers.WithFactoryLogger(logger)}
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
		factoryOpts = append(factoryOpts, handlers.WithFactoryObserver(collector))
	}
	factory := handlers.NewAgentFactory(config.GetConfig, factoryOpts...)

	store, err := tasks.NewStore(cfg.Tasks, logger)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to open task store: %w", err))
	}
	defer store.Close()

	managerOpts := []tasks.Option{
		tasks.WithWorkers(cfg.Tasks.Workers),
		tasks.WithQueueSize(cfg.Tasks.QueueSize),
		tasks.WithLogger(logger),
		tasks.WithCallbackSender(tasks.NewCallbackSender(tasks.CallbackConfig{
			Timeout:    cfg.Tasks.Callback.Timeout,
			MaxRetries: cfg.Tasks.Callback.MaxRetries,
			RetryDelay: cfg.Tasks.Callback.RetryDelay,
		}, nil, logger)),
	}
	if collector != nil {
		managerOpts = append(managerOpts, tasks.WithObserver(collector))
	}
	manager := tasks.NewManager(store, factory.TaskFactory(), managerOpts...)
	if collector != nil {
		if err := collector.WatchQueueDepth(manager.QueueDepth); err != nil {
			logger.Warn("failed to register queue depth gauge", "error", err)
		}
	}

	if cfg.Tasks.Retention.Enabled {
		pruner := tasks.NewPruner(store, cfg.Tasks.Retention.MaxAge, cfg.Tasks.Retention.Schedule, logger)
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start task pruner", "error", err)
		} else {
			defer pruner.Stop()
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if opts.cfgFile != "" {
		startConfigWatcher(watchCtx, opts.cfgFile, logger)
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	handlers.RegisterHealthChecks(checker, store, config.GetConfig)

	srv := server.NewServer(server.Options{
		Config:  config.GetConfig,
		Factory: factory,
		Tasks:   manager,
		Health:  checker,
		Metrics: collector,
		Logger:  logger,
		Version: versionInfo(),
	})

	printBanner(cmd, cfg, opts.cfgFile)
	serveErr := srv.Start(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(drainCtx); err != nil {
		logger.Error("task manager shutdown failed", "error", err)
	}

	if serveErr != nil {
		return cli.NewCommandError("run", serveErr)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func startConfigWatcher(ctx context.Context, path string, logger *slog.Logger) {
	w, err := config.NewWatcher(path, 0, logger)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
		return
	}
	go func() {
		err := w.Watch(ctx, func(cfg *config.Config) {
			logger.Info("configuration reloaded",
				"model", cfg.Upstream.Model,
				"max_retries", cfg.Agent.MaxRetries,
				"retry_delay", cfg.Agent.RetryDelay,
			)
		})
		if err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
}

func printBanner(cmd *cobra.Command, cfg *config.Config, cfgFile string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "chatrelay v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "✓ Configuration loaded from %s\n", cfgFile)
	} else {
		fmt.Fprintln(out, "✓ Configuration loaded from environment")
	}
	fmt.Fprintf(out, "✓ Upstream %s (model %s, %d retries)\n", cfg.Upstream.BaseURL, cfg.Upstream.Model, cfg.Agent.MaxRetries)
	fmt.Fprintf(out, "✓ Task store: %s, %d workers\n", cfg.Tasks.Backend, cfg.Tasks.Workers)
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: %s\n", cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
